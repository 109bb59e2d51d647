// Command viswatch captures and compares rendered UI surfaces.
//
// Usage:
//
//	viswatch -url https://example.com -shot home.png -redact id:email
//	viswatch -url https://example.com -element css:.card -shot card.png
//	viswatch -url https://example.com -element css:.card -compare ref/card.png
//	viswatch -url https://example.com -find ref/logo.png
//	viswatch -config viswatch.yaml -serve
//	viswatch -config viswatch.yaml -mcp
//
// One-shot comparisons exit 0 on pass, 1 on fail and 2 on error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/viswatch"
	"github.com/hazyhaar/viswatch/internal/api"
	"github.com/hazyhaar/viswatch/match"
)

const version = "0.1.0"

type options struct {
	config    string
	url       string
	shot      string
	element   string
	compare   string
	find      string
	tolerance float64
	minPoints int
	blur      string
	redact    string
	serve     bool
	mcp       bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "path to viswatch.yaml config file")
	flag.StringVar(&o.url, "url", "", "page to load before capturing")
	flag.StringVar(&o.shot, "shot", "", "save a screenshot under this name (viewport, or -element)")
	flag.StringVar(&o.element, "element", "", "element selector: //xpath, id:x, class:x, css:x")
	flag.StringVar(&o.compare, "compare", "", "reference image to diff -element against")
	flag.StringVar(&o.find, "find", "", "reference image to search for on screen")
	flag.Float64Var(&o.tolerance, "tolerance", -1, "passing score bound for -compare (default from config)")
	flag.IntVar(&o.minPoints, "min-points", 0, "minimum matching points for -find (default from config)")
	flag.StringVar(&o.blur, "blur", "", "comma-separated selectors to blur")
	flag.StringVar(&o.redact, "redact", "", "comma-separated selectors to redact")
	flag.BoolVar(&o.serve, "serve", false, "serve the HTTP API")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, logger, o)
	if err != nil {
		logger.Error("viswatch: fatal", "error", err)
		os.Exit(2)
	}
	os.Exit(code)
}

func run(ctx context.Context, logger *slog.Logger, o options) (int, error) {
	cfg := viswatch.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = viswatch.LoadConfigFile(o.config); err != nil {
			return 0, fmt.Errorf("load config: %w", err)
		}
	}
	if o.mcp {
		// stdout carries the MCP stream.
		cfg.Sinks = withoutStdout(cfg.Sinks)
	}
	// A reference named on the command line is trusted; request templates
	// from -serve and -mcp stay confined to artifacts.templates.
	if !o.serve && !o.mcp {
		var err error
		if o.find, err = trustReference(cfg, o.find); err != nil {
			return 0, err
		}
		if o.compare, err = trustReference(cfg, o.compare); err != nil {
			return 0, err
		}
	}

	svc, err := viswatch.New(cfg, viswatch.WithLogger(logger))
	if err != nil {
		return 0, err
	}
	defer svc.Close()
	if err := svc.Start(ctx); err != nil {
		return 0, err
	}
	if o.url != "" {
		if err := svc.Navigate(ctx, o.url); err != nil {
			return 0, err
		}
	}

	masks := viswatch.CaptureRequest{Blur: split(o.blur), Redact: split(o.redact)}
	switch {
	case o.serve:
		return 0, serve(ctx, logger, cfg.Server.Addr, svc)
	case o.mcp:
		return 0, serveMCP(ctx, svc)
	case o.find != "":
		res, err := svc.FindImage(ctx, viswatch.FindRequest{Template: o.find, MinPoints: o.minPoints})
		return verdict(res, err)
	case o.compare != "":
		req := viswatch.CompareRequest{Selector: o.element, Template: o.compare}
		if o.tolerance >= 0 {
			req.Tolerance = &o.tolerance
		}
		res, err := svc.CompareElement(ctx, req)
		return verdict(res, err)
	case o.element != "":
		masks.Selector, masks.Name = o.element, o.shot
		resp, err := svc.CaptureElement(ctx, masks)
		return 0, printJSON(resp, err)
	case o.shot != "" || o.url != "":
		masks.Name = o.shot
		resp, err := svc.CaptureFull(ctx, masks)
		return 0, printJSON(resp, err)
	}

	fmt.Fprintln(os.Stderr, "usage: viswatch [-config <file>] [-url <url>] -shot <name> | -element <sel> [-compare <ref>] | -find <ref> | -serve | -mcp")
	return 2, nil
}

func verdict(res *match.Result, err error) (int, error) {
	if err := printJSON(res, err); err != nil {
		return 0, err
	}
	return int(res.Verdict), nil
}

func printJSON(v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, logger *slog.Logger, addr string, svc *viswatch.Service) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(api.Config{Backend: svc, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("viswatch: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("viswatch: server stopped")
	return nil
}

func serveMCP(ctx context.Context, svc *viswatch.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "viswatch", Version: version}, nil)
	svc.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// trustReference makes ref absolute and widens the templates directory to
// the one holding it.
func trustReference(cfg *viswatch.Config, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return "", fmt.Errorf("reference %s: %w", ref, err)
	}
	cfg.Artifacts.Templates = filepath.Dir(abs)
	return abs, nil
}

func withoutStdout(in []viswatch.SinkConfig) []viswatch.SinkConfig {
	var out []viswatch.SinkConfig
	for _, sc := range in {
		if sc.Type != "stdout" {
			out = append(out, sc)
		}
	}
	return out
}

func split(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

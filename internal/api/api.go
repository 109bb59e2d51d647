// Package api exposes viswatch over HTTP.
//
//	POST /capture/full     CaptureRequest  -> CaptureResponse
//	POST /capture/element  CaptureRequest  -> CaptureResponse
//	POST /match/screen     FindRequest     -> match.Result
//	POST /match/element    CompareRequest  -> match.Result
//	GET  /results          ?kind&template&verdict&limit
//	GET  /results/stats
//	GET  /health
//
// A comparison that fails is still a 200: the verdict is in the body.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/viswatch"
	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/idgen"
	"github.com/hazyhaar/viswatch/internal/ledger"
	"github.com/hazyhaar/viswatch/kit"
	"github.com/hazyhaar/viswatch/locator"
	"github.com/hazyhaar/viswatch/match"
)

// Backend is the subset of *viswatch.Service the API serves.
type Backend interface {
	CaptureFull(ctx context.Context, req viswatch.CaptureRequest) (*viswatch.CaptureResponse, error)
	CaptureElement(ctx context.Context, req viswatch.CaptureRequest) (*viswatch.CaptureResponse, error)
	FindImage(ctx context.Context, req viswatch.FindRequest) (*match.Result, error)
	CompareElement(ctx context.Context, req viswatch.CompareRequest) (*match.Result, error)
	Results(ctx context.Context, req viswatch.ResultsRequest) ([]*match.Report, error)
	Stats(ctx context.Context) ([]ledger.Stats, error)
}

var _ Backend = (*viswatch.Service)(nil)

// Config configures the handler.
type Config struct {
	Backend Backend
	Logger  *slog.Logger
	// RequestIDs names requests that arrive without an X-Request-Id
	// header. Default: idgen.Default.
	RequestIDs idgen.Generator
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RequestIDs == nil {
		c.RequestIDs = idgen.Default
	}
}

// New builds the HTTP handler.
func New(cfg Config) http.Handler {
	cfg.defaults()
	b := cfg.Backend

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID(cfg.RequestIDs))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/capture/full", handle[viswatch.CaptureRequest](cfg.Logger, "capture_full", func(ctx context.Context, req *viswatch.CaptureRequest) (any, error) {
		return b.CaptureFull(ctx, *req)
	}))
	r.Post("/capture/element", handle[viswatch.CaptureRequest](cfg.Logger, "capture_element", func(ctx context.Context, req *viswatch.CaptureRequest) (any, error) {
		return b.CaptureElement(ctx, *req)
	}))
	r.Post("/match/screen", handle[viswatch.FindRequest](cfg.Logger, "match_screen", func(ctx context.Context, req *viswatch.FindRequest) (any, error) {
		return b.FindImage(ctx, *req)
	}))
	r.Post("/match/element", handle[viswatch.CompareRequest](cfg.Logger, "match_element", func(ctx context.Context, req *viswatch.CompareRequest) (any, error) {
		return b.CompareElement(ctx, *req)
	}))

	r.Route("/results", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			req := viswatch.ResultsRequest{
				Kind:     q.Get("kind"),
				Template: q.Get("template"),
				Verdict:  q.Get("verdict"),
				Limit:    queryInt(r, "limit", 0),
			}
			ep := kit.Logging(cfg.Logger, "results")(func(ctx context.Context, _ any) (any, error) {
				return b.Results(ctx, req)
			})
			resp, err := ep(r.Context(), nil)
			if err != nil {
				writeError(w, status(err), err)
				return
			}
			reports := resp.([]*match.Report)
			if reports == nil {
				reports = []*match.Report{}
			}
			writeJSON(w, 200, map[string]any{"results": reports, "count": len(reports)})
		})
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := b.Stats(r.Context())
			if err != nil {
				writeError(w, status(err), err)
				return
			}
			if stats == nil {
				stats = []ledger.Stats{}
			}
			writeJSON(w, 200, map[string]any{"templates": stats})
		})
	})
	return r
}

// handle decodes a JSON body into T and runs fn through the logging
// middleware.
func handle[T any](logger *slog.Logger, name string, fn func(context.Context, *T) (any, error)) http.HandlerFunc {
	ep := kit.Logging(logger, name)(func(ctx context.Context, req any) (any, error) {
		return fn(ctx, req.(*T))
	})
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		resp, err := ep(r.Context(), &req)
		if err != nil {
			writeError(w, status(err), err)
			return
		}
		writeJSON(w, 200, resp)
	}
}

// requestID propagates X-Request-Id, minting one when absent.
func requestID(gen idgen.Generator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = gen()
			}
			w.Header().Set("X-Request-Id", id)
			ctx := kit.WithTransport(r.Context(), "http")
			next.ServeHTTP(w, r.WithContext(kit.WithRequestID(ctx, id)))
		})
	}
}

func status(err error) int {
	switch {
	case errors.Is(err, viswatch.ErrInvalid), errors.Is(err, locator.ErrUnknownStrategy):
		return 400
	case errors.Is(err, controller.ErrNotFound), errors.Is(err, viswatch.ErrNoLedger):
		return 404
	case errors.Is(err, viswatch.ErrNotStarted):
		return 503
	default:
		return 500
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

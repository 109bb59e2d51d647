// Package viswatch is a visual regression toolkit for rendered UI
// surfaces. It drives a browser (or any controller.Controller) to capture
// screenshots, mask regions, and decide whether an element or the screen
// matches a reference image.
//
// A Service wires the pieces from configuration: the Chrome connection,
// the capturer, the comparators, the report sinks and the result ledger.
// It is exposed through the CLI, an HTTP API and MCP tools.
package viswatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/viswatch/capture"
	"github.com/hazyhaar/viswatch/compare"
	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/idgen"
	"github.com/hazyhaar/viswatch/internal/browser"
	"github.com/hazyhaar/viswatch/internal/ledger"
	"github.com/hazyhaar/viswatch/internal/sink"
	"github.com/hazyhaar/viswatch/match"
)

var (
	// ErrNoLedger is returned by Results when no ledger is configured.
	ErrNoLedger = errors.New("viswatch: no result ledger configured")
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("viswatch: not started")
	// ErrNoNavigator is returned when a URL is requested on a surface
	// that cannot navigate.
	ErrNoNavigator = errors.New("viswatch: surface cannot navigate")
	// ErrInvalid marks a request missing a required field or carrying an
	// unknown value.
	ErrInvalid = errors.New("viswatch: invalid request")
)

// Navigator loads a URL on the surface. Browser tabs implement it.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Service is the top-level orchestrator. Surface operations are
// serialized: the controller has a single active browsing context.
type Service struct {
	cfg    *Config
	logger *slog.Logger
	tokens idgen.Generator

	mgr *browser.Manager
	tab *browser.Tab
	nav Navigator
	ctl controller.Controller

	differ   match.PixelDiffer
	searcher match.TemplateSearcher
	extra    []Sink
	router   *sink.Router
	ledger   *ledger.Store

	capt    *capture.Capturer
	matcher *match.Matcher

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithController drives ctl instead of launching a browser. nav may be
// nil when the surface cannot load URLs.
func WithController(ctl controller.Controller, nav Navigator) Option {
	return func(s *Service) { s.ctl, s.nav = ctl, nav }
}

// WithSink adds a report sink next to the configured ones.
func WithSink(sk Sink) Option { return func(s *Service) { s.extra = append(s.extra, sk) } }

// WithDiffer replaces the configured pixel differ.
func WithDiffer(d match.PixelDiffer) Option { return func(s *Service) { s.differ = d } }

// WithSearcher replaces the configured template searcher.
func WithSearcher(ts match.TemplateSearcher) Option { return func(s *Service) { s.searcher = ts } }

// WithTokens sets the artifact and report ID generator. Default: idgen.Default.
func WithTokens(g idgen.Generator) Option { return func(s *Service) { s.tokens = g } }

// New creates a Service from configuration. Call Start before use.
func New(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{
		cfg:    cfg,
		logger: slog.Default(),
		tokens: idgen.Default,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	sinks, err := buildSinks(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.router = sink.NewRouter(s.logger, append(sinks, s.extra...)...)

	if s.differ == nil {
		if s.differ, err = compare.NewDiffer(cfg.Compare.Differ, cfg.Compare.Options()); err != nil {
			return nil, fmt.Errorf("viswatch: %w", err)
		}
	}
	if s.searcher == nil {
		if s.searcher, err = compare.NewSearcher(cfg.Compare.Searcher, cfg.Compare.Options()); err != nil {
			return nil, fmt.Errorf("viswatch: %w", err)
		}
	}

	if cfg.Ledger.Path != "" {
		st, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("viswatch: open ledger: %w", err)
		}
		s.ledger = st
		s.router.Add(st)
	}

	if s.ctl == nil {
		s.mgr = browser.NewManager(browser.Config{
			RemoteURL: cfg.Browser.Remote,
			Headful:   cfg.Browser.Stealth == "headful",
			Width:     cfg.Browser.Width,
			Height:    cfg.Browser.Height,
			Device:    cfg.Browser.Device,
			Logger:    s.logger,
		})
	}
	return s, nil
}

// Start connects to the browser, opens the start page and builds the
// capture pipeline. With WithController, only the pipeline is built.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctl == nil {
		if _, err := s.mgr.Start(ctx); err != nil {
			return fmt.Errorf("viswatch: start browser: %w", err)
		}
		tab, err := browser.OpenTab(ctx, s.mgr, s.cfg.Browser.StartURL)
		if err != nil {
			return fmt.Errorf("viswatch: open tab: %w", err)
		}
		s.tab, s.nav = tab, tab
		s.ctl = browser.NewController(tab)
	}

	density, err := s.cfg.SurfaceDensity()
	if err != nil {
		return fmt.Errorf("viswatch: %w", err)
	}
	s.capt = capture.New(capture.Config{
		Controller: s.ctl,
		Density:    density,
		BlurRadius: s.cfg.Capture.BlurRadius,
		Logger:     s.logger,
	})
	s.matcher = match.New(match.Config{
		Capturer: s.capt,
		Searcher: s.searcher,
		Differ:   s.differ,
		Policy:   s.cfg.Match.Policy(),
		Prefix:   s.cfg.Artifacts.Prefix,
		Tokens:   s.tokens,
		Reporter: s.router,
		Logger:   s.logger,
	})
	s.logger.Info("viswatch: started", "device", s.cfg.Browser.Device, "mobile", s.ctl.Mobile(), "density", density.String(),
		"differ", s.cfg.Compare.Differ, "searcher", s.cfg.Compare.Searcher)
	return nil
}

// Close releases the tab, the browser, the sinks and the ledger.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.tab != nil {
		errs = append(errs, s.tab.Close())
	}
	if s.mgr != nil {
		errs = append(errs, s.mgr.Close())
	}
	errs = append(errs, s.router.Close())
	return errors.Join(errs...)
}

// Ledger returns the result ledger, or nil.
func (s *Service) Ledger() *ledger.Store { return s.ledger }

func (s *Service) ready() error {
	if s.capt == nil {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) navigate(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if s.nav == nil {
		return ErrNoNavigator
	}
	return s.nav.Navigate(ctx, url)
}

// artifact returns a path under the artifacts directory. A requested name
// is reduced to its base so callers cannot write elsewhere.
func (s *Service) artifact(name, kind string) string {
	if name == "" {
		name = s.cfg.Artifacts.Prefix + kind + "_" + s.tokens() + ".png"
	}
	return filepath.Join(s.cfg.Artifacts.Dir, filepath.Base(name))
}

// template resolves a reference image path inside the templates
// directory. Absolute paths are accepted when they point inside it.
func (s *Service) template(p string) (string, error) {
	dir, err := filepath.Abs(s.cfg.Artifacts.Templates)
	if err != nil {
		return "", fmt.Errorf("viswatch: templates dir: %w", err)
	}
	rel := p
	if filepath.IsAbs(p) {
		if rel, err = filepath.Rel(dir, p); err != nil {
			return "", fmt.Errorf("%w: template %q outside %s", ErrInvalid, p, dir)
		}
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: template %q outside %s", ErrInvalid, p, dir)
	}
	return filepath.Join(dir, rel), nil
}

// Navigate loads url on the surface.
func (s *Service) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.navigate(ctx, url)
}

package viswatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/viswatch/capture"
	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/internal/ledger"
	"github.com/hazyhaar/viswatch/match"
)

// CaptureRequest asks for a screenshot of the viewport, or of one element
// when Selector is set.
type CaptureRequest struct {
	URL      string   `json:"url,omitempty"`
	Selector string   `json:"selector,omitempty"`
	Name     string   `json:"name,omitempty"`
	Blur     []string `json:"blur,omitempty"`
	Radius   int      `json:"radius,omitempty"`
	Redact   []string `json:"redact,omitempty"`
}

func (r CaptureRequest) masks() capture.Masks {
	return capture.Masks{Blur: r.Blur, Radius: r.Radius, Redact: r.Redact}
}

// CaptureResponse locates the saved screenshot.
type CaptureResponse struct {
	Path     string `json:"path"`
	Selector string `json:"selector,omitempty"`
}

// CaptureFull saves a masked viewport screenshot.
func (s *Service) CaptureFull(ctx context.Context, req CaptureRequest) (*CaptureResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.navigate(ctx, req.URL); err != nil {
		return nil, err
	}

	path := s.artifact(req.Name, "full")
	if err := s.capt.FullScreen(ctx, path, req.masks()); err != nil {
		return nil, err
	}
	s.logger.Info("viswatch: captured screen", "path", path)
	return &CaptureResponse{Path: path}, nil
}

// CaptureElement saves a screenshot cropped to req.Selector.
func (s *Service) CaptureElement(ctx context.Context, req CaptureRequest) (*CaptureResponse, error) {
	if req.Selector == "" {
		return nil, fmt.Errorf("%w: capture element: selector is required", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.navigate(ctx, req.URL); err != nil {
		return nil, err
	}

	path := s.artifact(req.Name, "element")
	if err := s.capt.Element(ctx, path, req.Selector, req.masks()); err != nil {
		return nil, err
	}
	s.logger.Info("viswatch: captured element", "selector", req.Selector, "path", path)
	return &CaptureResponse{Path: path, Selector: req.Selector}, nil
}

// FindRequest asks whether Template appears on screen.
type FindRequest struct {
	URL       string `json:"url,omitempty"`
	Template  string `json:"template"`
	MinPoints int    `json:"min_points,omitempty"`
}

// FindImage searches the screen for req.Template.
func (s *Service) FindImage(ctx context.Context, req FindRequest) (*match.Result, error) {
	if req.Template == "" {
		return nil, fmt.Errorf("%w: find image: template is required", ErrInvalid)
	}
	template, err := s.template(req.Template)
	if err != nil {
		return nil, err
	}
	minPoints := req.MinPoints
	if minPoints <= 0 {
		minPoints = s.cfg.Match.MinPoints
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.navigate(ctx, req.URL); err != nil {
		return nil, err
	}
	res, err := s.matcher.ImageInScreen(ctx, template, minPoints, s.cfg.Artifacts.Dir)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CompareRequest asks whether the element matches Template.
type CompareRequest struct {
	URL       string   `json:"url,omitempty"`
	Selector  string   `json:"selector"`
	Template  string   `json:"template"`
	Tolerance *float64 `json:"tolerance,omitempty"`
}

// CompareElement diffs the element against req.Template.
func (s *Service) CompareElement(ctx context.Context, req CompareRequest) (*match.Result, error) {
	if req.Selector == "" || req.Template == "" {
		return nil, fmt.Errorf("%w: compare element: selector and template are required", ErrInvalid)
	}
	template, err := s.template(req.Template)
	if err != nil {
		return nil, err
	}
	tol := s.cfg.Match.Tolerance
	if req.Tolerance != nil {
		tol = *req.Tolerance
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.navigate(ctx, req.URL); err != nil {
		return nil, err
	}
	res, err := s.matcher.ElementCompare(ctx, req.Selector, template, s.cfg.Artifacts.Dir, tol)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ScrollTo scrolls the element into view.
func (s *Service) ScrollTo(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.capt.ScrollTo(ctx, selector)
}

// Click clicks at viewport coordinates with the named button ("left" or
// "right").
func (s *Service) Click(ctx context.Context, x, y float64, button string) error {
	var b controller.Button
	switch strings.ToLower(button) {
	case "", "left":
		b = controller.ButtonLeft
	case "right":
		b = controller.ButtonRight
	default:
		return fmt.Errorf("%w: click: unknown button %q", ErrInvalid, button)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return err
	}
	return s.capt.ClickAt(ctx, x, y, b)
}

// ResultsRequest filters the ledger.
type ResultsRequest struct {
	Kind     string `json:"kind,omitempty"`    // screen | element
	Template string `json:"template,omitempty"`
	Verdict  string `json:"verdict,omitempty"` // pass | fail
	Limit    int    `json:"limit,omitempty"`
}

// Results lists recorded comparisons, most recent first.
func (s *Service) Results(ctx context.Context, req ResultsRequest) ([]*match.Report, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}
	f := ledger.Filter{Kind: match.Kind(req.Kind), Template: req.Template, Limit: req.Limit}
	switch strings.ToLower(req.Verdict) {
	case "":
	case "pass":
		v := match.Pass
		f.Verdict = &v
	case "fail":
		v := match.Fail
		f.Verdict = &v
	default:
		return nil, fmt.Errorf("%w: results: unknown verdict %q", ErrInvalid, req.Verdict)
	}
	return s.ledger.List(ctx, f)
}

// Stats aggregates ledger verdicts per reference image.
func (s *Service) Stats(ctx context.Context) ([]ledger.Stats, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}
	return s.ledger.StatsByTemplate(ctx)
}

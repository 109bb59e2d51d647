// Package capture takes screenshots of a controller's surface and maps
// located elements onto them.
//
// It owns the coordinate pipeline (frame offset, density factor, rounding)
// and the masking passes that walk the main document and every frame. All
// operations are synchronous and run against the controller's single
// active browsing context; routines that move that context put it back
// before returning.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/regions"
)

// Config configures a Capturer.
type Config struct {
	Controller controller.Controller

	// Density selects the CSS-to-device pixel factor. Default: DensityOS.
	Density geometry.Density

	// BlurRadius is used when Masks.Radius is zero. Default: 50.
	BlurRadius int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.BlurRadius <= 0 {
		c.BlurRadius = regions.DefaultRadius
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Masks lists the selectors to blur and redact after a capture.
type Masks struct {
	Blur   []string `json:"blur,omitempty" yaml:"blur"`
	Radius int      `json:"radius,omitempty" yaml:"radius"`
	Redact []string `json:"redact,omitempty" yaml:"redact"`
}

// Empty reports whether there is nothing to mask.
func (m Masks) Empty() bool { return len(m.Blur) == 0 && len(m.Redact) == 0 }

// Capturer runs captures against one controller.
type Capturer struct {
	cfg Config
	ctl controller.Controller
	log *slog.Logger
}

// New creates a Capturer.
func New(cfg Config) *Capturer {
	cfg.defaults()
	return &Capturer{cfg: cfg, ctl: cfg.Controller, log: cfg.Logger}
}

// Controller returns the underlying controller.
func (c *Capturer) Controller() controller.Controller { return c.ctl }

// FullScreen saves a viewport screenshot to path, then blurs and redacts
// the masked selectors in the active context and, on desktop surfaces, in
// every frame of the top-level document.
func (c *Capturer) FullScreen(ctx context.Context, path string, m Masks) error {
	if err := c.screenshot(ctx, path); err != nil {
		return err
	}

	if len(m.Blur) > 0 {
		radius := c.radius(m)
		pass := func(ctx context.Context) error {
			return c.BlurRegions(ctx, m.Blur, radius, path)
		}
		if err := c.everywhere(ctx, pass); err != nil {
			return err
		}
	}

	if len(m.Redact) > 0 {
		pass := func(ctx context.Context) error {
			return c.RedactRegions(ctx, m.Redact, path)
		}
		if err := c.everywhere(ctx, pass); err != nil {
			return err
		}
	}
	return nil
}

// everywhere runs pass in the active context, then once per frame.
func (c *Capturer) everywhere(ctx context.Context, pass Pass) error {
	if err := pass(ctx); err != nil {
		return err
	}
	if c.ctl.Mobile() {
		return nil
	}
	_, err := c.ForEachFrame(ctx, pass)
	return err
}

// Element saves a screenshot to path and crops it to the element matched
// by selector. Masks apply to the active context only. A selector that
// does not resolve is an error.
func (c *Capturer) Element(ctx context.Context, path, selector string, m Masks) error {
	if c.ctl.Mobile() {
		return c.MobileElement(ctx, path, selector, m)
	}

	if err := c.screenshot(ctx, path); err != nil {
		return err
	}

	loc, el, err := controller.Resolve(ctx, c.ctl, selector)
	if err != nil {
		return fmt.Errorf("capture: element %q: %w", selector, err)
	}
	rect, err := c.LocatorRect(ctx, loc, el)
	if err != nil {
		return err
	}

	if err := c.mask(ctx, path, m); err != nil {
		return err
	}
	return regions.Crop(rect, path)
}

// MobileElement captures an element of a flat-tree surface. The element is
// resolved before the screenshot and its rectangle comes from the driver.
func (c *Capturer) MobileElement(ctx context.Context, path, selector string, m Masks) error {
	_, el, err := controller.Resolve(ctx, c.ctl, selector)
	if err != nil {
		return fmt.Errorf("capture: element %q: %w", selector, err)
	}
	box, err := el.Box(ctx)
	if err != nil {
		return fmt.Errorf("capture: element %q box: %w", selector, err)
	}

	if err := c.screenshot(ctx, path); err != nil {
		return err
	}
	// The crop uses the element's raw location and size. Density scaling
	// applies to mask regions only.
	rect := geometry.Normalize(box, geometry.Offset{}, true, 1)

	if err := c.mask(ctx, path, m); err != nil {
		return err
	}
	return regions.Crop(rect, path)
}

func (c *Capturer) mask(ctx context.Context, path string, m Masks) error {
	if len(m.Blur) > 0 {
		if err := c.BlurRegions(ctx, m.Blur, c.radius(m), path); err != nil {
			return err
		}
	}
	if len(m.Redact) > 0 {
		if err := c.RedactRegions(ctx, m.Redact, path); err != nil {
			return err
		}
	}
	return nil
}

// ScrollTo scrolls the element matched by selector into view.
func (c *Capturer) ScrollTo(ctx context.Context, selector string) error {
	_, el, err := controller.Resolve(ctx, c.ctl, selector)
	if err != nil {
		return fmt.Errorf("capture: scroll %q: %w", selector, err)
	}
	return c.ctl.ScrollIntoView(ctx, el)
}

// ClickAt clicks at viewport coordinates.
func (c *Capturer) ClickAt(ctx context.Context, x, y float64, b controller.Button) error {
	return c.ctl.Click(ctx, x, y, b)
}

// Screenshot returns a fresh PNG of the viewport.
func (c *Capturer) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := c.ctl.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}
	return data, nil
}

func (c *Capturer) screenshot(ctx context.Context, path string) error {
	data, err := c.Screenshot(ctx)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("capture: mkdir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("capture: write %s: %w", path, err)
	}
	return nil
}

func (c *Capturer) radius(m Masks) int {
	if m.Radius > 0 {
		return m.Radius
	}
	return c.cfg.BlurRadius
}

// BlurRegions blurs every selector that resolves in the active context.
// Selectors that match nothing are skipped.
func (c *Capturer) BlurRegions(ctx context.Context, selectors []string, radius int, path string) error {
	return c.eachRegion(ctx, selectors, func(r geometry.Rect) error {
		return regions.Blur(r, radius, path)
	})
}

// RedactRegions redacts every selector that resolves in the active
// context. Selectors that match nothing are skipped.
func (c *Capturer) RedactRegions(ctx context.Context, selectors []string, path string) error {
	return c.eachRegion(ctx, selectors, func(r geometry.Rect) error {
		return regions.Redact(r, path)
	})
}

func (c *Capturer) eachRegion(ctx context.Context, selectors []string, apply func(geometry.Rect) error) error {
	for _, sel := range selectors {
		_, el, err := controller.Resolve(ctx, c.ctl, sel)
		if errors.Is(err, controller.ErrNotFound) {
			c.log.Debug("capture: region not found, skipped", "selector", sel)
			continue
		}
		if err != nil {
			return fmt.Errorf("capture: region %q: %w", sel, err)
		}

		rect, err := c.ElementRect(ctx, el)
		if errors.Is(err, controller.ErrNotFound) || errors.Is(err, controller.ErrStale) {
			c.log.Debug("capture: region vanished, skipped", "selector", sel, "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("capture: region %q: %w", sel, err)
		}
		if err := apply(rect); err != nil {
			return err
		}
	}
	return nil
}

package capture

import (
	"context"
	"fmt"

	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/internal/script"
	"github.com/hazyhaar/viswatch/locator"
)

// FrameOffset returns the cumulative offset of the active frame relative
// to the top-level viewport. Mobile surfaces have no frames and always get
// the zero offset, as does any surface where the script cannot run.
func (c *Capturer) FrameOffset(ctx context.Context) geometry.Offset {
	if c.ctl.Mobile() {
		return geometry.Offset{}
	}
	var off geometry.Offset
	if err := c.ctl.Eval(ctx, script.FrameOffset, &off); err != nil {
		c.log.Debug("capture: frame offset unavailable, using zero", "error", err)
		return geometry.Offset{}
	}
	return off
}

// ElementRect maps a located element to screenshot pixels: its
// frame-local box is shifted by the active frame offset, then scaled.
func (c *Capturer) ElementRect(ctx context.Context, el controller.Element) (geometry.Rect, error) {
	box, err := el.Box(ctx)
	if err != nil {
		return geometry.Rect{}, fmt.Errorf("capture: element box: %w", err)
	}
	mobile := c.ctl.Mobile()
	var off geometry.Offset
	if !mobile {
		off = c.FrameOffset(ctx)
	}
	return geometry.Normalize(box, off, mobile, c.scale(ctx)), nil
}

// LocatorRect maps the locator's first match in the current document to
// screenshot pixels using the client rect reported by script. When the
// script fails the frame-local box of el is used instead.
func (c *Capturer) LocatorRect(ctx context.Context, loc locator.Locator, el controller.Element) (geometry.Rect, error) {
	if c.ctl.Mobile() {
		return c.ElementRect(ctx, el)
	}

	var box geometry.Box
	if err := c.ctl.Eval(ctx, script.Rect(loc.Strategy), &box, loc.Value); err != nil {
		c.log.Debug("capture: script rect unavailable, using element box", "locator", loc.String(), "error", err)
		b, err := el.Box(ctx)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("capture: element box: %w", err)
		}
		box = b
	}
	return geometry.Normalize(box, geometry.Offset{}, false, c.scale(ctx)), nil
}

// scale resolves the density factor for this capture.
func (c *Capturer) scale(ctx context.Context) float64 {
	if f, ok := c.cfg.Density.Static(); ok {
		return f
	}
	var dpr float64
	if err := c.ctl.Eval(ctx, script.DevicePixelRatio, &dpr); err != nil || dpr <= 0 {
		c.log.Debug("capture: device pixel ratio unavailable, using OS factor", "error", err)
		return geometry.OSFactor()
	}
	return dpr
}

package capture

import (
	"context"
	"fmt"

	"github.com/hazyhaar/viswatch/controller"
)

// Pass is a masking pass run inside one browsing context.
type Pass func(ctx context.Context) error

// frameTags are enumerated in this order and concatenated.
var frameTags = []string{"frame", "iframe"}

// WithTopLevel switches to the top-level document, runs fn and restores
// whatever context was active before, on every exit path.
func (c *Capturer) WithTopLevel(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	prev, err := c.ctl.ActiveFrame(ctx)
	if err != nil {
		return fmt.Errorf("capture: active frame: %w", err)
	}
	if err := c.ctl.SwitchToTop(ctx); err != nil {
		return fmt.Errorf("capture: switch to top: %w", err)
	}
	defer func() {
		if rerr := c.ctl.RestoreFrame(ctx, prev); rerr != nil {
			c.log.Warn("capture: restore frame failed", "error", rerr)
			if err == nil {
				err = fmt.Errorf("capture: restore frame: %w", rerr)
			}
		}
	}()
	return fn(ctx)
}

// inFrame runs fn inside the frame element and switches back to the
// top-level document afterwards. ok is false when the switch failed.
func (c *Capturer) inFrame(ctx context.Context, el controller.Element, fn Pass) (ok bool, err error) {
	if err := c.ctl.SwitchToFrame(ctx, el); err != nil {
		return false, err
	}
	defer func() {
		if serr := c.ctl.SwitchToTop(ctx); serr != nil && err == nil {
			err = fmt.Errorf("capture: switch to top: %w", serr)
		}
	}()
	return true, fn(ctx)
}

// ForEachFrame runs pass once inside every frame and iframe of the
// top-level document. Siblings are visited flat, frames before iframes.
// Frames that cannot be entered are skipped. The active context in effect
// before the call is restored afterwards. It returns the number of frames
// the pass ran in.
func (c *Capturer) ForEachFrame(ctx context.Context, pass Pass) (int, error) {
	visited := 0
	err := c.WithTopLevel(ctx, func(ctx context.Context) error {
		var frames []controller.Element
		for _, tag := range frameTags {
			els, err := c.ctl.FindElementsByTag(ctx, tag)
			if err != nil {
				return fmt.Errorf("capture: list %s elements: %w", tag, err)
			}
			frames = append(frames, els...)
		}
		c.log.Debug("capture: walking frames", "count", len(frames))

		for i, fr := range frames {
			ok, err := c.inFrame(ctx, fr, pass)
			if !ok {
				c.log.Debug("capture: frame skipped", "index", i, "error", err)
				continue
			}
			if err != nil {
				return err
			}
			visited++
		}
		return nil
	})
	return visited, err
}

package browser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/internal/script"
	"github.com/hazyhaar/viswatch/locator"
)

// Controller drives one tab. The active browsing context is the top-level
// page or the last frame switched into; screenshots and clicks always
// target the top-level viewport.
type Controller struct {
	mu   sync.Mutex
	top  *rod.Page
	path []*rod.Page
}

// framePath is the FrameHandle of a Controller.
type framePath []*rod.Page

// NewController wraps tab.
func NewController(tab *Tab) *Controller {
	return &Controller{top: tab.Page}
}

type element struct {
	el *rod.Element
}

// evaluator is the part of *rod.Element that Box needs.
type evaluator interface {
	Eval(js string, params ...any) (*proto.RuntimeRemoteObject, error)
}

// Box reports the element's client rect in its own document. Layout quads
// from the DevTools protocol are in root-viewport space and are not used:
// the frame offset is added by the caller.
func (e *element) Box(ctx context.Context) (geometry.Box, error) {
	b, err := clientBox(e.el.Context(ctx))
	if err == nil {
		return b, nil
	}
	if ctx.Err() != nil {
		return geometry.Box{}, fmt.Errorf("browser: element box: %w", err)
	}
	return geometry.Box{}, fmt.Errorf("browser: element box: %w: %v", controller.ErrStale, err)
}

func clientBox(el evaluator) (geometry.Box, error) {
	res, err := el.Eval(script.ClientRect)
	if err != nil {
		return geometry.Box{}, err
	}
	var b geometry.Box
	if err := res.Value.Unmarshal(&b); err != nil {
		return geometry.Box{}, err
	}
	return b, nil
}

func (c *Controller) current() *rod.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.path); n > 0 {
		return c.path[n-1]
	}
	return c.top
}

func (c *Controller) FindElement(ctx context.Context, loc locator.Locator) (controller.Element, error) {
	page := c.current().Context(ctx).Sleeper(rod.NotFoundSleeper)
	el, err := page.ElementByJS(rod.Eval(script.Find(loc.Strategy), loc.Value))
	if errors.As(err, new(*rod.ElementNotFoundError)) {
		return nil, controller.NotFound(loc)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", loc, err)
	}
	return &element{el: el}, nil
}

func (c *Controller) FindElementsByTag(ctx context.Context, tag string) ([]controller.Element, error) {
	els, err := c.current().Context(ctx).Elements(tag)
	if err != nil {
		return nil, fmt.Errorf("browser: elements %s: %w", tag, err)
	}
	out := make([]controller.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out, nil
}

func (c *Controller) Eval(ctx context.Context, js string, out any, args ...any) error {
	res, err := c.current().Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", controller.ErrScript, err)
	}
	if out == nil {
		return nil
	}
	if err := res.Value.Unmarshal(out); err != nil {
		return fmt.Errorf("%w: decode result: %v", controller.ErrScript, err)
	}
	return nil
}

func (c *Controller) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := c.top.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

func (c *Controller) SwitchToFrame(ctx context.Context, el controller.Element) error {
	e, ok := el.(*element)
	if !ok {
		return fmt.Errorf("%w: foreign element", controller.ErrNoSuchFrame)
	}
	frame, err := e.el.Context(ctx).Frame()
	if err != nil {
		return fmt.Errorf("%w: %v", controller.ErrNoSuchFrame, err)
	}
	c.mu.Lock()
	c.path = append(c.path, frame)
	c.mu.Unlock()
	return nil
}

func (c *Controller) SwitchToTop(context.Context) error {
	c.mu.Lock()
	c.path = nil
	c.mu.Unlock()
	return nil
}

func (c *Controller) ActiveFrame(context.Context) (controller.FrameHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return framePath(slices.Clone(c.path)), nil
}

func (c *Controller) RestoreFrame(_ context.Context, h controller.FrameHandle) error {
	p, ok := h.(framePath)
	if !ok {
		return fmt.Errorf("%w: foreign frame handle", controller.ErrNoSuchFrame)
	}
	c.mu.Lock()
	c.path = slices.Clone(p)
	c.mu.Unlock()
	return nil
}

func (c *Controller) ScrollIntoView(ctx context.Context, el controller.Element) error {
	e, ok := el.(*element)
	if !ok {
		return fmt.Errorf("browser: scroll: foreign element")
	}
	if err := e.el.Context(ctx).ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

func (c *Controller) Click(ctx context.Context, x, y float64, b controller.Button) error {
	btn := proto.InputMouseButtonLeft
	if b == controller.ButtonRight {
		btn = proto.InputMouseButtonRight
	}
	mouse := c.top.Context(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	if err := mouse.Click(btn, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

// Mobile is false even under device emulation: an emulated page keeps
// its frames, and its deviceScaleFactor is read back as the pixel ratio.
func (c *Controller) Mobile() bool { return false }

var _ controller.Controller = (*Controller)(nil)

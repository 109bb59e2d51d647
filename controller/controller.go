// Package controller defines the automation capability viswatch drives.
//
// A Controller owns one rendering surface and one piece of ambient state:
// the active browsing context (the frame that element lookups and scripts
// run against). Callers that switch context must restore it; see
// capture.WithTopLevel for the scoped form.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/locator"
)

var (
	// ErrNotFound reports that no element matched a locator.
	ErrNotFound = errors.New("controller: element not found")
	// ErrNoSuchFrame reports a stale or non-frame element on frame switch.
	ErrNoSuchFrame = errors.New("controller: no such frame")
	// ErrScript reports a failed script evaluation.
	ErrScript = errors.New("controller: script failed")
	// ErrStale reports an element detached from its document.
	ErrStale = errors.New("controller: stale element")
)

// Element is an opaque handle to a located node.
type Element interface {
	// Box returns the element's location and size in CSS pixels, relative
	// to the viewport of the document that owns it. For an element inside
	// a frame that is the frame's own viewport, not the top-level one.
	// A detached element yields an error wrapping ErrStale.
	Box(ctx context.Context) (geometry.Box, error)
}

// FrameHandle is an opaque snapshot of the active browsing context,
// produced by ActiveFrame and consumed by RestoreFrame.
type FrameHandle any

// Button selects the mouse button for Click.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
)

// Controller is the capability set consumed by capture and match.
type Controller interface {
	// FindElement returns the first element matching loc in the active
	// context, or an error wrapping ErrNotFound.
	FindElement(ctx context.Context, loc locator.Locator) (Element, error)
	// FindElementsByTag returns every element with the tag in the active
	// context, in document order.
	FindElementsByTag(ctx context.Context, tag string) ([]Element, error)
	// Eval runs a JavaScript function expression in the active context and
	// decodes its JSON result into out (which may be nil). Failures wrap
	// ErrScript.
	Eval(ctx context.Context, js string, out any, args ...any) error
	// Screenshot captures the top-level viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	SwitchToFrame(ctx context.Context, el Element) error
	SwitchToTop(ctx context.Context) error
	ActiveFrame(ctx context.Context) (FrameHandle, error)
	RestoreFrame(ctx context.Context, h FrameHandle) error

	ScrollIntoView(ctx context.Context, el Element) error
	Click(ctx context.Context, x, y float64, b Button) error

	// Mobile reports a flat-tree surface with no nested browsing contexts.
	Mobile() bool
}

// Resolve parses selector and looks it up in the active context. The
// controller's not-found error is returned as is.
func Resolve(ctx context.Context, c Controller, selector string) (locator.Locator, Element, error) {
	loc, err := locator.Parse(selector)
	if err != nil {
		return locator.Locator{}, nil, err
	}
	el, err := c.FindElement(ctx, loc)
	if err != nil {
		return loc, nil, err
	}
	return loc, el, nil
}

// NotFound wraps ErrNotFound with the locator that missed.
func NotFound(loc locator.Locator) error {
	return fmt.Errorf("%w: %s", ErrNotFound, loc)
}

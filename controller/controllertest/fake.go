// Package controllertest provides an in-memory Controller for tests.
//
// A Fake models a top-level document holding elements and frame elements,
// each frame owning a nested document. It tracks the active context the
// same way a real driver does, so tests can assert it is restored.
package controllertest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/internal/script"
	"github.com/hazyhaar/viswatch/locator"
)

// Doc is one browsing context.
type Doc struct {
	Name string
	// Offset is what the frame-offset script reports inside this document.
	Offset geometry.Offset
	// Elements maps "strategy:value" to the driver-reported box.
	Elements map[string]geometry.Box
	// Detached marks elements that are found but go stale before their
	// box is read.
	Detached map[string]bool
	Frames   []*Frame
}

// Frame is a frame or iframe element of a Doc.
type Frame struct {
	Tag   string
	Box   geometry.Box
	Doc   *Doc
	Stale bool
}

// Element is the handle returned by FindElement.
type Element struct {
	Key string
	Doc *Doc
	box geometry.Box
}

func (e *Element) Box(context.Context) (geometry.Box, error) {
	if e.Doc.Detached[e.Key] {
		return geometry.Box{}, fmt.Errorf("%w: %s", controller.ErrStale, e.Key)
	}
	return e.box, nil
}

// FrameElement is the handle returned by FindElementsByTag.
type FrameElement struct {
	Frame *Frame
}

func (e *FrameElement) Box(context.Context) (geometry.Box, error) { return e.Frame.Box, nil }

// Click records a Click call.
type Click struct {
	X, Y   float64
	Button controller.Button
}

// Fake implements controller.Controller.
type Fake struct {
	mu sync.Mutex

	Top      *Doc
	IsMobile bool
	// Image is returned, PNG-encoded, by Screenshot.
	Image image.Image
	// Frames returns successive screenshots when set; the last repeats.
	Frames []image.Image
	// FailScripts makes every Eval fail with ErrScript.
	FailScripts bool
	// DPR is returned by the device pixel ratio script. Zero means 1.
	DPR float64

	active *Doc

	Screenshots int
	Switches    []string
	Scrolled    []string
	Clicks      []Click
}

// New returns a Fake whose top-level document is top.
func New(top *Doc) *Fake {
	if top.Elements == nil {
		top.Elements = map[string]geometry.Box{}
	}
	return &Fake{Top: top, active: top}
}

// Active returns the name of the active document.
func (f *Fake) Active() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().Name
}

// Enter makes doc the active context without recording a switch.
func (f *Fake) Enter(doc *Doc) {
	f.mu.Lock()
	f.active = doc
	f.mu.Unlock()
}

func (f *Fake) current() *Doc {
	if f.active == nil {
		return f.Top
	}
	return f.active
}

func (f *Fake) FindElement(_ context.Context, loc locator.Locator) (controller.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.current()
	box, ok := doc.Elements[loc.String()]
	if !ok {
		return nil, controller.NotFound(loc)
	}
	return &Element{Key: loc.String(), Doc: doc, box: box}, nil
}

func (f *Fake) FindElementsByTag(_ context.Context, tag string) ([]controller.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []controller.Element
	for _, fr := range f.current().Frames {
		if fr.Tag == tag {
			out = append(out, &FrameElement{Frame: fr})
		}
	}
	return out, nil
}

func (f *Fake) Eval(_ context.Context, js string, out any, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailScripts {
		return fmt.Errorf("%w: evaluation disabled", controller.ErrScript)
	}

	var res any
	switch js {
	case script.FrameOffset:
		res = f.current().Offset
	case script.DevicePixelRatio:
		dpr := f.DPR
		if dpr == 0 {
			dpr = 1
		}
		res = dpr
	default:
		found := false
		for _, s := range locator.Strategies {
			if js != script.Rect(s) {
				continue
			}
			if len(args) != 1 {
				return fmt.Errorf("%w: rect script wants one argument", controller.ErrScript)
			}
			key := locator.Locator{Strategy: s, Value: fmt.Sprint(args[0])}.String()
			box, ok := f.current().Elements[key]
			if !ok {
				return fmt.Errorf("%w: TypeError: e is null", controller.ErrScript)
			}
			res, found = box, true
			break
		}
		if !found {
			return fmt.Errorf("%w: unsupported script", controller.ErrScript)
		}
	}

	if out == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *Fake) Screenshot(context.Context) ([]byte, error) {
	f.mu.Lock()
	img := f.Image
	if len(f.Frames) > 0 {
		i := f.Screenshots
		if i >= len(f.Frames) {
			i = len(f.Frames) - 1
		}
		img = f.Frames[i]
	}
	f.Screenshots++
	f.mu.Unlock()

	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *Fake) SwitchToFrame(_ context.Context, el controller.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fe, ok := el.(*FrameElement)
	if !ok || fe.Frame.Stale || fe.Frame.Doc == nil {
		return controller.ErrNoSuchFrame
	}
	f.active = fe.Frame.Doc
	f.Switches = append(f.Switches, fe.Frame.Doc.Name)
	return nil
}

func (f *Fake) SwitchToTop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = f.Top
	f.Switches = append(f.Switches, f.Top.Name)
	return nil
}

func (f *Fake) ActiveFrame(context.Context) (controller.FrameHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current(), nil
}

func (f *Fake) RestoreFrame(_ context.Context, h controller.FrameHandle) error {
	doc, ok := h.(*Doc)
	if !ok {
		return controller.ErrNoSuchFrame
	}
	f.mu.Lock()
	f.active = doc
	f.mu.Unlock()
	return nil
}

func (f *Fake) ScrollIntoView(_ context.Context, el controller.Element) error {
	e, ok := el.(*Element)
	if !ok {
		return controller.ErrNotFound
	}
	f.mu.Lock()
	f.Scrolled = append(f.Scrolled, e.Key)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Click(_ context.Context, x, y float64, b controller.Button) error {
	f.mu.Lock()
	f.Clicks = append(f.Clicks, Click{X: x, Y: y, Button: b})
	f.mu.Unlock()
	return nil
}

func (f *Fake) Mobile() bool { return f.IsMobile }

var _ controller.Controller = (*Fake)(nil)

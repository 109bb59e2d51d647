// Package geometry converts element boxes reported by an automation
// controller into integer rectangles in screenshot-pixel space.
//
// Three coordinate spaces meet here: frame-local CSS pixels (what a script
// running inside a nested frame sees), viewport CSS pixels (what the
// top-level document sees) and device pixels (what the screenshot holds).
// A frame offset moves a box from the first to the second, a density
// factor moves it from the second to the third.
package geometry

import (
	"image"
	"math"
)

// Box is an element bounding box in CSS pixels, as reported by
// getBoundingClientRect or by the driver's location and size.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// BoxFromSize builds a Box from a location and a size.
func BoxFromSize(x, y, width, height float64) Box {
	return Box{Left: x, Top: y, Right: x + width, Bottom: y + height}
}

// Offset is the cumulative top-left displacement of the active frame
// relative to the top-level document. The zero value is the fallback used
// whenever the offset cannot be computed.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an absolute rectangle in screenshot pixels. Edges are
// non-negative, Left <= Right and Top <= Bottom.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether r covers no pixel.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Normalize turns a raw box into a screenshot rectangle.
//
// On desktop surfaces the frame offset shifts all four edges. On mobile
// surfaces the element tree is flat and the offset is ignored. Each edge is
// rounded up before and after scaling, so the crop never drops a partially
// covered edge pixel and an integral scale multiplies the edges exactly.
func Normalize(box Box, off Offset, mobile bool, scale float64) Rect {
	if mobile {
		off = Offset{}
	}
	if scale <= 0 {
		scale = 1
	}
	edge := func(v, shift float64) int {
		n := math.Ceil(math.Ceil(v+shift) * scale)
		if n < 0 {
			return 0
		}
		return int(n)
	}
	r := Rect{
		Left:   edge(box.Left, off.X),
		Top:    edge(box.Top, off.Y),
		Right:  edge(box.Right, off.X),
		Bottom: edge(box.Bottom, off.Y),
	}
	if r.Right < r.Left {
		r.Right = r.Left
	}
	if r.Bottom < r.Top {
		r.Bottom = r.Top
	}
	return r
}

// Package regions applies privacy masks to rectangles of an image file.
//
// Every call reads the file, changes the pixels inside one rectangle and
// writes the file back in place. Pixels outside the rectangle keep their
// exact values. Calls are meant to be made sequentially by the single owner
// of the file.
package regions

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/hazyhaar/viswatch/geometry"
)

// DefaultRadius is the Gaussian blur radius used when none is configured.
const DefaultRadius = 50

// Opaque is the redaction fill.
var Opaque = color.NRGBA{R: 0, G: 0, B: 0, A: 255}

// Blur applies a Gaussian blur of the given radius inside rect only.
func Blur(rect geometry.Rect, radius int, path string) error {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return apply(rect, path, func(src image.Image, r image.Rectangle) image.Image {
		return imaging.Blur(imaging.Crop(src, r), float64(radius))
	})
}

// Redact replaces rect with an opaque black block. The original pixels are
// not recoverable from the result.
func Redact(rect geometry.Rect, path string) error {
	return apply(rect, path, func(_ image.Image, r image.Rectangle) image.Image {
		return imaging.New(r.Dx(), r.Dy(), Opaque)
	})
}

func apply(rect geometry.Rect, path string, transform func(image.Image, image.Rectangle) image.Image) error {
	src, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("regions: open %s: %w", path, err)
	}

	r := rect.Image().Intersect(src.Bounds())
	if r.Empty() {
		return nil
	}

	out := imaging.Paste(src, transform(src, r), r.Min)
	if err := imaging.Save(out, path); err != nil {
		return fmt.Errorf("regions: save %s: %w", path, err)
	}
	return nil
}

// Crop cuts the file down to rect. An empty intersection with the image
// bounds is an error: there is nothing left to compare.
func Crop(rect geometry.Rect, path string) error {
	src, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("regions: open %s: %w", path, err)
	}
	r := rect.Image().Intersect(src.Bounds())
	if r.Empty() {
		return fmt.Errorf("regions: crop %v outside image bounds %v", rect.Image(), src.Bounds())
	}
	if err := imaging.Save(imaging.Crop(src, r), path); err != nil {
		return fmt.Errorf("regions: save %s: %w", path, err)
	}
	return nil
}

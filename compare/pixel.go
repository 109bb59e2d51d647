package compare

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/hazyhaar/viswatch/match"
)

var changedColor = color.NRGBA{R: 255, G: 0, B: 255, A: 255}

// Pixel is a pure-Go differ. The score is the absolute error: the number
// of pixels whose summed channel delta exceeds Threshold. Images of
// different sizes have no score.
type Pixel struct {
	Threshold int
}

// Diff implements match.PixelDiffer. The diff image at out shows changed
// pixels in magenta over the dimmed reference.
func (p *Pixel) Diff(ctx context.Context, template, candidate, out string) (match.Score, error) {
	ref, err := load(template)
	if err != nil {
		return match.Score{}, err
	}
	got, err := load(candidate)
	if err != nil {
		return match.Score{}, err
	}
	if ref.Bounds().Size() != got.Bounds().Size() {
		return match.Score{}, nil
	}
	if err := ctx.Err(); err != nil {
		return match.Score{}, err
	}

	diff, changed := p.diff(ref, got)
	if out != "" {
		if err := imaging.Save(diff, out); err != nil {
			return match.Score{}, fmt.Errorf("compare: save diff: %w", err)
		}
	}
	return match.Score{Value: float64(changed), OK: true}, nil
}

// diff assumes both images share a size and start at the origin, which
// imaging.Clone guarantees.
func (p *Pixel) diff(ref, got *image.NRGBA) (*image.NRGBA, int) {
	b := ref.Bounds()
	out := image.NewNRGBA(b)
	limit := p.Threshold
	changed := 0
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := ref.NRGBAAt(x, y)
			if delta(a, got.NRGBAAt(x, y)) > limit {
				out.SetNRGBA(x, y, changedColor)
				changed++
				continue
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(int(a.R) * 77 / 255),
				G: uint8(int(a.G) * 77 / 255),
				B: uint8(int(a.B) * 77 / 255),
				A: 255,
			})
		}
	}
	return out, changed
}

package compare

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Correlation is a pure-Go template searcher. It runs normalized
// cross-correlation over a downscaled screenshot, then refines the best
// candidate at full resolution.
//
// Points counts the template pixels whose gray level is within Threshold of
// the screenshot at the match location. A template is found when the
// correlation reaches MinScore and points reaches minPoints.
type Correlation struct {
	MinScore  float64
	Threshold int
}

const (
	defaultMinScore  = 0.9
	defaultGrayDelta = 24
	coarseMinSide    = 12
	coarseMaxFactor  = 8
)

// Search implements match.TemplateSearcher. When a match is found and
// outDir is set, the screenshot is saved there with the match outlined.
func (c *Correlation) Search(ctx context.Context, screenshot []byte, templatePath string, minPoints int, outDir string) (int, *image.Point, error) {
	shot, err := imaging.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return 0, nil, fmt.Errorf("compare: decode screenshot: %w", err)
	}
	tmpl, err := load(templatePath)
	if err != nil {
		return 0, nil, err
	}
	screen := imaging.Clone(shot)

	sb, tb := screen.Bounds(), tmpl.Bounds()
	if tb.Dx() > sb.Dx() || tb.Dy() > sb.Dy() || tb.Empty() {
		return 0, nil, nil
	}

	s, t := toGray(screen), toGray(tmpl)
	at, score, err := c.locate(ctx, screen, tmpl, s, t)
	if err != nil {
		return 0, nil, err
	}
	points := s.agreeing(t, at, c.tolerance())

	minScore := c.MinScore
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	if score < minScore || points < minPoints {
		return points, nil, nil
	}

	box := image.Rectangle{Min: at, Max: at.Add(tb.Size())}
	if outDir != "" {
		if err := saveOutlined(screen, box, filepath.Join(outDir, "search_"+stem(templatePath)+".png")); err != nil {
			return points, nil, err
		}
	}
	center := image.Pt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2)
	return points, &center, nil
}

func (c *Correlation) tolerance() float64 {
	if c.Threshold > 0 {
		return float64(c.Threshold)
	}
	return defaultGrayDelta
}

// locate returns the top-left corner of the best match and its score.
func (c *Correlation) locate(ctx context.Context, screen, tmpl *image.NRGBA, s, t *gray) (image.Point, float64, error) {
	tw, th := t.w, t.h
	k := 1
	for k < coarseMaxFactor && tw/(k*2) >= coarseMinSide && th/(k*2) >= coarseMinSide {
		k *= 2
	}

	if k == 1 {
		return s.best(ctx, t, image.Rect(0, 0, s.w-t.w+1, s.h-t.h+1))
	}

	cs := toGray(imaging.Resize(screen, s.w/k, s.h/k, imaging.Box))
	ct := toGray(imaging.Resize(tmpl, tw/k, th/k, imaging.Box))
	coarse, _, err := cs.best(ctx, ct, image.Rect(0, 0, cs.w-ct.w+1, cs.h-ct.h+1))
	if err != nil {
		return image.Point{}, 0, err
	}

	win := image.Rect(coarse.X*k-2*k, coarse.Y*k-2*k, coarse.X*k+2*k+1, coarse.Y*k+2*k+1).
		Intersect(image.Rect(0, 0, s.w-t.w+1, s.h-t.h+1))
	return s.best(ctx, t, win)
}

type gray struct {
	w, h int
	p    []float64
}

func toGray(img *image.NRGBA) *gray {
	b := img.Bounds()
	g := &gray{w: b.Dx(), h: b.Dy(), p: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			g.p[y*g.w+x] = 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		}
	}
	return g
}

// best scans every top-left corner in win and returns the highest scoring.
func (s *gray) best(ctx context.Context, t *gray, win image.Rectangle) (image.Point, float64, error) {
	n := float64(len(t.p))
	var mean float64
	for _, v := range t.p {
		mean += v
	}
	mean /= n
	centered := make([]float64, len(t.p))
	var norm float64
	for i, v := range t.p {
		centered[i] = v - mean
		norm += centered[i] * centered[i]
	}

	var at image.Point
	top := math.Inf(-1)
	for oy := win.Min.Y; oy < win.Max.Y; oy++ {
		if err := ctx.Err(); err != nil {
			return image.Point{}, 0, err
		}
		for ox := win.Min.X; ox < win.Max.X; ox++ {
			var sum, sumSq, cross float64
			for y := 0; y < t.h; y++ {
				row := s.p[(oy+y)*s.w+ox:]
				trow := centered[y*t.w:]
				for x := 0; x < t.w; x++ {
					v := row[x]
					sum += v
					sumSq += v * v
					cross += v * trow[x]
				}
			}
			score := correlation(cross, sumSq-sum*sum/n, norm, sum/n, mean)
			if score > top {
				top, at = score, image.Pt(ox, oy)
			}
		}
	}
	return at, top, nil
}

// correlation normalizes cross. Flat windows or templates have no variance
// to correlate, so they score by mean distance when both are flat and zero
// otherwise.
func correlation(cross, sVar, tVar, sMean, tMean float64) float64 {
	const eps = 1e-9
	switch {
	case sVar <= eps && tVar <= eps:
		return 1 - math.Abs(sMean-tMean)/255
	case sVar <= eps || tVar <= eps:
		return 0
	}
	return cross / math.Sqrt(sVar*tVar)
}

func (s *gray) agreeing(t *gray, at image.Point, tol float64) int {
	n := 0
	for y := 0; y < t.h; y++ {
		for x := 0; x < t.w; x++ {
			if math.Abs(s.p[(at.Y+y)*s.w+at.X+x]-t.p[y*t.w+x]) <= tol {
				n++
			}
		}
	}
	return n
}

func saveOutlined(img *image.NRGBA, r image.Rectangle, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("compare: mkdir: %w", err)
	}
	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("compare: save %s: %w", path, err)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

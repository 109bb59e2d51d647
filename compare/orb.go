//go:build gocv

package compare

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/hazyhaar/viswatch/match"
)

func init() {
	RegisterSearcher("orb", func(Options) match.TemplateSearcher { return &ORB{} })
}

// ORB locates a template by matching ORB feature descriptors with a
// brute-force Hamming matcher and Lowe's ratio test. The location is the
// mean of the matched screenshot keypoints. Requires OpenCV; built with
// -tags gocv.
type ORB struct {
	// Ratio bounds best/second-best distance for a good match. Default 0.75.
	Ratio float64
}

// Search implements match.TemplateSearcher.
func (o *ORB) Search(ctx context.Context, screenshot []byte, templatePath string, minPoints int, outDir string) (int, *image.Point, error) {
	scene, err := gocv.IMDecode(screenshot, gocv.IMReadGrayScale)
	if err != nil {
		return 0, nil, fmt.Errorf("compare: decode screenshot: %w", err)
	}
	defer scene.Close()
	tmpl := gocv.IMRead(templatePath, gocv.IMReadGrayScale)
	defer tmpl.Close()
	if tmpl.Empty() {
		return 0, nil, fmt.Errorf("compare: open %s: unreadable template", templatePath)
	}

	orb := gocv.NewORB()
	defer orb.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()

	_, tdesc := orb.DetectAndCompute(tmpl, noMask)
	defer tdesc.Close()
	skp, sdesc := orb.DetectAndCompute(scene, noMask)
	defer sdesc.Close()
	if tdesc.Empty() || sdesc.Empty() {
		return 0, nil, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer bf.Close()

	ratio := o.Ratio
	if ratio <= 0 {
		ratio = 0.75
	}
	var good []image.Point
	for _, pair := range bf.KnnMatch(tdesc, sdesc, 2) {
		if len(pair) < 2 || pair[0].Distance >= ratio*pair[1].Distance {
			continue
		}
		kp := skp[pair[0].TrainIdx]
		good = append(good, image.Pt(int(kp.X), int(kp.Y)))
	}
	if len(good) == 0 || len(good) < minPoints {
		return len(good), nil, nil
	}

	var sx, sy int
	for _, p := range good {
		sx += p.X
		sy += p.Y
	}
	loc := image.Pt(sx/len(good), sy/len(good))

	if outDir != "" {
		if err := saveKeypoints(screenshot, good, filepath.Join(outDir, "search_"+stem(templatePath)+".png")); err != nil {
			return len(good), nil, err
		}
	}
	return len(good), &loc, nil
}

func saveKeypoints(screenshot []byte, pts []image.Point, path string) error {
	img, err := imaging.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return fmt.Errorf("compare: decode screenshot: %w", err)
	}
	out := imaging.Clone(img)
	c := color.NRGBA{G: 255, A: 255}
	for _, p := range pts {
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				if q := p.Add(image.Pt(dx, dy)); q.In(out.Bounds()) {
					out.SetNRGBA(q.X, q.Y, c)
				}
			}
		}
	}
	if err := imaging.Save(out, path); err != nil {
		return fmt.Errorf("compare: save %s: %w", path, err)
	}
	return nil
}

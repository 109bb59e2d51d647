// Package compare implements the image comparators used by package match:
// pixel differs that score a candidate against a reference, and template
// searchers that locate a reference inside a screenshot.
//
// Reference images may be PNG, JPEG or WebP.
package compare

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/hazyhaar/viswatch/match"
)

// ErrUnknownKind is returned for an unregistered comparator name.
var ErrUnknownKind = errors.New("compare: unknown comparator")

// Options parameterize the comparators built by NewDiffer and NewSearcher.
type Options struct {
	// Threshold is the per-pixel summed channel delta, on a 0-255 scale,
	// below which two pixels count as equal. Default 0.
	Threshold int `yaml:"threshold"`
	// Fuzz is handed to ImageMagick as -fuzz, e.g. "5%".
	Fuzz string `yaml:"fuzz"`
	// Binary is the ImageMagick compare executable. Default "compare".
	Binary string `yaml:"binary"`
	// MinScore is the correlation a template match must reach. Default 0.9.
	MinScore float64 `yaml:"min_score"`
}

type (
	differFactory   func(Options) match.PixelDiffer
	searcherFactory func(Options) match.TemplateSearcher
)

var (
	mu        sync.RWMutex
	differs   = map[string]differFactory{}
	searchers = map[string]searcherFactory{}
)

func init() {
	RegisterDiffer("pixel", func(o Options) match.PixelDiffer { return &Pixel{Threshold: o.Threshold} })
	RegisterDiffer("magick", func(o Options) match.PixelDiffer { return &Magick{Binary: o.Binary, Fuzz: o.Fuzz} })
	RegisterSearcher("ncc", func(o Options) match.TemplateSearcher {
		return &Correlation{MinScore: o.MinScore, Threshold: o.Threshold}
	})
}

// RegisterDiffer makes a differ available to NewDiffer under name.
func RegisterDiffer(name string, f func(Options) match.PixelDiffer) {
	mu.Lock()
	differs[name] = f
	mu.Unlock()
}

// RegisterSearcher makes a searcher available to NewSearcher under name.
func RegisterSearcher(name string, f func(Options) match.TemplateSearcher) {
	mu.Lock()
	searchers[name] = f
	mu.Unlock()
}

// NewDiffer returns the differ registered under name.
func NewDiffer(name string, o Options) (match.PixelDiffer, error) {
	mu.RLock()
	f, ok := differs[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: differ %q (have %s)", ErrUnknownKind, name, keys(differs))
	}
	return f(o), nil
}

// NewSearcher returns the searcher registered under name.
func NewSearcher(name string, o Options) (match.TemplateSearcher, error) {
	mu.RLock()
	f, ok := searchers[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: searcher %q (have %s)", ErrUnknownKind, name, keys(searchers))
	}
	return f(o), nil
}

func keys[V any](m map[string]V) string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func load(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("compare: open %s: %w", path, err)
	}
	return imaging.Clone(img), nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func delta(a, b color.NRGBA) int {
	return absDiff(a.R, b.R) + absDiff(a.G, b.G) + absDiff(a.B, b.B) + absDiff(a.A, b.A)
}

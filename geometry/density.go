package geometry

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// DensityMode selects how the device pixel-ratio factor is obtained.
type DensityMode int

const (
	// DensityOS derives the factor from the host OS: 2 on darwin, 1 elsewhere.
	DensityOS DensityMode = iota
	// DensityFixed uses a configured factor.
	DensityFixed
	// DensityQuery asks the rendering surface for window.devicePixelRatio.
	DensityQuery
)

// Density is the pixel-density policy.
type Density struct {
	Mode   DensityMode
	Factor float64 // used by DensityFixed
}

// goos is swapped in tests.
var goos = runtime.GOOS

// OSFactor returns the factor the host OS implies.
func OSFactor() float64 {
	if goos == "darwin" {
		return 2
	}
	return 1
}

// Static returns the factor for policies that need no surface query. ok is
// false for DensityQuery.
func (d Density) Static() (factor float64, ok bool) {
	switch d.Mode {
	case DensityFixed:
		if d.Factor > 0 {
			return d.Factor, true
		}
		return 1, true
	case DensityQuery:
		return 0, false
	default:
		return OSFactor(), true
	}
}

// ParseDensity reads a policy from its configuration form: "os", "query"
// or a positive number such as "2" or "1.5". Empty means "os".
func ParseDensity(s string) (Density, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "os":
		return Density{Mode: DensityOS}, nil
	case "query", "surface":
		return Density{Mode: DensityQuery}, nil
	default:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Density{}, fmt.Errorf("geometry: invalid density %q", s)
		}
		return Density{Mode: DensityFixed, Factor: f}, nil
	}
}

func (d Density) String() string {
	switch d.Mode {
	case DensityFixed:
		return strconv.FormatFloat(d.Factor, 'g', -1, 64)
	case DensityQuery:
		return "query"
	default:
		return "os"
	}
}

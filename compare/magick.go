package compare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hazyhaar/viswatch/match"
)

// Magick shells out to ImageMagick's compare with the absolute-error
// metric. compare exits 0 for similar images, 1 for dissimilar ones and 2
// when it cannot compare them (size mismatch, unreadable file); the last
// case has no score.
type Magick struct {
	// Binary defaults to "compare".
	Binary string
	// Fuzz is passed as -fuzz when set.
	Fuzz string
}

// Diff implements match.PixelDiffer.
func (m *Magick) Diff(ctx context.Context, template, candidate, out string) (match.Score, error) {
	bin := m.Binary
	if bin == "" {
		bin = "compare"
	}
	args := []string{"-metric", "AE"}
	if m.Fuzz != "" {
		args = append(args, "-fuzz", m.Fuzz)
	}
	if out == "" {
		out = "null:"
	}
	args = append(args, template, candidate, out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()

	var exit *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exit) && exit.ExitCode() == 1:
	case errors.As(err, &exit):
		return match.Score{}, nil
	default:
		return match.Score{}, fmt.Errorf("compare: run %s: %w", bin, err)
	}

	v, ok := parseAE(stderr.String())
	return match.Score{Value: v, OK: ok}, nil
}

// parseAE reads the metric compare prints on stderr. ImageMagick 7 may
// append a normalized value in parentheses.
func parseAE(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Package match decides whether a reference image appears on screen or
// matches a captured element, retrying a bounded number of times while the
// surface settles.
//
// The image algorithms sit behind TemplateSearcher and PixelDiffer; see
// package compare for implementations.
package match

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hazyhaar/viswatch/capture"
	"github.com/hazyhaar/viswatch/idgen"
)

// Verdict is the outcome of a comparison, laid out as a process exit code.
type Verdict int

const (
	Pass Verdict = 0
	Fail Verdict = 1
)

func (v Verdict) String() string {
	if v == Pass {
		return "pass"
	}
	return "fail"
}

// Kind tells the two comparison modes apart in results.
type Kind string

const (
	KindScreen  Kind = "screen"
	KindElement Kind = "element"
)

// Score is a difference measure. OK false means no score could be
// computed.
type Score struct {
	Value float64
	OK    bool
}

// Present reports whether s counts as a match result. A zero value is
// treated like a missing one: comparison tools report 0 when they produce
// no measure at all.
func (s Score) Present() bool { return s.OK && s.Value != 0 }

// TemplateSearcher locates a reference image inside a screenshot. It
// returns the number of matching feature points and the match location,
// or a nil location when the template was not found. Implementations may
// write diagnostic images under outDir.
type TemplateSearcher interface {
	Search(ctx context.Context, screenshot []byte, templatePath string, minPoints int, outDir string) (points int, loc *image.Point, err error)
}

// PixelDiffer measures how far candidate is from template and writes a
// visual diff to out.
type PixelDiffer interface {
	Diff(ctx context.Context, template, candidate, out string) (Score, error)
}

// Reporter receives one Report per finished comparison.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report) error

func (f ReporterFunc) Report(ctx context.Context, r Report) error { return f(ctx, r) }

// Result describes a finished comparison.
type Result struct {
	Kind     Kind    `json:"kind"`
	Verdict  Verdict `json:"verdict"`
	Attempts int     `json:"attempts"`
	Template string  `json:"template"`

	// Screen comparisons.
	Points   int          `json:"points,omitempty"`
	Location *image.Point `json:"location,omitempty"`

	// Element comparisons. Score is nil when no score was computed.
	Selector  string   `json:"selector,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Tolerance float64  `json:"tolerance,omitempty"`
	Candidate string   `json:"candidate,omitempty"`
	DiffPath  string   `json:"diff,omitempty"`
}

// Passed reports whether the verdict is Pass.
func (r Result) Passed() bool { return r.Verdict == Pass }

// Config configures a Matcher.
type Config struct {
	Capturer *capture.Capturer
	Searcher TemplateSearcher
	Differ   PixelDiffer

	// Policy bounds every comparison. Default: 3 attempts, 1s apart.
	Policy Policy

	// Prefix is prepended to artifact file names. Default: "viswatch-".
	Prefix string

	// Tokens names artifacts. Default: idgen.Default.
	Tokens idgen.Generator

	// Reporter receives a Report after each comparison. Optional.
	Reporter Reporter

	Logger *slog.Logger
}

// DefaultPrefix is the default artifact file name prefix.
const DefaultPrefix = "viswatch-"

func (c *Config) defaults() {
	if c.Policy.MaxAttempts <= 0 {
		c.Policy.MaxAttempts = 3
	}
	if c.Policy.Interval < 0 {
		c.Policy.Interval = 0
	} else if c.Policy.Interval == 0 {
		c.Policy.Interval = time.Second
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Tokens == nil {
		c.Tokens = idgen.Default
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Matcher runs comparisons against one capturer.
type Matcher struct {
	cfg Config
	log *slog.Logger
}

// New creates a Matcher.
func New(cfg Config) *Matcher {
	cfg.defaults()
	return &Matcher{cfg: cfg, log: cfg.Logger}
}

// Policy returns the retry policy in use.
func (m *Matcher) Policy() Policy { return m.cfg.Policy }

type located struct {
	points int
	loc    *image.Point
}

// ImageInScreen searches a fresh screenshot for the reference image on
// every attempt. The verdict is Pass iff a location was found.
func (m *Matcher) ImageInScreen(ctx context.Context, template string, minPoints int, outDir string) (Result, error) {
	if m.cfg.Searcher == nil {
		return Result{}, fmt.Errorf("match: screen: no template searcher configured")
	}

	out, err := Retry(ctx, m.cfg.Policy, func(ctx context.Context) (located, bool, error) {
		shot, err := m.cfg.Capturer.Screenshot(ctx)
		if err != nil {
			return located{}, false, err
		}
		points, loc, err := m.cfg.Searcher.Search(ctx, shot, template, minPoints, outDir)
		if err != nil {
			return located{}, false, fmt.Errorf("match: search %s: %w", template, err)
		}
		m.log.Debug("match: search attempt", "template", template, "points", points, "found", loc != nil)
		return located{points: points, loc: loc}, loc != nil, nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Kind:     KindScreen,
		Verdict:  Fail,
		Attempts: out.Attempts,
		Template: template,
		Points:   out.Result.points,
		Location: out.Result.loc,
	}
	if out.Found {
		res.Verdict = Pass
	}
	m.log.Info("match: image in screen", "template", template, "verdict", res.Verdict.String(),
		"attempts", res.Attempts, "points", res.Points)

	m.report(ctx, res, "")
	return res, nil
}

// ElementCompare captures the element matched by selector and diffs it
// against the reference image on every attempt. The verdict is Pass iff a
// present score was computed and it is below tolerance. Retrying stops at
// the first present score, whether or not it passes; a zero or missing
// score retries and, once attempts run out, fails.
func (m *Matcher) ElementCompare(ctx context.Context, selector, template, outDir string, tolerance float64) (Result, error) {
	if m.cfg.Differ == nil {
		return Result{}, fmt.Errorf("match: element: no pixel differ configured")
	}

	a := m.Artifacts(outDir)
	out, err := Retry(ctx, m.cfg.Policy, func(ctx context.Context) (Score, bool, error) {
		if err := m.cfg.Capturer.Element(ctx, a.Candidate, selector, capture.Masks{}); err != nil {
			return Score{}, false, err
		}
		score, err := m.cfg.Differ.Diff(ctx, template, a.Candidate, a.Diff)
		if err != nil {
			return Score{}, false, fmt.Errorf("match: diff %s: %w", template, err)
		}
		m.log.Debug("match: diff attempt", "selector", selector, "score", score.Value, "ok", score.OK)
		return score, score.Present(), nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Kind:      KindElement,
		Verdict:   Fail,
		Attempts:  out.Attempts,
		Template:  template,
		Selector:  selector,
		Tolerance: tolerance,
		Candidate: a.Candidate,
		DiffPath:  a.Diff,
	}
	if out.Found {
		v := out.Result.Value
		res.Score = &v
		if v < tolerance {
			res.Verdict = Pass
		}
	}
	m.log.Info("match: element compare", "selector", selector, "template", template,
		"verdict", res.Verdict.String(), "attempts", res.Attempts, "score", out.Result.Value, "scored", out.Found)

	m.report(ctx, res, a.Diff)
	return res, nil
}

func (m *Matcher) report(ctx context.Context, res Result, artifact string) {
	if m.cfg.Reporter == nil {
		return
	}
	r := NewReport(m.cfg.Tokens(), res, artifact)
	if err := m.cfg.Reporter.Report(ctx, r); err != nil {
		m.log.Warn("match: report failed", "id", r.ID, "error", err)
	}
}

// Artifacts holds the file names of one element comparison.
type Artifacts struct {
	Token     string
	Candidate string
	Diff      string
}

// Artifacts draws a fresh token and derives the candidate and diff paths
// under dir. Both files share the token.
func (m *Matcher) Artifacts(dir string) Artifacts {
	tok := m.cfg.Tokens()
	return Artifacts{
		Token:     tok,
		Candidate: filepath.Join(dir, m.cfg.Prefix+"ele_"+tok+".png"),
		Diff:      filepath.Join(dir, m.cfg.Prefix+"result_"+tok+".png"),
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/viswatch/geometry"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Match.Attempts != 3 || c.Match.Interval != time.Second || c.Match.MinPoints != 10 {
		t.Fatalf("match defaults: %+v", c.Match)
	}
	if c.Artifacts.Prefix != "viswatch-" || c.Artifacts.Dir == "" {
		t.Fatalf("artifact defaults: %+v", c.Artifacts)
	}
	if len(c.Sinks) != 1 || c.Sinks[0].Type != "stdout" {
		t.Fatalf("sink defaults: %+v", c.Sinks)
	}
	d, err := c.Capture.DensityPolicy()
	if err != nil || d.Mode != geometry.DensityOS {
		t.Fatalf("density: %+v, %v", d, err)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	yml := `
browser:
  remote: ws://127.0.0.1:9222/devtools/browser/abc
  device: iPhone X
capture:
  density: "2"
match:
  attempts: 5
  interval: 250ms
  tolerance: 12.5
compare:
  differ: magick
  fuzz: 5%
artifacts:
  dir: /tmp/out
sinks:
  - type: webhook
    url: http://hooks.local/viswatch
  - type: ledger
ledger:
  path: /tmp/ledger.db
`
	path := filepath.Join(t.TempDir(), "viswatch.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Browser.Device != "iPhone X" || c.Browser.Stealth != "headless" {
		t.Fatalf("browser: %+v", c.Browser)
	}
	p := c.Match.Policy()
	if p.MaxAttempts != 5 || p.Interval != 250*time.Millisecond {
		t.Fatalf("policy: %+v", p)
	}
	if c.Match.Tolerance != 12.5 {
		t.Fatalf("tolerance: %v", c.Match.Tolerance)
	}
	d, _ := c.SurfaceDensity()
	if d.Mode != geometry.DensityFixed || d.Factor != 2 {
		t.Fatalf("density: %+v", d)
	}
	if o := c.Compare.Options(); o.Fuzz != "5%" {
		t.Fatalf("options: %+v", o)
	}
	if c.Compare.Searcher != "ncc" {
		t.Fatalf("searcher default: %q", c.Compare.Searcher)
	}
	if c.Sinks[0].Retries != 3 {
		t.Fatalf("webhook retries default: %d", c.Sinks[0].Retries)
	}
}

func TestSurfaceDensity_DeviceQueriesPage(t *testing.T) {
	tests := []struct {
		name    string
		device  string
		density string
		want    geometry.Density
	}{
		{"desktop keeps os", "", "os", geometry.Density{Mode: geometry.DensityOS}},
		{"device replaces os", "iPhone X", "os", geometry.Density{Mode: geometry.DensityQuery}},
		{"device keeps query", "iPhone X", "query", geometry.Density{Mode: geometry.DensityQuery}},
		{"device keeps factor", "iPhone X", "3", geometry.Density{Mode: geometry.DensityFixed, Factor: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			c.Browser.Device = tt.device
			c.Capture.Density = tt.density
			got, err := c.SurfaceDensity()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"stealth", "browser: {stealth: sideways}", "browser.stealth"},
		{"density", "capture: {density: dense}", "capture.density"},
		{"sink type", "sinks: [{type: nats}]", "unknown type"},
		{"webhook url", "sinks: [{type: webhook}]", "without url"},
		{"ledger path", "sinks: [{type: ledger}]", "ledger.path"},
		{"tolerance", "match: {tolerance: -1}", "negative"},
		{"yaml", "browser: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

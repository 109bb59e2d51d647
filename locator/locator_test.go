package locator

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		strat Strategy
		value string
	}{
		{"//div[@id='x']", XPath, "//div[@id='x']"},
		{"id:submit-btn", ID, "submit-btn"},
		{"css=.nav>a", CSS, ".nav>a"},
		{"class:banner", Class, "banner"},
		{"xpath://a[@href='x:y']", XPath, "//a[@href='x:y']"},
		{" CSS : #main ", CSS, "#main"},
		{"css=a[href='http://x']", CSS, "a[href='http://x']"},
		{"id=user:name", ID, "user:name"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if got.Strategy != tt.strat || got.Value != tt.value {
			t.Errorf("Parse(%q): got (%s, %q), want (%s, %q)", tt.in, got.Strategy, got.Value, tt.strat, tt.value)
		}
	}
}

func TestParse_Unknown(t *testing.T) {
	for _, in := range []string{"bogus:thing", "name=q", "plain", ""} {
		_, err := Parse(in)
		if !errors.Is(err, ErrUnknownStrategy) {
			t.Errorf("Parse(%q): got %v, want ErrUnknownStrategy", in, err)
		}
	}
}

func TestParseAll_StopsOnError(t *testing.T) {
	_, err := ParseAll([]string{"id:a", "nope:b"})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("ParseAll: got %v", err)
	}
	ls, err := ParseAll([]string{"id:a", "//b"})
	if err != nil || len(ls) != 2 {
		t.Fatalf("ParseAll: got %v, %v", ls, err)
	}
}

func TestStrategy_QueryBindsArgument(t *testing.T) {
	for _, s := range Strategies {
		q := s.Query()
		if !strings.Contains(q, "(v") && !strings.Contains(q, "v,") {
			t.Errorf("%s query does not reference v: %s", s, q)
		}
		if got, ok := ParseStrategy(s.String()); !ok || got != s {
			t.Errorf("ParseStrategy(%q): got %v %v", s.String(), got, ok)
		}
	}
}

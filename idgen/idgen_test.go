package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv4_Format(t *testing.T) {
	id := UUIDv4()()
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Fatalf("UUIDv4: unexpected format %q", id)
	}
	if id[14] != '4' {
		t.Fatalf("UUIDv4: version nibble %q in %q", id[14], id)
	}
}

func TestUUIDv7_SortsByTime(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestUniqueness(t *testing.T) {
	for name, gen := range map[string]Generator{"v4": UUIDv4(), "v7": UUIDv7()} {
		seen := make(map[string]struct{}, 500)
		for i := 0; i < 500; i++ {
			id := gen()
			if _, ok := seen[id]; ok {
				t.Fatalf("%s: duplicate at iteration %d", name, i)
			}
			seen[id] = struct{}{}
		}
	}
}

func TestCompact(t *testing.T) {
	id := Compact(UUIDv4())()
	if len(id) != 32 || strings.Contains(id, "-") {
		t.Fatalf("Compact: got %q", id)
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("run_", UUIDv4())()
	if !strings.HasPrefix(id, "run_") || len(id) != 40 {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(strings.ToUpper(id))
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("Parse: got %q, want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error")
	}
}

// Package idgen generates the tokens that name capture artifacts and
// result records.
//
// Constructors that need identifiers accept a Generator, so the token
// strategy is chosen once at startup.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv4 returns a Generator of random RFC 9562 version 4 UUIDs.
func UUIDv4() Generator {
	return func() string {
		return uuid.NewString()
	}
}

// UUIDv7 returns a Generator of time-sortable RFC 9562 version 7 UUIDs.
// Artifacts named with them list in capture order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Compact strips the dashes from every ID produced by gen.
func Compact(gen Generator) Generator {
	return func() string {
		return strings.ReplaceAll(gen(), "-", "")
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using Default.
func New() string {
	return Default()
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID: %w", err)
	}
	return u.String(), nil
}

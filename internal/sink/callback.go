package sink

import (
	"context"

	"github.com/hazyhaar/viswatch/match"
)

// ReportFunc is called for each report.
type ReportFunc func(ctx context.Context, r match.Report) error

// Callback delivers reports as in-process function calls.
type Callback struct {
	fn ReportFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn ReportFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Report(ctx context.Context, r match.Report) error {
	if c.fn != nil {
		return c.fn(ctx, r)
	}
	return nil
}

func (c *Callback) Close() error { return nil }

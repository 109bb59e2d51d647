// Package sink defines output backends for comparison reports.
package sink

import (
	"context"

	"github.com/hazyhaar/viswatch/match"
)

// Sink delivers reports to a backend (stdout, webhook, HTML log, ledger,
// in-process callback). Every Sink is a match.Reporter.
type Sink interface {
	Report(ctx context.Context, r match.Report) error
	Close() error
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

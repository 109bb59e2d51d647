package viswatch

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/hazyhaar/viswatch/internal/sink"
)

// Sink receives a report after every comparison.
type Sink = sink.Sink

// ReportFunc is called for each report.
type ReportFunc = sink.ReportFunc

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(fn ReportFunc) Sink {
	return sink.NewCallback(fn)
}

// buildSinks turns the configured sink list into sinks. The ledger sink
// is wired by New from the opened store and skipped here.
func buildSinks(cfg *Config, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for i, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			out = append(out, sink.NewStdout(nil))
		case "webhook":
			out = append(out, sink.NewWebhook(sc.URL,
				sink.WithWebhookRetries(sc.Retries),
				sink.WithWebhookLogger(logger)))
		case "htmllog":
			path := sc.Path
			if path == "" {
				path = filepath.Join(cfg.Artifacts.Dir, "viswatch.html")
			}
			out = append(out, sink.NewHTMLLog(path))
		case "ledger":
		default:
			return nil, fmt.Errorf("viswatch: sinks[%d]: unknown type %q", i, sc.Type)
		}
	}
	return out, nil
}

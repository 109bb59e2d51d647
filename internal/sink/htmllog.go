package sink

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/viswatch/match"
)

// HTMLLog appends one paragraph per report to an HTML file kept next to
// the artifacts, so the embedded diff images resolve by file name.
type HTMLLog struct {
	mu   sync.Mutex
	path string
}

// NewHTMLLog creates an HTMLLog writing to path.
func NewHTMLLog(path string) *HTMLLog {
	return &HTMLLog{path: path}
}

func (h *HTMLLog) Report(_ context.Context, r match.Report) error {
	res := r.Result
	subject := res.Selector
	if subject == "" {
		subject = "screen"
	}
	line := fmt.Sprintf("<p>%s %s %s vs %s after %d attempt(s)</p>\n",
		html.EscapeString(r.Timestamp.Format("2006-01-02T15:04:05Z")),
		res.Verdict, html.EscapeString(subject), html.EscapeString(filepath.Base(res.Template)), res.Attempts)
	if r.HTML != "" {
		line += r.HTML + "\n"
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("htmllog: mkdir: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("htmllog: open: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("htmllog: write: %w", err)
	}
	return f.Close()
}

func (h *HTMLLog) Close() error { return nil }

package match

import (
	"fmt"
	"html"
	"path/filepath"
	"time"
)

// Report is what sinks receive after a comparison.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Result    Result    `json:"result"`
	// HTML embeds the diff artifact in a log page. Empty when the
	// comparison produced no artifact.
	HTML string `json:"html,omitempty"`
}

// NewReport builds a Report for res. artifact is the diff image path.
func NewReport(id string, res Result, artifact string) Report {
	r := Report{ID: id, Timestamp: time.Now().UTC(), Result: res}
	if artifact != "" {
		r.HTML = Snippet(filepath.Base(artifact))
	}
	return r
}

// Snippet returns a linked image tag for name, relative to the log page.
func Snippet(name string) string {
	n := html.EscapeString(name)
	return fmt.Sprintf(`<a href="%s"><img src="%s"/></a>`, n, n)
}

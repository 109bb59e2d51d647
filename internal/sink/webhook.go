package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/viswatch/match"
)

// Webhook POSTs each report as JSON. The report ID and verdict travel in
// X-Viswatch-Report and X-Viswatch-Verdict so receivers can route without
// decoding the body.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles on each retry.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient replaces the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Report delivers r. 5xx, 429 and transport errors are retried; any other
// non-2xx status fails at once.
func (w *Webhook) Report(ctx context.Context, r match.Report) error {
	body, err := json.Marshal(envelope{Type: "report", Data: r})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(w.backoff << uint(attempt-1))
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}

		status, err := w.post(ctx, r, body)
		switch {
		case err != nil:
			lastErr = err
			w.logger.Warn("webhook: post failed", "report", r.ID, "attempt", attempt+1, "error", err)
		case status/100 == 2:
			return nil
		case status >= 500 || status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("webhook: status %d", status)
			w.logger.Warn("webhook: retryable status", "report", r.ID, "attempt", attempt+1, "status", status)
		default:
			return fmt.Errorf("webhook: report %s rejected: status %d", r.ID, status)
		}
	}
	return fmt.Errorf("webhook: gave up after %d attempts: %w", w.maxRetries+1, lastErr)
}

func (w *Webhook) post(ctx context.Context, r match.Report, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Viswatch-Report", r.ID)
	req.Header.Set("X-Viswatch-Verdict", r.Result.Verdict.String())

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (w *Webhook) Close() error { return nil }

package kit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// tag wraps the response of next in "name(...)".
func tag(name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return fmt.Sprintf("%s(%v)", name, resp), nil
		}
	}
}

func TestChain_FirstIsOutermost(t *testing.T) {
	capture := func(_ context.Context, req any) (any, error) { return req, nil }

	got, err := Chain(tag("log"), tag("auth"), tag("limit"))(capture)(context.Background(), "shot")
	if err != nil {
		t.Fatal(err)
	}
	if got != "log(auth(limit(shot)))" {
		t.Fatalf("got %v", got)
	}

	if got, _ := Chain()(capture)(context.Background(), "bare"); got != "bare" {
		t.Fatalf("empty chain: got %v", got)
	}
}

func TestChain_ErrorsUnwind(t *testing.T) {
	errMissing := errors.New("element missing")
	failing := func(context.Context, any) (any, error) { return nil, errMissing }

	_, err := Chain(tag("outer"), tag("inner"))(failing)(context.Background(), nil)
	if !errors.Is(err, errMissing) {
		t.Fatalf("got %v, want errMissing", err)
	}
	if err.Error() != "outer: inner: element missing" {
		t.Fatalf("wrapping order: %q", err)
	}
}

func TestContext_Transport(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
	ctx := WithTransport(context.Background(), "mcp")
	if v := GetTransport(ctx); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

func TestContext_RequestID(t *testing.T) {
	if v := GetRequestID(context.Background()); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	ctx := WithRequestID(context.Background(), "req_abc")
	if v := GetRequestID(ctx); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ok := Logging(logger, "capture")(func(context.Context, any) (any, error) { return 1, nil })
	if resp, err := ok(context.Background(), nil); err != nil || resp != 1 {
		t.Fatalf("got %v, %v", resp, err)
	}
	bad := Logging(logger, "compare")(func(context.Context, any) (any, error) { return nil, errFail })
	if _, err := bad(WithTransport(context.Background(), "mcp"), nil); !errors.Is(err, errFail) {
		t.Fatalf("got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "endpoint=capture") || !strings.Contains(out, "transport=mcp") || !strings.Contains(out, "error=fail") {
		t.Fatalf("log output: %s", out)
	}
}

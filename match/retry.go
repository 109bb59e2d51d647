package match

import (
	"context"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the attempt budget. Zero runs nothing.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// Interval is slept before every attempt, the first included, to let
	// the surface settle.
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Outcome is what a retry loop ends with.
type Outcome[T any] struct {
	Found    bool
	Result   T
	Attempts int
}

// Action is one attempt. ok reports a present result; an error stops the
// loop.
type Action[T any] func(ctx context.Context) (result T, ok bool, err error)

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs action until it yields a present result or the attempt budget
// is spent. Running out of attempts is not an error: the returned Outcome
// has Found false and holds the last attempt's result.
func Retry[T any](ctx context.Context, p Policy, action Action[T]) (Outcome[T], error) {
	var out Outcome[T]
	for out.Attempts < p.MaxAttempts {
		if err := sleep(ctx, p.Interval); err != nil {
			return out, err
		}
		out.Attempts++

		res, ok, err := action(ctx)
		out.Result = res
		if err != nil {
			return out, err
		}
		if ok {
			out.Found = true
			return out, nil
		}
	}
	return out, nil
}

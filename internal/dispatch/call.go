package dispatch

import (
	"context"
	"fmt"
	"time"
)

type result struct {
	text string
	err  error
}

// call runs fn with a deadline. A provider that ignores its context or
// panics still yields an error instead of stalling or crashing the caller.
func call(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		text, err := fn(ctx)
		ch <- result{text: text, err: err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("provider call: %w", ctx.Err())
	}
}

func callErr(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := call(ctx, timeout, func(ctx context.Context) (string, error) {
		return "", fn(ctx)
	})
	return err
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

var (
	// ErrConnectivity is the terminal error after every attempt failed with
	// a transient error.
	ErrConnectivity = errors.New("generative service unreachable")

	// ErrTransient marks an error as retryable. Wrap it to opt a failure
	// into the retry policy.
	ErrTransient = errors.New("transient service error")
)

// Policy is a bounded fixed-delay retry policy.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Retryable reports whether err is worth another attempt. Nil means
	// IsTransient.
	Retryable func(error) bool

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is three attempts ten seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 10 * time.Second}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts run out. Exhaustion returns an error wrapping both
// ErrConnectivity and the last failure.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrConnectivity, attempts, lastErr)
}

// IsTransient reports whether err is a server-side failure of the
// generative service (HTTP 5xx) or is marked with ErrTransient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code >= 500
	}
	return errors.Is(err, ErrTransient)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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

// WithRetry wraps g so every call goes through p.
func WithRetry(g Generator, p Policy) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		var text string
		err := p.Do(ctx, func(ctx context.Context) error {
			var err error
			text, err = g.Generate(ctx, req)
			return err
		})
		return text, err
	})
}

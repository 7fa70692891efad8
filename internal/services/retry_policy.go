package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// RetryPolicy wraps a single remote write with kind-specific retries.
// Auth and validation failures are never transient and fail immediately;
// not-found is passed straight through so the orchestrator can run orphan
// recovery; rate limits back off exponentially; everything else retries
// on a fixed delay.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a RetryPolicy with the default schedule
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultRetryDelay,
		sleep:       sleepContext,
	}
}

// Do runs op up to maxAttempts times according to the error kind
func (p *RetryPolicy) Do(ctx context.Context, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		var authErr *AuthError
		var validationErr *ValidationError
		var notFoundErr *NotFoundError
		var rateLimitErr *RateLimitError

		switch {
		case errors.As(err, &authErr), errors.As(err, &validationErr):
			return err

		case errors.As(err, &notFoundErr):
			// Orphan-recovery signal, handled a level up.
			return err

		case errors.As(err, &rateLimitErr):
			if attempt >= p.maxAttempts {
				return fmt.Errorf("rate limit exceeded: %w", err)
			}
			delay := p.baseDelay << (attempt - 1) // 2s, 4s, 8s
			if rateLimitErr.RetryAfter > delay {
				delay = rateLimitErr.RetryAfter
			}
			if serr := p.sleep(ctx, delay); serr != nil {
				return serr
			}

		default:
			if attempt >= p.maxAttempts {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			if serr := p.sleep(ctx, p.baseDelay); serr != nil {
				return serr
			}
		}
	}
}

// sleepContext waits for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

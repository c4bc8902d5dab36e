package migrate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/catalogops/internal/remote"
)

// RetryPolicy bounds how often a single document write is attempted.
type RetryPolicy struct {
	// MaxAttempts counts every attempt, including the first one made as part
	// of a bulk write.
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether a failed attempt may be repeated. Nil means
	// DefaultRetryable.
	Retryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 250 * time.Millisecond}
}

// DefaultRetryable retries everything except cancellation and requests the
// store rejected as malformed or forbidden.
func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *remote.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return DefaultRetryable(err)
}

func (p RetryPolicy) backoff(retries int) retry.Backoff {
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(retries), retry.NewConstant(delay))
}

// do runs fn until it succeeds, fails with a non-retryable error, or has
// been attempted the given number of times.
func (p RetryPolicy) do(ctx context.Context, attempts int, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(ctx, p.backoff(attempts-1), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && p.retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

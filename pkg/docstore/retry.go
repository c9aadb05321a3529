package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the retries of conflicting atomic units.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultRetryPolicy is used by backends created without an explicit policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 8,
	Base:        5 * time.Millisecond,
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultRetryPolicy.MaxAttempts
	}

	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(25, b)
	b = retry.WithMaxRetries(uint64(attempts-1), b)

	return b
}

// RetryConflicts runs fn until it succeeds, fails with an error isConflict
// rejects, or the policy runs out of attempts. It returns the number of
// attempts made. Exhausted conflicts are reported as ErrConflict.
func RetryConflicts(ctx context.Context, p RetryPolicy, isConflict func(error) bool, fn func(context.Context) error) (int, error) {
	attempts := 0

	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++

		err := fn(ctx)
		if err != nil && isConflict(err) {
			return retry.RetryableError(err)
		}

		return err
	})
	if err != nil && isConflict(err) {
		return attempts, fmt.Errorf("%w after %d attempts: %v", ErrConflict, attempts, err)
	}

	return attempts, err
}

package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

type breakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next with a circuit breaker. Consecutive ErrUnavailable or
// ErrConflict failures open the circuit and further calls fail fast with
// ErrUnavailable until OpenTimeout passes.
func WithBreaker(next Store, s BreakerSettings) Store {
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrConflict)
		},
	}

	return &breakerStore{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *breakerStore) run(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return v, err
}

func (b *breakerStore) Get(ctx context.Context, ref Ref) (Fields, error) {
	v, err := b.run(func() (any, error) {
		return b.next.Get(ctx, ref)
	})
	if err != nil {
		return nil, err
	}

	return v.(Fields), nil
}

func (b *breakerStore) Set(ctx context.Context, ref Ref, f Fields) error {
	_, err := b.run(func() (any, error) {
		return nil, b.next.Set(ctx, ref, f)
	})

	return err
}

func (b *breakerStore) Merge(ctx context.Context, ref Ref, f Fields) error {
	_, err := b.run(func() (any, error) {
		return nil, b.next.Merge(ctx, ref, f)
	})

	return err
}

func (b *breakerStore) Add(ctx context.Context, collection string, f Fields) (Ref, error) {
	v, err := b.run(func() (any, error) {
		return b.next.Add(ctx, collection, f)
	})
	if err != nil {
		return Ref{}, err
	}

	return v.(Ref), nil
}

func (b *breakerStore) NewRef(collection string) Ref {
	return b.next.NewRef(collection)
}

func (b *breakerStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	v, err := b.run(func() (any, error) {
		return b.next.List(ctx, collection)
	})
	if err != nil {
		return nil, err
	}

	return v.([]Snapshot), nil
}

func (b *breakerStore) Atomically(ctx context.Context, readKeys []Ref, fn func(ctx context.Context, tx Tx) error) (CommitResult, error) {
	v, err := b.run(func() (any, error) {
		return b.next.Atomically(ctx, readKeys, fn)
	})
	if err != nil {
		if res, ok := v.(CommitResult); ok {
			return res, err
		}

		return CommitResult{}, err
	}

	return v.(CommitResult), nil
}

func (b *breakerStore) Ping(ctx context.Context) error {
	_, err := b.run(func() (any, error) {
		return nil, b.next.Ping(ctx)
	})

	return err
}

func (b *breakerStore) Close(ctx context.Context) error {
	return b.next.Close(ctx)
}

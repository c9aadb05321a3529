// Package redisstore implements docstore.Store on Redis.
//
// Each document is a hash at doc:<path> whose fields hold JSON encoded values.
// Collections are indexed by a set at idx:<collection>. Atomic units use
// optimistic WATCH/MULTI/EXEC and are retried when a watched key changes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const markerField = "__doc"

func docKey(path string) string         { return "doc:" + path }
func indexKey(collection string) string { return "idx:" + collection }

// Store is a Redis backed docstore.Store.
type Store struct {
	rdb    redis.UniversalClient
	policy docstore.RetryPolicy
	now    func() time.Time
}

// New returns a Store over rdb.
func New(rdb redis.UniversalClient, policy docstore.RetryPolicy) *Store {
	return &Store{
		rdb:    rdb,
		policy: policy,
		now:    time.Now,
	}
}

// Open connects to the Redis server at addr and returns the Store.
func Open(ctx context.Context, addr, password string, db int, policy docstore.RetryPolicy) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
	}

	return New(rdb, policy), nil
}

// unitError carries an error raised by the atomic unit itself, as opposed to
// one raised by Redis.
type unitError struct {
	err error
}

func (e unitError) Error() string { return e.err.Error() }

func unavailable(err error) error {
	if err == nil || errors.Is(err, docstore.ErrUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
}

func isConflict(err error) bool {
	return errors.Is(err, redis.TxFailedErr)
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func get(ctx context.Context, r hashReader, ref docstore.Ref) (docstore.Fields, bool, error) {
	raw, err := r.HGetAll(ctx, docKey(ref.Path())).Result()
	if err != nil {
		return nil, false, unavailable(err)
	}

	return decode(raw)
}

func decode(raw map[string]string) (docstore.Fields, bool, error) {
	if _, ok := raw[markerField]; !ok {
		return nil, false, nil
	}

	f := make(docstore.Fields, len(raw)-1)

	for k, v := range raw {
		if k == markerField {
			continue
		}

		var value any
		if err := json.Unmarshal([]byte(v), &value); err != nil {
			return nil, false, fmt.Errorf("decode field %q: %w", k, err)
		}

		f[k] = value
	}

	return f, true, nil
}

func apply(ctx context.Context, pipe redis.Pipeliner, w docstore.Write) error {
	values := []any{markerField, "1"}

	for k, v := range w.Fields {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode field %q: %w", k, err)
		}

		values = append(values, k, string(b))
	}

	key := docKey(w.Ref.Path())

	if !w.Merge {
		pipe.Del(ctx, key)
	}

	pipe.HSet(ctx, key, values...)
	pipe.SAdd(ctx, indexKey(w.Ref.Collection), w.Ref.ID)

	return nil
}

func (s *Store) write(ctx context.Context, w docstore.Write) error {
	if !w.Ref.Valid() {
		return docstore.ErrInvalidRef
	}

	var applyErr error

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		applyErr = apply(ctx, pipe, w)
		return applyErr
	})
	if applyErr != nil {
		return applyErr
	}

	return unavailable(err)
}

// Get returns the document addressed by ref.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Fields, error) {
	if !ref.Valid() {
		return nil, docstore.ErrInvalidRef
	}

	f, ok, err := get(ctx, s.rdb, ref)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", ref.Path()).Msg("redisstore get")
		return nil, err
	}

	if !ok {
		return nil, docstore.ErrNotFound
	}

	return f, nil
}

// Set replaces the document addressed by ref.
func (s *Store) Set(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.write(ctx, docstore.Write{Ref: ref, Fields: f})
}

// Merge merges f into the document addressed by ref, creating it if absent.
func (s *Store) Merge(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.write(ctx, docstore.Write{Ref: ref, Fields: f, Merge: true})
}

// Add stores f under a new id in collection.
func (s *Store) Add(ctx context.Context, collection string, f docstore.Fields) (docstore.Ref, error) {
	ref := s.NewRef(collection)

	return ref, s.Set(ctx, ref, f)
}

// NewRef returns a reference with a fresh id in collection.
func (s *Store) NewRef(collection string) docstore.Ref {
	return docstore.NewRef(collection, docstore.NewID())
}

// List returns the documents of collection ordered by path.
func (s *Store) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	l := zerolog.Ctx(ctx)

	ids, err := s.rdb.SMembers(ctx, indexKey(collection)).Result()
	if err != nil {
		l.Error().Err(err).Send()
		return nil, unavailable(err)
	}

	sort.Strings(ids)

	cmds := make([]*redis.MapStringStringCmd, len(ids))

	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, docKey(docstore.NewRef(collection, id).Path()))
		}

		return nil
	})
	if err != nil {
		l.Error().Err(err).Send()
		return nil, unavailable(err)
	}

	items := []docstore.Snapshot{}

	for i, id := range ids {
		f, ok, err := decode(cmds[i].Val())
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		items = append(items, docstore.Snapshot{Ref: docstore.NewRef(collection, id), Fields: f})
	}

	return items, nil
}

// Atomically watches the declared read keys, runs fn and commits its writes
// in one MULTI/EXEC. A change to a watched key reruns fn with backoff until
// the retry policy is exhausted, which is reported as docstore.ErrConflict.
func (s *Store) Atomically(ctx context.Context, readKeys []docstore.Ref, fn func(ctx context.Context, tx docstore.Tx) error) (docstore.CommitResult, error) {
	var res docstore.CommitResult

	paths := docstore.Paths(readKeys)

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, docKey(p))
	}

	attempts, err := docstore.RetryConflicts(ctx, s.policy, isConflict, func(ctx context.Context) error {
		return s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			buf := docstore.NewTxBuffer(readKeys, func(ref docstore.Ref) (docstore.Fields, bool, error) {
				return get(ctx, rtx, ref)
			})

			if err := fn(ctx, buf); err != nil {
				return unitError{err}
			}

			if err := buf.Validate(); err != nil {
				return unitError{err}
			}

			var applyErr error

			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range buf.Writes() {
					if applyErr = apply(ctx, pipe, w); applyErr != nil {
						return applyErr
					}
				}

				return nil
			})

			switch {
			case applyErr != nil:
				return unitError{applyErr}
			case err == nil || isConflict(err):
				return err
			default:
				return unavailable(err)
			}
		}, keys...)
	})

	res.Attempts = attempts

	var ue unitError
	if errors.As(err, &ue) {
		return res, ue.err
	}

	if err != nil {
		if !errors.Is(err, docstore.ErrConflict) {
			err = unavailable(err)
		}

		zerolog.Ctx(ctx).Error().Err(err).Int("attempts", attempts).Msg("redisstore atomically")

		return res, err
	}

	res.CommittedAt = s.now()

	return res, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return unavailable(s.rdb.Ping(ctx).Err())
}

// Close closes the Redis client.
func (s *Store) Close(context.Context) error {
	return s.rdb.Close()
}

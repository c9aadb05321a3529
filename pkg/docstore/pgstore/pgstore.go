// Package pgstore implements docstore.Store on PostgreSQL.
//
// Documents live in a single JSONB table. Atomic units run as SERIALIZABLE
// transactions that lock the declared read keys up front and are retried on
// serialization failures and deadlocks.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-petr/marketrush/pkg/dbpkg"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store is a PostgreSQL backed docstore.Store.
type Store struct {
	db     *sql.DB
	policy docstore.RetryPolicy
	now    func() time.Time
}

// New returns a Store over an already migrated db.
func New(db *sql.DB, policy docstore.RetryPolicy) *Store {
	return &Store{
		db:     db,
		policy: policy,
		now:    time.Now,
	}
}

// Open connects to the database, applies the migrations and returns the Store.
func Open(ctx context.Context, driver, source string, policy docstore.RetryPolicy) (*Store, error) {
	db, err := dbpkg.Setup(driver, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
	}

	if err := dbpkg.Migrate(ctx, db, migrations, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate documents: %w", err)
	}

	return New(db, policy), nil
}

func isConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, docstore.ErrUnavailable) {
		return err
	}

	return fmt.Errorf("%w: %w", docstore.ErrUnavailable, err)
}

const getQuery = `
SELECT data
FROM documents
WHERE path = $1
`

func get(ctx context.Context, q dbpkg.SQLInterface, ref docstore.Ref) (docstore.Fields, bool, error) {
	var raw []byte

	err := q.QueryRowContext(ctx, getQuery, ref.Path()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, unavailable(err)
	}

	var f docstore.Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, false, err
	}

	if f == nil {
		f = docstore.Fields{}
	}

	return f, true, nil
}

const setQuery = `
INSERT INTO
    documents (path, collection, doc_id, data)
VALUES
    ($1, $2, $3, $4::jsonb)
ON CONFLICT (path) DO UPDATE
SET data = EXCLUDED.data, updated_at = now()
`

const mergeQuery = `
INSERT INTO
    documents (path, collection, doc_id, data)
VALUES
    ($1, $2, $3, $4::jsonb)
ON CONFLICT (path) DO UPDATE
SET data = documents.data || EXCLUDED.data, updated_at = now()
`

func write(ctx context.Context, q dbpkg.SQLInterface, w docstore.Write) error {
	raw, err := json.Marshal(w.Fields)
	if err != nil {
		return err
	}

	query := setQuery
	if w.Merge {
		query = mergeQuery
	}

	_, err = q.ExecContext(ctx, query, w.Ref.Path(), w.Ref.Collection, w.Ref.ID, string(raw))
	if err != nil {
		return unavailable(err)
	}

	return nil
}

// Get returns the document addressed by ref.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Fields, error) {
	if !ref.Valid() {
		return nil, docstore.ErrInvalidRef
	}

	f, ok, err := get(ctx, s.db, ref)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", ref.Path()).Msg("pgstore get")
		return nil, err
	}

	if !ok {
		return nil, docstore.ErrNotFound
	}

	return f, nil
}

// Set replaces the document addressed by ref.
func (s *Store) Set(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	if !ref.Valid() {
		return docstore.ErrInvalidRef
	}

	return write(ctx, s.db, docstore.Write{Ref: ref, Fields: f})
}

// Merge merges f into the document addressed by ref, creating it if absent.
func (s *Store) Merge(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	if !ref.Valid() {
		return docstore.ErrInvalidRef
	}

	return write(ctx, s.db, docstore.Write{Ref: ref, Fields: f, Merge: true})
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

const listQuery = `
SELECT doc_id, data
FROM documents
WHERE collection = $1
ORDER BY path
`

// List returns the documents of collection ordered by path.
func (s *Store) List(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	l := zerolog.Ctx(ctx)

	rows, err := s.db.QueryContext(ctx, listQuery, collection)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, unavailable(err)
	}
	defer rows.Close()

	items := []docstore.Snapshot{}

	for rows.Next() {
		var (
			id  string
			raw []byte
		)

		if err := rows.Scan(&id, &raw); err != nil {
			l.Error().Err(err).Send()
			return nil, unavailable(err)
		}

		var f docstore.Fields
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}

		items = append(items, docstore.Snapshot{
			Ref:    docstore.NewRef(collection, id),
			Fields: f,
		})
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, unavailable(err)
	}

	return items, nil
}

const lockQuery = `
SELECT path
FROM documents
WHERE path = ANY($1)
ORDER BY path
FOR UPDATE
`

// Atomically runs fn inside a SERIALIZABLE transaction. Serialization
// failures and deadlocks rerun fn with backoff until the retry policy is
// exhausted, which is reported as docstore.ErrConflict.
func (s *Store) Atomically(ctx context.Context, readKeys []docstore.Ref, fn func(ctx context.Context, tx docstore.Tx) error) (docstore.CommitResult, error) {
	l := zerolog.Ctx(ctx)

	var res docstore.CommitResult

	attempts, err := docstore.RetryConflicts(ctx, s.policy, isConflict, func(ctx context.Context) error {
		return s.attempt(ctx, readKeys, fn)
	})

	res.Attempts = attempts

	if err != nil {
		if errors.Is(err, docstore.ErrConflict) || errors.Is(err, docstore.ErrUnavailable) {
			l.Error().Err(err).Int("attempts", attempts).Msg("pgstore atomically")
		}

		return res, err
	}

	res.CommittedAt = s.now()

	return res, nil
}

func (s *Store) attempt(ctx context.Context, readKeys []docstore.Ref, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return unavailable(err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, lockQuery, pq.Array(docstore.Paths(readKeys)))
	if err != nil {
		return unavailable(err)
	}

	if err := rows.Close(); err != nil {
		return unavailable(err)
	}

	buf := docstore.NewTxBuffer(readKeys, func(ref docstore.Ref) (docstore.Fields, bool, error) {
		return get(ctx, tx, ref)
	})

	if err := fn(ctx, buf); err != nil {
		return err
	}

	if err := buf.Validate(); err != nil {
		return err
	}

	for _, w := range buf.Writes() {
		if err := write(ctx, tx, w); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}

	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return unavailable(s.db.PingContext(ctx))
}

// Close closes the database connection.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

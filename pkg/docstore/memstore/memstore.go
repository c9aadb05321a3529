// Package memstore implements docstore.Store in process memory.
//
// Every atomic unit holds the store lock for its whole duration, which gives
// serializable isolation without retries. It backs unit tests and the
// "memory" store driver used in development.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-petr/marketrush/pkg/docstore"
)

type document struct {
	ref    docstore.Ref
	fields docstore.Fields
}

// Store is an in-memory docstore.Store.
type Store struct {
	mu   sync.Mutex
	docs map[string]document
	now  func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		docs: make(map[string]document),
		now:  time.Now,
	}
}

func (s *Store) getLocked(ref docstore.Ref) (docstore.Fields, bool, error) {
	d, ok := s.docs[ref.Path()]
	if !ok {
		return nil, false, nil
	}

	return d.fields.Clone(), true, nil
}

func (s *Store) writeLocked(w docstore.Write) {
	path := w.Ref.Path()

	d, ok := s.docs[path]
	if !ok || !w.Merge {
		s.docs[path] = document{ref: w.Ref, fields: w.Fields.Clone()}
		return
	}

	for k, v := range w.Fields.Clone() {
		d.fields[k] = v
	}
}

// Get returns the document addressed by ref.
func (s *Store) Get(_ context.Context, ref docstore.Ref) (docstore.Fields, error) {
	if !ref.Valid() {
		return nil, docstore.ErrInvalidRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok, _ := s.getLocked(ref)
	if !ok {
		return nil, docstore.ErrNotFound
	}

	return f, nil
}

// Set replaces the document addressed by ref.
func (s *Store) Set(_ context.Context, ref docstore.Ref, f docstore.Fields) error {
	if !ref.Valid() {
		return docstore.ErrInvalidRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeLocked(docstore.Write{Ref: ref, Fields: f})

	return nil
}

// Merge merges f into the document addressed by ref, creating it if absent.
func (s *Store) Merge(_ context.Context, ref docstore.Ref, f docstore.Fields) error {
	if !ref.Valid() {
		return docstore.ErrInvalidRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeLocked(docstore.Write{Ref: ref, Fields: f, Merge: true})

	return nil
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
func (s *Store) List(_ context.Context, collection string) ([]docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []docstore.Snapshot{}

	for _, d := range s.docs {
		if d.ref.Collection != collection {
			continue
		}

		items = append(items, docstore.Snapshot{Ref: d.ref, Fields: d.fields.Clone()})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Ref.Path() < items[j].Ref.Path()
	})

	return items, nil
}

// Atomically runs fn while holding the store lock. fn must only access the
// store through tx.
func (s *Store) Atomically(ctx context.Context, readKeys []docstore.Ref, fn func(ctx context.Context, tx docstore.Tx) error) (docstore.CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := docstore.CommitResult{Attempts: 1}

	buf := docstore.NewTxBuffer(readKeys, s.getLocked)
	if err := fn(ctx, buf); err != nil {
		return res, err
	}

	if err := buf.Validate(); err != nil {
		return res, err
	}

	for _, w := range buf.Writes() {
		s.writeLocked(w)
	}

	res.CommittedAt = s.now()

	return res, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}

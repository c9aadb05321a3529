// Package docstore provides a keyed document store abstraction with an atomic
// read-modify-write primitive.
//
// Documents are addressed by a Ref (collection path + id) and carry Fields, a
// JSON-shaped map. Backends live in sub packages: memstore, pgstore,
// redisstore and mongostore.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates that the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict indicates that the transaction kept conflicting until the retries ran out.
	ErrConflict = errors.New("transaction conflict")
	// ErrUnavailable indicates that the store could not be reached or could not commit.
	ErrUnavailable = errors.New("store unavailable")
	// ErrReadAfterWrite indicates a transactional read issued after a write.
	ErrReadAfterWrite = errors.New("transaction read after write")
	// ErrUndeclaredRead indicates a transactional read of a key missing from readKeys.
	ErrUndeclaredRead = errors.New("transaction read of undeclared key")
	// ErrInvalidRef indicates a malformed document reference.
	ErrInvalidRef = errors.New("invalid document reference")
)

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

// NewRef returns a reference to the document id inside collection.
func NewRef(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

// Path returns the full document path, e.g. "users/42".
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

// Sub returns the path of the named sub collection of the document.
func (r Ref) Sub(name string) string {
	return r.Path() + "/" + name
}

// Valid reports whether the reference can address a document.
func (r Ref) Valid() bool {
	return r.Collection != "" && r.ID != "" && !strings.Contains(r.ID, "/")
}

// NewID returns a fresh store generated document id.
func NewID() string {
	return uuid.NewString()
}

// Paths returns the sorted, de-duplicated paths of refs.
func Paths(refs []Ref) []string {
	seen := make(map[string]struct{}, len(refs))
	paths := make([]string, 0, len(refs))

	for _, r := range refs {
		p := r.Path()
		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Fields holds document data. Values are JSON shaped: string, float64, bool,
// nil, map[string]any and []any.
type Fields map[string]any

// Encode converts v into Fields through its JSON representation.
func Encode(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	return f, nil
}

// Decode fills v from the document fields through their JSON representation.
func (f Fields) Decode(v any) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, v)
}

// Clone returns a deep copy of f with JSON shaped values.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}

	c, err := Encode(f)
	if err != nil {
		// Values that do not survive JSON are copied shallowly.
		c = make(Fields, len(f))
		for k, v := range f {
			c[k] = v
		}
	}

	return c
}

// Snapshot is a document read from a collection listing.
type Snapshot struct {
	Ref    Ref
	Fields Fields
}

// CommitResult describes a committed atomic unit.
type CommitResult struct {
	Attempts    int
	CommittedAt time.Time
}

// Tx is the handle passed to an atomic unit.
//
// Reads are limited to the declared read keys and must precede every write.
// Writes are buffered and applied when the unit commits.
type Tx interface {
	Get(ref Ref) (Fields, bool, error)
	Set(ref Ref, f Fields)
	Merge(ref Ref, f Fields)
}

// Store provides keyed document access and an atomic read-modify-write primitive.
type Store interface {
	Get(ctx context.Context, ref Ref) (Fields, error)
	Set(ctx context.Context, ref Ref, f Fields) error
	Merge(ctx context.Context, ref Ref, f Fields) error
	Add(ctx context.Context, collection string, f Fields) (Ref, error)
	NewRef(collection string) Ref
	List(ctx context.Context, collection string) ([]Snapshot, error)

	// Atomically runs fn as one serializable unit over readKeys. The unit
	// either commits all writes of fn or none of them. fn may run more than
	// once when the store retries a conflict, so it must not have side effects
	// outside of tx.
	Atomically(ctx context.Context, readKeys []Ref, fn func(ctx context.Context, tx Tx) error) (CommitResult, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Package mongostore implements docstore.Store on MongoDB.
//
// All documents share one collection keyed by their full path. Atomic units
// run as multi document transactions and need a replica set deployment.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	collectionName = "documents"

	codeWriteConflict = 112
	codeDuplicateKey  = 11000
)

type record struct {
	Path       string `bson:"_id"`
	Collection string `bson:"collection"`
	DocID      string `bson:"docId"`
	Rev        int64  `bson:"rev"`
	Data       bson.M `bson:"data"`
}

// Store is a MongoDB backed docstore.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	policy docstore.RetryPolicy
	now    func() time.Time
}

// New returns a Store keeping its documents in database.
func New(client *mongo.Client, database string, policy docstore.RetryPolicy) *Store {
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collectionName),
		policy: policy,
		now:    time.Now,
	}
}

// Open connects to uri, ensures the collection index and returns the Store.
func Open(ctx context.Context, uri, database string, policy docstore.RetryPolicy) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable(err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, unavailable(err)
	}

	s := New(client, database, policy)

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create documents index: %w", err)
	}

	return s, nil
}

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
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}

	return se.HasErrorLabel("TransientTransactionError") ||
		se.HasErrorCode(codeWriteConflict) ||
		se.HasErrorCode(codeDuplicateKey)
}

// normalize converts decoded BSON values into the JSON shapes Fields promises.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = normalize(e)
		}
		return a
	case []any:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = normalize(e)
		}
		return a
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func fieldsOf(data bson.M) docstore.Fields {
	f := make(docstore.Fields, len(data))
	for k, v := range data {
		f[k] = normalize(v)
	}

	return f
}

func get(ctx context.Context, coll *mongo.Collection, ref docstore.Ref) (docstore.Fields, bool, error) {
	var r record

	err := coll.FindOne(ctx, bson.M{"_id": ref.Path()}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, unavailable(err)
	}

	return fieldsOf(r.Data), true, nil
}

func write(ctx context.Context, coll *mongo.Collection, w docstore.Write) error {
	set := bson.M{
		"collection": w.Ref.Collection,
		"docId":      w.Ref.ID,
	}

	if w.Merge {
		for k, v := range w.Fields {
			set["data."+k] = v
		}

		if len(w.Fields) == 0 {
			return mergeEmpty(ctx, coll, w, set)
		}
	} else {
		data := bson.M{}
		for k, v := range w.Fields {
			data[k] = v
		}

		set["data"] = data
	}

	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": w.Ref.Path()},
		bson.M{"$set": set, "$inc": bson.M{"rev": 1}},
		options.Update().SetUpsert(true),
	)

	return unavailable(err)
}

// mergeEmpty creates an empty document without touching an existing one.
func mergeEmpty(ctx context.Context, coll *mongo.Collection, w docstore.Write, set bson.M) error {
	_, err := coll.UpdateOne(ctx,
		bson.M{"_id": w.Ref.Path()},
		bson.M{"$set": set, "$setOnInsert": bson.M{"data": bson.M{}}, "$inc": bson.M{"rev": 1}},
		options.Update().SetUpsert(true),
	)

	return unavailable(err)
}

// Get returns the document addressed by ref.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Fields, error) {
	if !ref.Valid() {
		return nil, docstore.ErrInvalidRef
	}

	f, ok, err := get(ctx, s.coll, ref)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", ref.Path()).Msg("mongostore get")
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

	return write(ctx, s.coll, docstore.Write{Ref: ref, Fields: f.Clone()})
}

// Merge merges f into the document addressed by ref, creating it if absent.
func (s *Store) Merge(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	if !ref.Valid() {
		return docstore.ErrInvalidRef
	}

	return write(ctx, s.coll, docstore.Write{Ref: ref, Fields: f.Clone(), Merge: true})
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

	cur, err := s.coll.Find(ctx,
		bson.M{"collection": collection},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, unavailable(err)
	}
	defer cur.Close(ctx)

	items := []docstore.Snapshot{}

	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}

		items = append(items, docstore.Snapshot{
			Ref:    docstore.NewRef(r.Collection, r.DocID),
			Fields: fieldsOf(r.Data),
		})
	}

	if err := cur.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, unavailable(err)
	}

	return items, nil
}

// Atomically runs fn inside a multi document transaction. The declared read
// keys that exist are claimed by bumping their revision before fn reads them,
// so concurrent units over the same keys collide with a write conflict and
// rerun with backoff until the retry policy is exhausted.
func (s *Store) Atomically(ctx context.Context, readKeys []docstore.Ref, fn func(ctx context.Context, tx docstore.Tx) error) (docstore.CommitResult, error) {
	var res docstore.CommitResult

	attempts, err := docstore.RetryConflicts(ctx, s.policy, isConflict, func(ctx context.Context) error {
		return s.attempt(ctx, readKeys, fn)
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

		zerolog.Ctx(ctx).Error().Err(err).Int("attempts", attempts).Msg("mongostore atomically")

		return res, err
	}

	res.CommittedAt = s.now()

	return res, nil
}

func (s *Store) attempt(ctx context.Context, readKeys []docstore.Ref, fn func(ctx context.Context, tx docstore.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txOpts); err != nil {
			return err
		}

		committed := false

		defer func() {
			if !committed {
				_ = session.AbortTransaction(context.WithoutCancel(sc))
			}
		}()

		paths := docstore.Paths(readKeys)
		if len(paths) > 0 {
			_, err := s.coll.UpdateMany(sc,
				bson.M{"_id": bson.M{"$in": paths}},
				bson.M{"$inc": bson.M{"rev": 1}},
			)
			if err != nil {
				return err
			}
		}

		buf := docstore.NewTxBuffer(readKeys, func(ref docstore.Ref) (docstore.Fields, bool, error) {
			return get(sc, s.coll, ref)
		})

		if err := fn(ctx, buf); err != nil {
			return unitError{err}
		}

		if err := buf.Validate(); err != nil {
			return unitError{err}
		}

		for _, w := range buf.Writes() {
			if err := write(sc, s.coll, w); err != nil {
				return err
			}
		}

		if err := session.CommitTransaction(sc); err != nil {
			return err
		}

		committed = true

		return nil
	})
}

// Ping checks the MongoDB connection.
func (s *Store) Ping(ctx context.Context) error {
	return unavailable(s.client.Ping(ctx, readpref.Primary()))
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

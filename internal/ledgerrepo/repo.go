// Package ledgerrepo manages repository layer of ledger entries.
//
// Record is the only writer of the per user aggregates: it updates the
// running total and appends the entry in one atomic unit of the store.
package ledgerrepo

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/currencypkg"
	"github.com/go-petr/marketrush/pkg/docstore"
	"github.com/go-petr/marketrush/pkg/errorspkg"
	"github.com/rs/zerolog"
)

const (
	usersCollection        = "users"
	transactionsCollection = "transactions"
)

// Document field names.
const (
	FieldTotalDeposits  = "totalDeposits"
	FieldTotalWithdrawn = "totalWithdrawn"
)

// Defaults applied to entries stored without the field.
const (
	DefaultType          = "unknown"
	DefaultCurrency      = currencypkg.SOL
	DefaultValueCurrency = currencypkg.USD
	DefaultStatus        = "recorded-demo"
)

// Repo facilitates ledger repository layer logic.
type Repo struct {
	store docstore.Store
	now   func() time.Time
}

// New returns ledger Repo over the store.
func New(store docstore.Store) *Repo {
	return &Repo{
		store: store,
		now:   time.Now,
	}
}

func aggregateField(kind domain.EntryKind) (string, string, error) {
	switch kind {
	case domain.EntryDeposit:
		return FieldTotalDeposits, domain.EntryStatusRecorded, nil
	case domain.EntryWithdrawal:
		return FieldTotalWithdrawn, domain.EntryStatusPendingApproval, nil
	}

	return "", "", errors.New("unknown entry kind " + string(kind))
}

func entryFields(e domain.Entry) docstore.Fields {
	f := docstore.Fields{
		"id":       e.ID,
		"userId":   e.UserID,
		"type":     e.Type,
		"amount":   e.Amount.String(),
		"currency": e.Currency,
		"usdValue": e.USDValue.String(),
		"status":   e.Status,

		"valueCurrency": e.ValueCurrency,
	}

	if e.CreatedAt != nil {
		f["createdAt"] = docstore.FormatTime(*e.CreatedAt)
		f["createdAtDisplay"] = e.CreatedAtDisplay
	}

	return f
}

// Record adds the amount to the aggregate of its kind and appends the ledger
// entry, both or neither.
func (r *Repo) Record(ctx context.Context, arg domain.RecordEntryParams) (domain.RecordResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.RecordResult

	userRef := docstore.NewRef(usersCollection, arg.UserID)
	if arg.UserID == "" || !userRef.Valid() {
		return result, domain.ErrUnauthorized
	}

	field, status, err := aggregateField(arg.Kind)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	entryRef := r.store.NewRef(userRef.Sub(transactionsCollection))
	quote := arg.ReferenceCurrency
	if quote == "" {
		quote = DefaultValueCurrency
	}

	derived := currencypkg.NewPair(arg.Currency, quote, arg.Rate).Convert(arg.Amount)

	var entry domain.Entry

	commit, err := r.store.Atomically(ctx, []docstore.Ref{userRef}, func(ctx context.Context, tx docstore.Tx) error {
		user, _, err := tx.Get(userRef)
		if err != nil {
			return err
		}

		total := user.Decimal(field).Add(arg.Amount)

		now := r.now().UTC()

		entry = domain.Entry{
			ID:               entryRef.ID,
			UserID:           arg.UserID,
			Type:             string(arg.Kind),
			Amount:           arg.Amount,
			Currency:         arg.Currency,
			USDValue:         derived,
			ValueCurrency:    quote,
			Status:           status,
			CreatedAt:        &now,
			CreatedAtDisplay: now.Format(domain.DisplayTimeLayout),
		}

		tx.Merge(userRef, docstore.Fields{field: total.String()})
		tx.Set(entryRef, entryFields(entry))

		return nil
	})
	if err != nil {
		l.Error().Err(err).Str("user_id", arg.UserID).Str("kind", string(arg.Kind)).
			Int("attempts", commit.Attempts).Msg("ledger record")

		return result, domain.ErrStoreUnavailable
	}

	l.Debug().Str("entry_id", entry.ID).Int("attempts", commit.Attempts).Msg("ledger entry committed")

	result = domain.RecordResult{
		AcceptedAmount: arg.Amount,
		DerivedValue:   derived,
		Status:         status,
		Entry:          entry,
	}

	return result, nil
}

func decodeEntry(s docstore.Snapshot) domain.Entry {
	f := s.Fields

	e := domain.Entry{
		ID:               f.Str("id"),
		UserID:           f.Str("userId"),
		Type:             f.Str("type"),
		Amount:           f.Decimal("amount"),
		Currency:         f.Str("currency"),
		USDValue:         f.Decimal("usdValue"),
		ValueCurrency:    f.Str("valueCurrency"),
		Status:           f.Str("status"),
		CreatedAtDisplay: f.Str("createdAtDisplay"),
	}

	if e.ID == "" {
		e.ID = s.Ref.ID
	}

	if e.Type == "" {
		e.Type = DefaultType
	}

	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}

	if e.ValueCurrency == "" {
		e.ValueCurrency = DefaultValueCurrency
	}

	if e.Status == "" {
		e.Status = DefaultStatus
	}

	if t, ok := f.Time("createdAt"); ok {
		e.CreatedAt = &t
	}

	return e
}

// List returns every ledger entry of the user in store order.
func (r *Repo) List(ctx context.Context, userID string) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	userRef := docstore.NewRef(usersCollection, userID)
	if userID == "" || !userRef.Valid() {
		return nil, domain.ErrUnauthorized
	}

	snaps, err := r.store.List(ctx, userRef.Sub(transactionsCollection))
	if err != nil {
		l.Error().Err(err).Str("user_id", userID).Msg("ledger list")
		return nil, domain.ErrStoreUnavailable
	}

	items := make([]domain.Entry, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, decodeEntry(s))
	}

	return items, nil
}

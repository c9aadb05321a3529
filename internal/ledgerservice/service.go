// Package ledgerservice manages business logic layer of ledger entries.
package ledgerservice

import (
	"context"
	"sort"
	"time"

	"github.com/go-petr/marketrush/internal/balancepolicy"
	"github.com/go-petr/marketrush/internal/domain"
	"github.com/go-petr/marketrush/pkg/configpkg"
	"github.com/go-petr/marketrush/pkg/currencypkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Repo provides data access layer interface needed by ledger service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	Record(ctx context.Context, arg domain.RecordEntryParams) (domain.RecordResult, error)
	List(ctx context.Context, userID string) ([]domain.Entry, error)
}

// SettingsReader provides the current global settings.
type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo     Repo
	settings SettingsReader

	pair          currencypkg.Pair
	minWithdrawal decimal.Decimal
	maxWithdrawal decimal.Decimal
}

// New returns ledger service struct to manage deposits, withdrawals and history.
func New(lr Repo, sr SettingsReader, config configpkg.Config) *Service {
	minWithdrawal, maxWithdrawal := config.WithdrawalBounds()

	return &Service{
		repo:          lr,
		settings:      sr,
		pair:          currencypkg.NewPair(config.LedgerCurrency, config.ReferenceCurrency, config.Rate()),
		minWithdrawal: minWithdrawal,
		maxWithdrawal: maxWithdrawal,
	}
}

func (s *Service) limits() balancepolicy.Limits {
	return balancepolicy.Limits{
		Currency:      s.pair.Base,
		MinWithdrawal: s.minWithdrawal,
		MaxWithdrawal: s.maxWithdrawal,
	}
}

// check applies the kind's limits to a parsed amount. Only the deposit cap
// needs the stored settings.
func (s *Service) check(ctx context.Context, kind domain.EntryKind, amount decimal.Decimal) error {
	limits := s.limits()

	if kind != domain.EntryDeposit {
		return balancepolicy.CheckWithdrawal(amount, limits)
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}

	limits.MaxDeposit = settings.MaxDepositPerUser

	return balancepolicy.CheckDeposit(amount, limits)
}

// RecordDeposit validates the raw amount and records it as a deposit of the caller.
func (s *Service) RecordDeposit(ctx context.Context, caller domain.Caller, raw any) (domain.RecordResult, error) {
	return s.record(ctx, caller, domain.EntryDeposit, raw)
}

// RecordWithdrawal validates the raw amount and records it as a withdrawal
// request of the caller. It is not checked against the available balance.
func (s *Service) RecordWithdrawal(ctx context.Context, caller domain.Caller, raw any) (domain.RecordResult, error) {
	return s.record(ctx, caller, domain.EntryWithdrawal, raw)
}

func (s *Service) record(ctx context.Context, caller domain.Caller, kind domain.EntryKind, raw any) (domain.RecordResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.RecordResult

	if caller.UserID == "" {
		return result, domain.ErrUnauthorized
	}

	amount, err := balancepolicy.ParseAmount(raw)
	if err != nil {
		l.Info().Err(err).Str("kind", string(kind)).Send()
		return result, err
	}

	if err := s.check(ctx, kind, amount); err != nil {
		l.Info().Err(err).Str("kind", string(kind)).Send()
		return result, err
	}

	return s.repo.Record(ctx, domain.RecordEntryParams{
		UserID:            caller.UserID,
		Kind:              kind,
		Amount:            amount,
		Currency:          s.pair.Base,
		ReferenceCurrency: s.pair.Quote,
		Rate:              s.pair.Rate,
	})
}

// ParseDateRange parses the optional YYYY-MM-DD bounds of a history query.
// from starts at 00:00:00 and to ends at 23:59:59 UTC.
func ParseDateRange(from, to string) (domain.DateRange, error) {
	var r domain.DateRange

	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return r, domain.ErrInvalidDateRange
		}

		r.From = &t
	}

	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return r, domain.ErrInvalidDateRange
		}

		t = t.Add(24*time.Hour - time.Second)
		r.To = &t
	}

	return r, nil
}

// List returns the caller's entries inside the date range, newest first.
// Entries without a timestamp always match and come last.
func (s *Service) List(ctx context.Context, caller domain.Caller, from, to string) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	dateRange, err := ParseDateRange(from, to)
	if err != nil {
		l.Info().Err(err).Str("from", from).Str("to", to).Send()
		return nil, err
	}

	entries, err := s.repo.List(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Entry, 0, len(entries))

	for _, e := range entries {
		if e.CreatedAt == nil || dateRange.Contains(*e.CreatedAt) {
			result = append(result, e)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].CreatedAt, result[j].CreatedAt

		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}

		return a.After(*b)
	})

	return result, nil
}

package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates an amount that is not a finite positive number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrDepositCapExceeded indicates a deposit above the per user cap.
	ErrDepositCapExceeded = errors.New("deposit cap exceeded")
	// ErrWithdrawalTooSmall indicates a withdrawal below the minimum.
	ErrWithdrawalTooSmall = errors.New("withdrawal too small")
	// ErrWithdrawalTooLarge indicates a withdrawal above the per request maximum.
	ErrWithdrawalTooLarge = errors.New("withdrawal too large")
	// ErrStoreUnavailable indicates that the document store failed or could not commit.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidDateRange indicates a malformed history date filter.
	ErrInvalidDateRange = errors.New("invalid date range")
)

// EntryKind is the kind of a ledger entry.
type EntryKind string

// Ledger entry kinds.
const (
	EntryDeposit    EntryKind = "deposit"
	EntryWithdrawal EntryKind = "withdrawal"
)

// Ledger entry statuses.
const (
	EntryStatusRecorded        = "recorded"
	EntryStatusPendingApproval = "pending-approval"
)

// DisplayTimeLayout formats entry timestamps for people, in UTC.
const DisplayTimeLayout = "1/2/2006, 3:04:05 PM"

// Entry is an immutable ledger record of a deposit or withdrawal.
type Entry struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	USDValue         decimal.Decimal `json:"usdValue"`
	ValueCurrency    string          `json:"valueCurrency"`
	Status           string          `json:"status"`
	CreatedAt        *time.Time      `json:"createdAt,omitempty"`
	CreatedAtDisplay string          `json:"createdAtDisplay,omitempty"`
}

// RecordEntryParams is the input of the ledger write.
type RecordEntryParams struct {
	UserID            string
	Kind              EntryKind
	Amount            decimal.Decimal
	Currency          string
	ReferenceCurrency string
	Rate              decimal.Decimal
}

// RecordResult is the outcome of a committed ledger write.
type RecordResult struct {
	AcceptedAmount decimal.Decimal `json:"amount"`
	DerivedValue   decimal.Decimal `json:"usdValue"`
	Status         string          `json:"status"`
	Entry          Entry           `json:"entry"`
}

// DateRange is an optional inclusive filter on entry timestamps.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}

	if r.To != nil && t.After(*r.To) {
		return false
	}

	return true
}

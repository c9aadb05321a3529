// Package balancepolicy validates deposit and withdrawal amounts.
//
// The checks are pure: they only depend on the raw amount and the Limits
// passed in, which callers build per request from the current settings.
package balancepolicy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/shopspring/decimal"
)

// Limits bounds accepted amounts, expressed in Currency.
type Limits struct {
	Currency      string
	MaxDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
	MaxWithdrawal decimal.Decimal
}

// Bounds on raw amounts. Strings longer than maxAmountLen and amounts finer
// than maxAmountScale decimal places are rejected before any arithmetic.
const (
	maxAmountLen   = 64
	maxAmountScale = 18
)

// ParseAmount converts a raw request amount into a finite positive decimal.
// JSON numbers and numeric strings are accepted. Every input goes through
// float64, so its magnitude and precision stay bounded.
func ParseAmount(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case float64:
		return fromFloat(v)
	case json.Number:
		return parseString(v.String())
	case string:
		return parseString(v)
	}

	return decimal.Zero, domain.ErrInvalidAmount
}

func parseString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	return fromFloat(f)
}

func fromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	d := decimal.NewFromFloat(f)
	if d.Exponent() < -maxAmountScale {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	return positive(d)
}

func positive(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	return d, nil
}

// ValidateDeposit returns the normalized deposit amount or the rule it breaks.
func ValidateDeposit(raw any, l Limits) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}

	if err := CheckDeposit(amount, l); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

// CheckDeposit reports whether a parsed amount exceeds the deposit cap.
func CheckDeposit(amount decimal.Decimal, l Limits) error {
	if amount.GreaterThan(l.MaxDeposit) {
		return fmt.Errorf("%w: max contribution per user is %s %s",
			domain.ErrDepositCapExceeded, l.MaxDeposit, l.Currency)
	}

	return nil
}

// ValidateWithdrawal returns the normalized withdrawal amount or the rule it breaks.
// The available balance is not consulted.
func ValidateWithdrawal(raw any, l Limits) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}

	if err := CheckWithdrawal(amount, l); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

// CheckWithdrawal reports whether a parsed amount is outside the withdrawal bounds.
func CheckWithdrawal(amount decimal.Decimal, l Limits) error {
	if amount.LessThan(l.MinWithdrawal) {
		return fmt.Errorf("%w: minimum withdrawal is %s %s",
			domain.ErrWithdrawalTooSmall, l.MinWithdrawal, l.Currency)
	}

	if amount.GreaterThan(l.MaxWithdrawal) {
		return fmt.Errorf("%w: maximum withdrawal is %s %s",
			domain.ErrWithdrawalTooLarge, l.MaxWithdrawal, l.Currency)
	}

	return nil
}

package balancepolicy

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-petr/marketrush/internal/domain"
	"github.com/shopspring/decimal"
)

var testLimits = Limits{
	Currency:      "SOL",
	MaxDeposit:    decimal.NewFromInt(20000),
	MinWithdrawal: decimal.RequireFromString("0.13"),
	MaxWithdrawal: decimal.NewFromInt(50),
}

func TestValidateDeposit(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     any
		want    string
		wantErr error
	}{
		{name: "Number", raw: 100.0, want: "100"},
		{name: "NumericString", raw: " 12.5 ", want: "12.5"},
		{name: "JSONNumber", raw: json.Number("0.01"), want: "0.01"},
		{name: "AtCap", raw: 20000.0, want: "20000"},
		{name: "AboveCap", raw: 25000.0, wantErr: domain.ErrDepositCapExceeded},
		{name: "Zero", raw: 0.0, wantErr: domain.ErrInvalidAmount},
		{name: "Negative", raw: "-3", wantErr: domain.ErrInvalidAmount},
		{name: "NaN", raw: math.NaN(), wantErr: domain.ErrInvalidAmount},
		{name: "Inf", raw: math.Inf(1), wantErr: domain.ErrInvalidAmount},
		{name: "Garbage", raw: "abc", wantErr: domain.ErrInvalidAmount},
		{name: "Missing", raw: nil, wantErr: domain.ErrInvalidAmount},
		{name: "Bool", raw: true, wantErr: domain.ErrInvalidAmount},
		{name: "Exponent", raw: "1.25e2", want: "125"},
		{name: "HugeExponent", raw: "1e100000000", wantErr: domain.ErrInvalidAmount},
		{name: "HugeExponentNumber", raw: json.Number("1e10000000"), wantErr: domain.ErrInvalidAmount},
		{name: "TinyExponent", raw: "1e-10000000", wantErr: domain.ErrInvalidAmount},
		{name: "TooPrecise", raw: "1e-19", wantErr: domain.ErrInvalidAmount},
		{name: "Overlong", raw: "1" + strings.Repeat("0", 70), wantErr: domain.ErrInvalidAmount},
		{name: "Empty", raw: " ", wantErr: domain.ErrInvalidAmount},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateDeposit(tc.raw, testLimits)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ValidateDeposit(%v) error = %v, want %v", tc.raw, err, tc.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("ValidateDeposit(%v) returned error: %v", tc.raw, err)
			}

			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("ValidateDeposit(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestValidateWithdrawal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     any
		want    string
		wantErr error
	}{
		{name: "Min", raw: 0.13, want: "0.13"},
		{name: "Max", raw: "50", want: "50"},
		{name: "Inside", raw: 10.0, want: "10"},
		{name: "TooSmall", raw: 0.10, wantErr: domain.ErrWithdrawalTooSmall},
		{name: "TooLarge", raw: 50.01, wantErr: domain.ErrWithdrawalTooLarge},
		{name: "Zero", raw: "0", wantErr: domain.ErrInvalidAmount},
		{name: "Negative", raw: -1.0, wantErr: domain.ErrInvalidAmount},
		{name: "HugeExponent", raw: "1e100000000", wantErr: domain.ErrInvalidAmount},
		{name: "TinyExponent", raw: "1e-10000000", wantErr: domain.ErrInvalidAmount},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateWithdrawal(tc.raw, testLimits)

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ValidateWithdrawal(%v) error = %v, want %v", tc.raw, err, tc.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("ValidateWithdrawal(%v) returned error: %v", tc.raw, err)
			}

			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("ValidateWithdrawal(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestErrorMessagesCarryLimits(t *testing.T) {
	t.Parallel()

	_, err := ValidateDeposit(25000.0, testLimits)
	if want := "deposit cap exceeded: max contribution per user is 20000 SOL"; err == nil || err.Error() != want {
		t.Errorf("ValidateDeposit(25000) error = %v, want %q", err, want)
	}

	_, err = ValidateWithdrawal(0.1, testLimits)
	if want := "withdrawal too small: minimum withdrawal is 0.13 SOL"; err == nil || err.Error() != want {
		t.Errorf("ValidateWithdrawal(0.1) error = %v, want %q", err, want)
	}
}

func TestParseAmountBoundsScale(t *testing.T) {
	t.Parallel()

	for _, raw := range []any{"1e-18", 1e-18, json.Number("0.000000000000000001")} {
		got, err := ParseAmount(raw)
		if err != nil {
			t.Fatalf("ParseAmount(%v) returned error: %v", raw, err)
		}

		if got.Exponent() < -maxAmountScale {
			t.Errorf("ParseAmount(%v) exponent = %d, want >= %d", raw, got.Exponent(), -maxAmountScale)
		}
	}
}

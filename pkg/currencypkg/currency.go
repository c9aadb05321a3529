// Package currencypkg provides common currency related functionality for apps.
package currencypkg

import "github.com/shopspring/decimal"

// Constants for the currencies the ledger knows about.
const (
	SOL = "SOL"
	USD = "USD"
)

// Pair is a fixed conversion rate from Base to Quote.
type Pair struct {
	Base  string
	Quote string
	Rate  decimal.Decimal
}

// NewPair returns the pair converting base into quote at rate.
func NewPair(base, quote string, rate decimal.Decimal) Pair {
	return Pair{Base: base, Quote: quote, Rate: rate}
}

// Convert returns amount of Base expressed in Quote.
func (p Pair) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.Rate)
}

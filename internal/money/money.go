package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in US-dollar minor units. All ledger and
// account arithmetic happens in Cents so balances stay exact; decimals
// only appear at the parsing and display boundaries.
type Cents int64

var (
	ErrMalformedAmount = errors.New("malformed monetary amount")
	ErrNotPositive     = errors.New("amount must be positive")
	ErrAmountOverflow  = errors.New("monetary amount overflow")
)

// FromDecimalString parses a decimal dollar amount (e.g. "150.00") into
// Cents. Amounts with more than two fractional digits are rejected rather
// than rounded.
func FromDecimalString(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	scaled := d.Mul(decimal.NewFromInt(100))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q has sub-cent precision", ErrMalformedAmount, s)
	}
	return Cents(scaled.IntPart()), nil
}

// FromPositiveDecimalString is FromDecimalString restricted to amounts
// strictly greater than zero, the rule for execution prices.
func FromPositiveDecimalString(s string) (Cents, error) {
	c, err := FromDecimalString(s)
	if err != nil {
		return 0, err
	}
	if c <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotPositive, s)
	}
	return c, nil
}

// FromDecimalStringRounded parses a decimal dollar amount into Cents,
// rounding sub-cent precision to the nearest cent. Used at quote
// ingestion, where upstream feeds publish four-decimal prices.
func FromDecimalStringRounded(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return Cents(d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()), nil
}

// MulShares returns the total value of n shares priced at c each,
// rejecting products that do not fit in int64.
func (c Cents) MulShares(n int64) (Cents, error) {
	if c == 0 || n == 0 {
		return 0, nil
	}
	total := c * Cents(n)
	if total/Cents(n) != c {
		return 0, fmt.Errorf("%w: %s x %d shares", ErrAmountOverflow, c, n)
	}
	return total, nil
}

// Decimal returns the amount as an exact dollar decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount as a plain dollar figure, e.g. "150.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

package types

import (
	"errors"
	"fmt"

	"github.com/ksred/brokerage-api/internal/money"
)

// Order failure modes. Validation errors are raised before any external
// call and carry no side effects; InsufficientFunds and InsufficientShares
// are business rejections, not faults, and leave cash and ledger untouched.
var (
	ErrInvalidQuantity  = errors.New("share quantity must be a positive integer")
	ErrInvalidSymbol    = errors.New("symbol must not be empty")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrQuoteUnavailable = errors.New("quote source unavailable")
	ErrStorage          = errors.New("durable store unavailable")

	// ErrConflict is a transient serialization failure. The order executor
	// retries these internally a bounded number of times before letting one
	// escape to the caller.
	ErrConflict = errors.New("concurrent order conflict")
)

// InsufficientFundsError reports a buy whose cost exceeds the available
// cash balance.
type InsufficientFundsError struct {
	RequiredCents  money.Cents
	AvailableCents money.Cents
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s", e.RequiredCents, e.AvailableCents)
}

// InsufficientSharesError reports a sell for more shares than the user
// currently holds.
type InsufficientSharesError struct {
	Symbol    string
	Requested int64
	Held      int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %d, holding %d", e.Symbol, e.Requested, e.Held)
}

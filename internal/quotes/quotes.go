package quotes

import (
	"context"
	"errors"
	"strings"

	"github.com/ksred/brokerage-api/internal/money"
)

var (
	// ErrNotFound means the symbol is unknown or malformed. This is a
	// permanent user error, distinct from ErrUnavailable.
	ErrNotFound = errors.New("symbol not found")

	// ErrUnavailable means the price source could not answer: transport
	// failure, timeout, or an unparseable response. Transient.
	ErrUnavailable = errors.New("quote source unavailable")
)

// Quote is a point-in-time price for a symbol. It carries no staleness
// guarantee; callers must fetch a fresh quote for every order attempt.
type Quote struct {
	Symbol     string      `json:"symbol"`
	PriceCents money.Cents `json:"price_cents"`
}

// Gateway answers price lookups against an external source.
type Gateway interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Normalize canonicalizes a symbol: surrounding whitespace collapsed,
// upper-cased. Returns ErrNotFound for symbols that are empty once trimmed.
func Normalize(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

package quotes

import (
	"context"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ksred/brokerage-api/internal/money"
)

// SimGateway is an in-process price source for development and tests. It
// serves a fixed symbol table, optionally with a small random walk around
// each listed price so repeated lookups move the way a live feed would.
type SimGateway struct {
	mu     sync.RWMutex
	prices map[string]money.Cents
	jitter float64 // max fractional deviation per lookup, 0 disables
}

var simListings = map[string]money.Cents{
	"AAPL":  150_00,
	"GOOGL": 138_00,
	"MSFT":  410_00,
	"AMZN":  178_00,
	"META":  480_00,
}

// NewSimGateway returns a gateway over the default listing table.
func NewSimGateway(jitter float64) *SimGateway {
	prices := make(map[string]money.Cents, len(simListings))
	for sym, price := range simListings {
		prices[sym] = price
	}
	return &SimGateway{prices: prices, jitter: jitter}
}

// NewStaticGateway returns a gateway serving exactly the given prices with
// no movement. Intended for tests.
func NewStaticGateway(prices map[string]money.Cents) *SimGateway {
	table := make(map[string]money.Cents, len(prices))
	for sym, price := range prices {
		norm, err := Normalize(sym)
		if err != nil {
			continue
		}
		table[norm] = price
	}
	return &SimGateway{prices: table}
}

// SetPrice lists or reprices a symbol.
func (g *SimGateway) SetPrice(symbol string, price money.Cents) {
	norm, err := Normalize(symbol)
	if err != nil {
		return
	}
	g.mu.Lock()
	g.prices[norm] = price
	g.mu.Unlock()
}

// GetQuote returns the current simulated price for a listed symbol.
func (g *SimGateway) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	sym, err := Normalize(symbol)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	price, ok := g.prices[sym]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if g.jitter > 0 {
		moved := money.Cents(float64(price) * (1 + (rand.Float64()*2-1)*g.jitter))
		if moved < 1 {
			moved = 1
		}
		g.mu.Lock()
		g.prices[sym] = moved
		g.mu.Unlock()
		price = moved

		log.Debug().Str("symbol", sym).Str("price", price.String()).Msg("simulated price moved")
	}

	return &Quote{Symbol: sym, PriceCents: price}, nil
}

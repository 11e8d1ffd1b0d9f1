package quotes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/brokerage-api/internal/money"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	sym, err := Normalize("  aapl ")
	assert.NoError(t, err)
	assert.Equal(t, "AAPL", sym)

	_, err = Normalize("   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticGatewayLookup(t *testing.T) {
	t.Parallel()

	g := NewStaticGateway(map[string]money.Cents{"aapl": 150_00})

	quote, err := g.GetQuote(context.Background(), " AAPL ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, money.Cents(150_00), quote.PriceCents)

	// Repeated lookups with zero jitter never move the price.
	again, err := g.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, quote.PriceCents, again.PriceCents)

	_, err = g.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticGatewaySetPrice(t *testing.T) {
	t.Parallel()

	g := NewStaticGateway(map[string]money.Cents{"AAPL": 150_00})
	g.SetPrice("aapl", 151_00)

	quote, err := g.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(151_00), quote.PriceCents)
}

func TestSimGatewayJitterStaysPositive(t *testing.T) {
	t.Parallel()

	g := NewSimGateway(0.02)
	for i := 0; i < 50; i++ {
		quote, err := g.GetQuote(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Greater(t, int64(quote.PriceCents), int64(0))
	}
}

func globalQuoteBody(symbol, price string) string {
	return fmt.Sprintf(`{"Global Quote": {"01. symbol": %q, "05. price": %q}}`, symbol, price)
}

func TestHTTPGatewayQuote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, globalQuoteBody("AAPL", "150.2500"))
	}))
	defer srv.Close()

	g := NewHTTPGateway("test-key", srv.URL)
	quote, err := g.GetQuote(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, money.Cents(150_25), quote.PriceCents)
}

func TestHTTPGatewaySubCentPriceRounds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, globalQuoteBody("AAPL", "150.1235"))
	}))
	defer srv.Close()

	g := NewHTTPGateway("test-key", srv.URL)
	quote, err := g.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(150_12), quote.PriceCents)
}

func TestHTTPGatewayMalformedPriceIsUnavailable(t *testing.T) {
	t.Parallel()

	// A present quote block with a broken price is a feed fault, not an
	// unknown symbol.
	for _, price := range []string{"", "garbage", "0.0000", "-1.00"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, globalQuoteBody("AAPL", price))
		}))

		g := NewHTTPGateway("test-key", srv.URL)
		_, err := g.GetQuote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrUnavailable, "price %q", price)
		srv.Close()
	}
}

func TestHTTPGatewayUnknownSymbol(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Global Quote": {}}`)
	}))
	defer srv.Close()

	g := NewHTTPGateway("test-key", srv.URL)
	_, err := g.GetQuote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPGatewayRateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note": "Thank you for using our API"}`)
	}))
	defer srv.Close()

	g := NewHTTPGateway("test-key", srv.URL)
	_, err := g.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPGatewayUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewHTTPGateway("test-key", srv.URL)
	_, err := g.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPGatewayTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	g := NewHTTPGateway("test-key", srv.URL)
	_, err := g.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrUnavailable)
}

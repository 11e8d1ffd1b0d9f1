package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksred/brokerage-api/internal/money"
)

const defaultBaseURL = "https://www.alphavantage.co"

// HTTPGateway fetches quotes from an Alpha Vantage GLOBAL_QUOTE endpoint.
// No caching: every call is one live lookup, so a retried order never
// reuses a stale price.
type HTTPGateway struct {
	apiKey  string
	baseURL string
	cli     *http.Client
}

// NewHTTPGateway creates a gateway against the given base URL (empty for
// the public Alpha Vantage endpoint) with a bounded request timeout.
func NewHTTPGateway(apiKey, baseURL string) *HTTPGateway {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &HTTPGateway{
		apiKey:  apiKey,
		baseURL: baseURL,
		cli:     &http.Client{Timeout: 8 * time.Second},
	}
}

// GetQuote looks up the current price for a symbol. Only an empty quote
// block means the symbol is unknown (ErrNotFound); transport, rate-limit,
// and malformed-price responses return ErrUnavailable. Sub-cent prices in
// the feed are rounded to the nearest cent.
func (g *HTTPGateway) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	sym, err := Normalize(symbol)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		g.baseURL, url.QueryEscape(sym), url.QueryEscape(g.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "brokerage-api/1.0")

	resp, err := g.cli.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("symbol", sym).Msg("quote request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream http %d", ErrUnavailable, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Rate-limit and informational responses come back 200 with a note body.
	if _, ok := raw["Note"]; ok {
		return nil, fmt.Errorf("%w: rate limited", ErrUnavailable)
	}
	if _, ok := raw["Information"]; ok {
		return nil, fmt.Errorf("%w: rate limited", ErrUnavailable)
	}

	gq, ok := raw["Global Quote"].(map[string]any)
	if !ok || len(gq) == 0 {
		return nil, ErrNotFound
	}

	priceStr, _ := gq["05. price"].(string)
	price, err := money.FromDecimalStringRounded(priceStr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad price %q", ErrUnavailable, priceStr)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: non-positive price %q", ErrUnavailable, priceStr)
	}

	return &Quote{Symbol: sym, PriceCents: price}, nil
}

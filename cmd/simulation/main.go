package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/brokerage-api/internal/auth"
	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/database"
	"github.com/ksred/brokerage-api/internal/ledger"
	"github.com/ksred/brokerage-api/internal/money"
	"github.com/ksred/brokerage-api/internal/orders"
	"github.com/ksred/brokerage-api/internal/portfolio"
	"github.com/ksred/brokerage-api/internal/quotes"
	"github.com/ksred/brokerage-api/internal/types"
	"github.com/ksred/brokerage-api/pkg/middleware"
)

const (
	numUsers       = 5
	ordersPerUser  = 40
	serverAddress  = "http://localhost:8080"
	simulationJWT  = "simulation-secret-key"
	openingBalance = auth.StartingBalance
)

var symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var total time.Duration
	for _, d := range rs.durations {
		total += d
	}
	mean = total / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the brokerage API on
// behalf of one simulated user
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

// newSimulationClient registers a fresh user, logs in, and prepares
// performance tracking
func newSimulationClient(username string) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"register":  {name: "Register"},
			"login":     {name: "Login"},
			"buy":       {name: "Buy Order"},
			"sell":      {name: "Sell Order"},
			"portfolio": {name: "Portfolio"},
			"history":   {name: "History"},
		},
	}

	if err := sc.register(username); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	token, err := sc.login(username)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

func (sc *simulationClient) register(username string) error {
	start := time.Now()
	failed := false
	defer func() { sc.record("register", start, failed) }()

	body, _ := json.Marshal(auth.Credentials{Username: username, Password: "simulation-pass"})
	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/register", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return fmt.Errorf("registration failed with status: %d", resp.StatusCode)
	}
	return nil
}

func (sc *simulationClient) login(username string) (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("login", start, failed) }()

	body, _ := json.Marshal(auth.Credentials{Username: username, Password: "simulation-pass"})
	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/login", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}
	return result.Data.Token, nil
}

// placeOrder submits one buy or sell and returns the committed transaction.
// Business rejections (insufficient funds or shares) come back as a nil
// transaction with no error: they are expected outcomes under random load.
func (sc *simulationClient) placeOrder(side, symbol string, shares int64) (*types.Transaction, error) {
	route := strings.ToLower(side)
	start := time.Now()
	failed := false
	defer func() { sc.record(route, start, failed) }()

	body, _ := json.Marshal(types.OrderRequest{Symbol: symbol, Shares: shares})
	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/orders/%s", sc.baseURL, route),
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		failed = true
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		failed = true
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Order response")

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return nil, fmt.Errorf("order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool              `json:"success"`
		Data    types.Transaction `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if result.Data.TxID == "" {
		failed = true
		return nil, fmt.Errorf("no transaction ID in response: %s", string(respBody))
	}
	return &result.Data, nil
}

func (sc *simulationClient) getPortfolio() (*types.PortfolioSnapshot, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("portfolio", start, failed) }()

	var result struct {
		Data types.PortfolioSnapshot `json:"data"`
	}
	if err := sc.getJSON("/api/v1/portfolio", &result); err != nil {
		failed = true
		return nil, err
	}
	return &result.Data, nil
}

func (sc *simulationClient) getHistory() ([]types.Transaction, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("history", start, failed) }()

	var result struct {
		Data []types.Transaction `json:"data"`
	}
	if err := sc.getJSON("/api/v1/history", &result); err != nil {
		failed = true
		return nil, err
	}
	return result.Data, nil
}

func (sc *simulationClient) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest("GET", sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, out)
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(clients []*simulationClient) {
	merged := map[string]*routeStats{}
	for _, sc := range clients {
		for key, stats := range sc.stats {
			m, ok := merged[key]
			if !ok {
				m = &routeStats{name: stats.name}
				merged[key] = m
			}
			m.durations = append(m.durations, stats.durations...)
			m.totalCalls += stats.totalCalls
			m.failures += stats.failures
		}
	}

	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range merged {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the trading simulation
// It starts a local API server, hammers it with concurrent buy/sell
// orders from several users, then audits every account: the final cash
// plus the signed value of all ledger entries must equal the opening
// balance, and no holding may be negative.
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// One client per simulated user
	clients := make([]*simulationClient, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		username := fmt.Sprintf("sim_user_%d_%d", i, time.Now().UnixNano())
		sc, err := newSimulationClient(username)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize simulation client")
		}
		clients = append(clients, sc)
	}

	log.Info().Int("users", numUsers).Int("orders_per_user", ordersPerUser).Msg("Starting simulation")
	start := time.Now()

	var (
		wg        sync.WaitGroup
		statsMu   sync.Mutex
		committed int
		rejected  int
		errored   int
	)

	for i, sc := range clients {
		wg.Add(1)
		go func(userIdx int, sc *simulationClient) {
			defer wg.Done()
			for n := 0; n < ordersPerUser; n++ {
				side := "BUY"
				if rand.Intn(2) == 0 {
					side = "SELL"
				}
				symbol := symbols[rand.Intn(len(symbols))]
				shares := int64(rand.Intn(20) + 1)

				txn, err := sc.placeOrder(side, symbol, shares)
				statsMu.Lock()
				switch {
				case err != nil:
					errored++
				case txn == nil:
					rejected++
				default:
					committed++
				}
				statsMu.Unlock()

				if err != nil {
					log.Error().Err(err).
						Int("user", userIdx).
						Str("side", side).
						Str("symbol", symbol).
						Msg("Order errored")
				}
			}
		}(i, sc)
	}
	wg.Wait()

	duration := time.Since(start)
	log.Info().
		Int("committed", committed).
		Int("rejected", rejected).
		Int("errored", errored).
		Dur("duration", duration).
		Msg("Order phase complete, auditing accounts")

	// Audit every user from the outside: history and portfolio must agree
	// with each other and with the opening balance.
	violations := 0
	for i, sc := range clients {
		if !auditClient(i, sc) {
			violations++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Users:            %d
Orders Committed: %d
Orders Rejected:  %d
Orders Errored:   %d
Audit Violations: %d
Duration:         %v
`, numUsers, committed, rejected, errored, violations, duration.Round(time.Millisecond))

	printPerformanceStats(clients)

	if violations > 0 {
		log.Fatal().Int("violations", violations).Msg("Simulation found invariant violations")
	}
	log.Info().Msg("Simulation completed, all invariants held")
}

// auditClient checks one user's invariants through the public API
func auditClient(userIdx int, sc *simulationClient) bool {
	history, err := sc.getHistory()
	if err != nil {
		log.Error().Err(err).Int("user", userIdx).Msg("Failed to fetch history")
		return false
	}
	snapshot, err := sc.getPortfolio()
	if err != nil {
		log.Error().Err(err).Int("user", userIdx).Msg("Failed to fetch portfolio")
		return false
	}

	ok := true

	var traded money.Cents
	holdings := map[string]int64{}
	for _, t := range history {
		v, err := t.PriceCents.MulShares(t.Shares)
		if err != nil {
			log.Error().Err(err).Int("user", userIdx).Str("tx_id", t.TxID).Msg("Ledger row value overflows")
			return false
		}
		traded += v
		holdings[t.Symbol] += t.Shares
	}

	if snapshot.CashCents+traded != openingBalance {
		log.Error().
			Int("user", userIdx).
			Str("cash", snapshot.CashCents.String()).
			Str("ledger_value", traded.String()).
			Msg("Conservation violated")
		ok = false
	}
	if snapshot.CashCents < 0 {
		log.Error().Int("user", userIdx).Msg("Negative cash balance")
		ok = false
	}
	for sym, shares := range holdings {
		if shares < 0 {
			log.Error().Int("user", userIdx).Str("symbol", sym).Int64("shares", shares).Msg("Negative holding")
			ok = false
		}
	}
	for _, h := range snapshot.Holdings {
		if h.Shares != holdings[h.Symbol] {
			log.Error().
				Int("user", userIdx).
				Str("symbol", h.Symbol).
				Int64("snapshot_shares", h.Shares).
				Int64("ledger_shares", holdings[h.Symbol]).
				Msg("Snapshot disagrees with ledger")
			ok = false
		}
	}

	return ok
}

// startServer initializes and starts the brokerage API server with the
// simulated quote feed
func startServer() error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	gateway := quotes.NewSimGateway(0.01)

	ledgerDB := ledger.NewDatabase(db)
	cashDB := cash.NewDatabase(db)
	projector := portfolio.NewService(db, ledgerDB, cashDB, gateway)

	authService := auth.NewService(db, cashDB, simulationJWT)
	orderService := orders.NewService(db, ledgerDB, cashDB, projector, gateway)

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	orderHandlers := orders.NewGinHandlers(orderService)
	quoteHandlers := quotes.NewGinHandlers(gateway)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(simulationJWT))
		{
			protected.GET("/quote/:symbol", quoteHandlers.QuoteHandler())
			protected.POST("/orders/buy", orderHandlers.BuyHandler())
			protected.POST("/orders/sell", orderHandlers.SellHandler())
			protected.GET("/portfolio", orderHandlers.PortfolioHandler())
			protected.GET("/history", orderHandlers.HistoryHandler())
		}
	}

	return router.Run(":8080")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/gin-gonic/gin"

	"github.com/ksred/brokerage-api/internal/audit"
	"github.com/ksred/brokerage-api/internal/auth"
	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/database"
	"github.com/ksred/brokerage-api/internal/ledger"
	"github.com/ksred/brokerage-api/internal/orders"
	"github.com/ksred/brokerage-api/internal/portfolio"
	"github.com/ksred/brokerage-api/internal/quotes"
	"github.com/ksred/brokerage-api/pkg/middleware"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the brokerage API server with graceful
// shutdown support. It wires the quote gateway, the order executor and
// its collaborators, and the background ledger auditor.
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "brokerage-secret-key"
	}

	// A live gateway when an API key is configured, the simulated feed
	// otherwise.
	var gateway quotes.Gateway
	if apiKey := os.Getenv("QUOTE_API_KEY"); apiKey != "" {
		gateway = quotes.NewHTTPGateway(apiKey, os.Getenv("QUOTE_BASE_URL"))
	} else {
		zlog.Info().Msg("QUOTE_API_KEY not set, serving simulated quotes")
		gateway = quotes.NewSimGateway(0.01)
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	ledgerDB := ledger.NewDatabase(db)
	cashDB := cash.NewDatabase(db)
	projector := portfolio.NewService(db, ledgerDB, cashDB, gateway)

	authService := auth.NewService(db, cashDB, jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)

	orderService := orders.NewService(db, ledgerDB, cashDB, projector, gateway)
	orderHandlers := orders.NewGinHandlers(orderService)

	quoteHandlers := quotes.NewGinHandlers(gateway)

	// Create and start the background ledger auditor
	auditor := audit.NewProcessor(ledgerDB, cashDB, auth.StartingBalance)
	auditorCtx, auditorCancel := context.WithCancel(context.Background())
	defer auditorCancel()

	go auditor.Start(auditorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, orderHandlers, quoteHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for registration and login
// - Trading routes: Protected by JWT authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	quoteHandlers *quotes.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Authenticated routes
		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.GET("/quote/:symbol", quoteHandlers.QuoteHandler())
			protected.POST("/orders/buy", orderHandlers.BuyHandler())
			protected.POST("/orders/sell", orderHandlers.SellHandler())
			protected.GET("/portfolio", orderHandlers.PortfolioHandler())
			protected.GET("/history", orderHandlers.HistoryHandler())
		}
	}
}

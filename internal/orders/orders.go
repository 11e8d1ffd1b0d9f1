package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/ledger"
	"github.com/ksred/brokerage-api/internal/portfolio"
	"github.com/ksred/brokerage-api/internal/quotes"
	"github.com/ksred/brokerage-api/internal/types"
)

// maxAttempts bounds the internal retry loop for transient serialization
// failures before one surfaces to the caller as a conflict.
const maxAttempts = 3

// Service executes buy and sell orders. It is the only writer of cash
// balances and ledger rows: each order runs under that user's lock and
// commits its debit/credit and ledger append in one database transaction,
// so no partial effect is ever observable.
type Service struct {
	db        *gorm.DB
	ledger    *ledger.Database
	cash      *cash.Database
	portfolio *portfolio.Service
	quotes    quotes.Gateway
	locks     *userLocks
}

// NewService creates an order executor over the given collaborators.
func NewService(db *gorm.DB, ledgerDB *ledger.Database, cashDB *cash.Database, projector *portfolio.Service, gateway quotes.Gateway) *Service {
	return &Service{
		db:        db,
		ledger:    ledgerDB,
		cash:      cashDB,
		portfolio: projector,
		quotes:    gateway,
		locks:     newUserLocks(),
	}
}

// ExecuteBuy purchases quantity shares of symbol at the current quote.
// Cash exactly equal to the cost is sufficient. Returns the committed
// transaction.
func (s *Service) ExecuteBuy(ctx context.Context, userID, symbol string, quantity int64) (*types.Transaction, error) {
	if err := validate(symbol, quantity); err != nil {
		return nil, err
	}

	logger := log.With().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Str("side", "BUY").
		Logger()

	var committed *types.Transaction
	err := s.withRetry(logger, func() error {
		// A fresh quote on every attempt: prices are only valid at the
		// instant of the call.
		quote, err := s.fetchQuote(ctx, symbol)
		if err != nil {
			return err
		}
		cost, err := quote.PriceCents.MulShares(quantity)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidQuantity, err)
		}

		return s.commit(userID, func(tx *gorm.DB) error {
			if err := s.cash.Debit(tx, userID, cost); err != nil {
				return err
			}
			committed = &types.Transaction{
				TxID:       uuid.New().String(),
				UserID:     userID,
				Symbol:     quote.Symbol,
				Shares:     quantity,
				PriceCents: quote.PriceCents,
				ExecutedAt: time.Now(),
			}
			return s.ledger.Append(tx, committed)
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("transaction_id", committed.TxID).
		Str("price", committed.PriceCents.String()).
		Msg("buy order committed")
	return committed, nil
}

// ExecuteSell sells quantity shares of symbol at the current quote. The
// availability check runs inside the same transaction as the commit, so a
// concurrent order cannot make it stale. Selling the full position is
// legal; selling more than held is rejected with no side effects.
func (s *Service) ExecuteSell(ctx context.Context, userID, symbol string, quantity int64) (*types.Transaction, error) {
	if err := validate(symbol, quantity); err != nil {
		return nil, err
	}

	logger := log.With().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Str("side", "SELL").
		Logger()

	var committed *types.Transaction
	err := s.withRetry(logger, func() error {
		quote, err := s.fetchQuote(ctx, symbol)
		if err != nil {
			return err
		}
		proceeds, err := quote.PriceCents.MulShares(quantity)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidQuantity, err)
		}

		return s.commit(userID, func(tx *gorm.DB) error {
			held, err := s.portfolio.HoldingOfTx(tx, userID, quote.Symbol)
			if err != nil {
				return err
			}
			if quantity > held {
				return &types.InsufficientSharesError{
					Symbol:    quote.Symbol,
					Requested: quantity,
					Held:      held,
				}
			}
			if err := s.cash.Credit(tx, userID, proceeds); err != nil {
				return err
			}
			committed = &types.Transaction{
				TxID:       uuid.New().String(),
				UserID:     userID,
				Symbol:     quote.Symbol,
				Shares:     -quantity,
				PriceCents: quote.PriceCents,
				ExecutedAt: time.Now(),
			}
			return s.ledger.Append(tx, committed)
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("transaction_id", committed.TxID).
		Str("price", committed.PriceCents.String()).
		Msg("sell order committed")
	return committed, nil
}

// GetHistory returns the user's full trade history, oldest first.
func (s *Service) GetHistory(userID string) ([]types.Transaction, error) {
	return s.ledger.QueryByUser(userID)
}

// GetPortfolioSnapshot values the user's current positions at live quotes.
func (s *Service) GetPortfolioSnapshot(ctx context.Context, userID string) (*types.PortfolioSnapshot, error) {
	return s.portfolio.Snapshot(ctx, userID)
}

func validate(symbol string, quantity int64) error {
	if quantity <= 0 {
		return types.ErrInvalidQuantity
	}
	if strings.TrimSpace(symbol) == "" {
		return types.ErrInvalidSymbol
	}
	return nil
}

func (s *Service) fetchQuote(ctx context.Context, symbol string) (*quotes.Quote, error) {
	quote, err := s.quotes.GetQuote(ctx, symbol)
	switch {
	case err == nil:
		return quote, nil
	case errors.Is(err, quotes.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownSymbol, strings.TrimSpace(symbol))
	default:
		return nil, fmt.Errorf("%w: %v", types.ErrQuoteUnavailable, err)
	}
}

// commit runs fn inside the user's lock and one database transaction.
func (s *Service) commit(userID string, fn func(tx *gorm.DB) error) error {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

// withRetry re-runs an order attempt after a transient serialization
// failure, with fresh reads and a fresh quote each time.
func (s *Service) withRetry(logger zerolog.Logger, attempt func() error) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		err = attempt()
		if err == nil || !isRetryable(err) {
			return err
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("transient conflict, retrying order")
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return fmt.Errorf("%w: %v", types.ErrConflict, err)
}

// isRetryable reports whether the error is a transient lock conflict from
// the store rather than a business rejection or permanent fault.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

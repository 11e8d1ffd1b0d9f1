package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/ledger"
	"github.com/ksred/brokerage-api/internal/quotes"
	"github.com/ksred/brokerage-api/internal/types"
)

// Service projects current holdings and portfolio value from the ledger.
// It holds no state of its own: every answer is a fresh fold over the
// user's transaction history, so reads are always consistent with the
// last committed append.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Database
	cash   *cash.Database
	quotes quotes.Gateway
}

func NewService(db *gorm.DB, ledgerDB *ledger.Database, cashDB *cash.Database, gateway quotes.Gateway) *Service {
	return &Service{
		db:     db,
		ledger: ledgerDB,
		cash:   cashDB,
		quotes: gateway,
	}
}

// Fold sums signed share quantities per symbol, dropping entries that net
// to zero or below.
func Fold(txs []types.Transaction) map[string]int64 {
	net := make(map[string]int64)
	for _, t := range txs {
		net[t.Symbol] += t.Shares
	}
	for sym, shares := range net {
		if shares <= 0 {
			delete(net, sym)
		}
	}
	return net
}

// HoldingsOf returns the user's net position per symbol. Symbols whose
// position nets to zero are absent.
func (s *Service) HoldingsOf(userID string) (map[string]int64, error) {
	txs, err := s.ledger.QueryByUser(userID)
	if err != nil {
		return nil, err
	}
	return Fold(txs), nil
}

// HoldingOf returns the user's net position in one symbol, zero when the
// symbol was never traded or has been fully liquidated.
func (s *Service) HoldingOf(userID, symbol string) (int64, error) {
	holdings, err := s.HoldingsOf(userID)
	if err != nil {
		return 0, err
	}
	return holdings[symbol], nil
}

// HoldingOfTx is HoldingOf evaluated under an open transaction handle, so
// a sell's availability check sees exactly the ledger state its commit
// will extend.
func (s *Service) HoldingOfTx(tx *gorm.DB, userID, symbol string) (int64, error) {
	txs, err := s.ledger.QueryByUserTx(tx, userID)
	if err != nil {
		return 0, err
	}
	return Fold(txs)[symbol], nil
}

// Snapshot values the user's holdings at live quotes and adds cash.
// Symbols whose quote cannot be fetched right now are included with a
// zero price rather than dropped: hiding a row would hide shares the
// user still owns.
func (s *Service) Snapshot(ctx context.Context, userID string) (*types.PortfolioSnapshot, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("service", "portfolio").
		Logger()

	// Ledger and cash are read under one transaction handle so the
	// snapshot never straddles a concurrent order's commit. The handle is
	// released before any quote lookup.
	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	txs, err := s.ledger.QueryByUserTx(tx, userID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	balance, err := s.cash.GetBalanceTx(tx, userID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	tx.Rollback()

	holdings := Fold(txs)

	snapshot := &types.PortfolioSnapshot{
		UserID:    userID,
		Holdings:  make([]types.Holding, 0, len(holdings)),
		CashCents: balance,
		AsOf:      time.Now(),
	}

	total := balance
	for sym, shares := range holdings {
		row := types.Holding{Symbol: sym, Shares: shares}

		quote, err := s.quotes.GetQuote(ctx, sym)
		switch {
		case err == nil:
			value, verr := quote.PriceCents.MulShares(shares)
			if verr != nil {
				return nil, verr
			}
			row.PriceCents = quote.PriceCents
			row.ValueCents = value
			total += value
		case errors.Is(err, quotes.ErrNotFound), errors.Is(err, quotes.ErrUnavailable):
			logger.Warn().Err(err).Str("symbol", sym).Msg("holding left unpriced in snapshot")
		default:
			return nil, err
		}

		snapshot.Holdings = append(snapshot.Holdings, row)
	}
	snapshot.TotalCents = total

	sort.Slice(snapshot.Holdings, func(i, j int) bool {
		return snapshot.Holdings[i].Symbol < snapshot.Holdings[j].Symbol
	})
	return snapshot, nil
}

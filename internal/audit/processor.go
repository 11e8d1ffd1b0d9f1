package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/ledger"
	"github.com/ksred/brokerage-api/internal/money"
)

// Processor periodically audits every account against the ledger. For
// each user it checks that cash plus the signed value of all executed
// trades equals the opening balance, and that no symbol nets to a
// negative position. A violation means a commit escaped the per-user
// serialization discipline and is logged loudly; the processor never
// mutates anything.
type Processor struct {
	ledger       *ledger.Database
	cash         *cash.Database
	opening      money.Cents
	processDelay time.Duration
}

func NewProcessor(ledgerDB *ledger.Database, cashDB *cash.Database, opening money.Cents) *Processor {
	return &Processor{
		ledger:       ledgerDB,
		cash:         cashDB,
		opening:      opening,
		processDelay: 5 * time.Minute,
	}
}

// Start begins the audit loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "ledger_auditor").Logger()
	logger.Info().Msg("starting ledger auditor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down ledger auditor")
			return
		case <-ticker.C:
			if err := p.AuditAll(); err != nil {
				logger.Error().Err(err).Msg("ledger audit pass failed")
			}
		}
	}
}

// AuditAll runs one audit pass over every account.
func (p *Processor) AuditAll() error {
	logger := log.With().Str("component", "ledger_auditor").Logger()

	accounts, err := p.cash.ListAccounts()
	if err != nil {
		return err
	}

	violations := 0
	for _, account := range accounts {
		ok, err := p.AuditUser(account.UserID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", account.UserID).Msg("could not audit user")
			continue
		}
		if !ok {
			violations++
		}
	}

	logger.Info().
		Int("accounts", len(accounts)).
		Int("violations", violations).
		Msg("ledger audit pass complete")
	return nil
}

// AuditUser verifies one user's invariants. Returns false when a check
// fails.
func (p *Processor) AuditUser(userID string) (bool, error) {
	logger := log.With().
		Str("component", "ledger_auditor").
		Str("user_id", userID).
		Logger()

	balance, err := p.cash.GetBalance(userID)
	if err != nil {
		return false, err
	}

	txs, err := p.ledger.QueryByUser(userID)
	if err != nil {
		return false, err
	}

	ok := true

	if balance < 0 {
		logger.Error().Str("balance", balance.String()).Msg("negative cash balance")
		ok = false
	}

	// Cash spent and received must mirror the ledger exactly.
	var traded money.Cents
	valued := true
	for _, t := range txs {
		v, err := t.PriceCents.MulShares(t.Shares)
		if err != nil {
			logger.Error().Err(err).Str("tx_id", t.TxID).Msg("ledger row value overflows")
			ok = false
			valued = false
			break
		}
		traded += v
	}
	if valued && balance+traded != p.opening {
		logger.Error().
			Str("balance", balance.String()).
			Str("ledger_value", traded.String()).
			Str("opening", p.opening.String()).
			Msg("conservation violated: cash and ledger disagree")
		ok = false
	}

	// Fold drops non-positive entries, so sum raw quantities here to catch
	// a short position.
	raw := make(map[string]int64)
	for _, t := range txs {
		raw[t.Symbol] += t.Shares
	}
	for sym, shares := range raw {
		if shares < 0 {
			logger.Error().Str("symbol", sym).Int64("net_shares", shares).Msg("negative holding")
			ok = false
		}
	}

	return ok, nil
}

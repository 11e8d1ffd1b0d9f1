package types

import (
	"time"

	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/money"
)

// Transaction is one executed trade. Rows are append-only: nothing in the
// codebase updates or deletes them, and derived views (holdings, the
// portfolio snapshot) are always recomputed from this table.
type Transaction struct {
	gorm.Model `json:"-"`
	TxID       string      `gorm:"uniqueIndex" json:"transaction_id"`
	UserID     string      `gorm:"index:idx_transactions_user_symbol" json:"user_id"`
	Symbol     string      `gorm:"index:idx_transactions_user_symbol" json:"symbol"`
	Shares     int64       `json:"shares"` // positive = bought, negative = sold
	PriceCents money.Cents `json:"price_cents"`
	ExecutedAt time.Time   `json:"executed_at"`
}

// OrderRequest is the body of a buy or sell call.
type OrderRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Shares int64  `json:"shares" binding:"required"`
}

// Holding is one row of a portfolio snapshot: a position valued at the
// current market quote.
type Holding struct {
	Symbol     string      `json:"symbol"`
	Shares     int64       `json:"shares"`
	PriceCents money.Cents `json:"price_cents"`
	ValueCents money.Cents `json:"value_cents"`
}

// PortfolioSnapshot is the read-time view of a user's positions and cash.
// It has no lifecycle of its own; two snapshots with no order in between
// differ at most in quote-derived market values.
type PortfolioSnapshot struct {
	UserID     string      `json:"user_id"`
	Holdings   []Holding   `json:"holdings"`
	CashCents  money.Cents `json:"cash_cents"`
	TotalCents money.Cents `json:"total_cents"`
	AsOf       time.Time   `json:"as_of"`
}

package cash

import (
	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/money"
)

// Account holds one user's cash balance. The balance never goes negative:
// Debit rejects any amount above the current balance before writing.
type Account struct {
	gorm.Model   `json:"-"`
	UserID       string      `gorm:"uniqueIndex" json:"user_id"`
	BalanceCents money.Cents `json:"balance_cents"`
}

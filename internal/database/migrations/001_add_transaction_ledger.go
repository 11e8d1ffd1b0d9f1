package migrations

import (
	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/types"
)

// AddTransactionLedger creates the append-only transactions table. There
// is intentionally no migration that alters or drops ledger rows.
func AddTransactionLedger(db *gorm.DB) error {
	return db.AutoMigrate(&types.Transaction{})
}

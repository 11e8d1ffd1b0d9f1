package ledger

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/types"
)

// Database is the append-only transaction ledger. Append is the only
// mutator; there is deliberately no update or delete path. Corrections
// would be written as offsetting transactions, never edits.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Append writes one executed trade inside the caller's transaction so the
// ledger row and the cash mutation it accompanies commit or roll back as a
// unit.
func (d *Database) Append(tx *gorm.DB, t *types.Transaction) error {
	if t.Shares == 0 {
		return errors.New("ledger: zero-share transaction")
	}
	if t.PriceCents <= 0 {
		return errors.New("ledger: non-positive execution price")
	}
	if err := tx.Create(t).Error; err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

// QueryByUser returns all of a user's transactions ordered by execution
// time ascending, row id breaking ties. The query is stateless, so callers
// can re-issue it at any time.
func (d *Database) QueryByUser(userID string) ([]types.Transaction, error) {
	var txs []types.Transaction
	if err := d.db.
		Where("user_id = ?", userID).
		Order("executed_at ASC, id ASC").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return txs, nil
}

// QueryByUserTx is QueryByUser against an open transaction handle, used
// when a sell must read holdings under the same isolation scope that will
// write the commit.
func (d *Database) QueryByUserTx(tx *gorm.DB, userID string) ([]types.Transaction, error) {
	var txs []types.Transaction
	if err := tx.
		Where("user_id = ?", userID).
		Order("executed_at ASC, id ASC").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return txs, nil
}

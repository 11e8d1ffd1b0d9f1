package audit

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/ledger"
	"github.com/ksred/brokerage-api/internal/money"
	"github.com/ksred/brokerage-api/internal/types"
)

const opening = money.Cents(1_000_000)

func newFixture(t *testing.T) (*gorm.DB, *Processor, *cash.Database, *ledger.Database) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Transaction{}, &cash.Account{}))

	ledgerDB := ledger.NewDatabase(db)
	cashDB := cash.NewDatabase(db)
	return db, NewProcessor(ledgerDB, cashDB, opening), cashDB, ledgerDB
}

func commitTrade(t *testing.T, db *gorm.DB, cashDB *cash.Database, ledgerDB *ledger.Database, userID, symbol string, shares int64, price money.Cents) {
	t.Helper()

	tx := db.Begin()
	value, err := price.MulShares(shares)
	require.NoError(t, err)
	if shares > 0 {
		require.NoError(t, cashDB.Debit(tx, userID, value))
	} else {
		require.NoError(t, cashDB.Credit(tx, userID, -value))
	}
	require.NoError(t, ledgerDB.Append(tx, &types.Transaction{
		TxID:       fmt.Sprintf("tx-%s-%s-%d-%d", userID, symbol, shares, time.Now().UnixNano()),
		UserID:     userID,
		Symbol:     symbol,
		Shares:     shares,
		PriceCents: price,
		ExecutedAt: time.Now(),
	}))
	require.NoError(t, tx.Commit().Error)
}

func TestAuditPassesOnConsistentAccount(t *testing.T) {
	t.Parallel()

	db, p, cashDB, ledgerDB := newFixture(t)

	tx := db.Begin()
	require.NoError(t, cashDB.CreateAccount(tx, "u1", opening))
	require.NoError(t, tx.Commit().Error)

	commitTrade(t, db, cashDB, ledgerDB, "u1", "AAPL", 10, 150_00)
	commitTrade(t, db, cashDB, ledgerDB, "u1", "AAPL", -4, 162_00)

	ok, err := p.AuditUser("u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuditDetectsConservationViolation(t *testing.T) {
	t.Parallel()

	db, p, cashDB, ledgerDB := newFixture(t)

	tx := db.Begin()
	require.NoError(t, cashDB.CreateAccount(tx, "u1", opening))
	require.NoError(t, tx.Commit().Error)

	commitTrade(t, db, cashDB, ledgerDB, "u1", "AAPL", 10, 150_00)

	// Tamper with the balance behind the executor's back.
	require.NoError(t, db.Model(&cash.Account{}).
		Where("user_id = ?", "u1").
		Update("balance_cents", opening).Error)

	ok, err := p.AuditUser("u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditDetectsNegativeHolding(t *testing.T) {
	t.Parallel()

	db, p, cashDB, ledgerDB := newFixture(t)

	tx := db.Begin()
	require.NoError(t, cashDB.CreateAccount(tx, "u1", opening))
	require.NoError(t, tx.Commit().Error)

	// A lone sell leaves a short position the executor would never commit.
	commitTrade(t, db, cashDB, ledgerDB, "u1", "AAPL", -5, 150_00)

	ok, err := p.AuditUser("u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuditAllCoversEveryAccount(t *testing.T) {
	t.Parallel()

	db, p, cashDB, ledgerDB := newFixture(t)

	tx := db.Begin()
	require.NoError(t, cashDB.CreateAccount(tx, "u1", opening))
	require.NoError(t, cashDB.CreateAccount(tx, "u2", opening))
	require.NoError(t, tx.Commit().Error)

	commitTrade(t, db, cashDB, ledgerDB, "u1", "AAPL", 2, 150_00)

	assert.NoError(t, p.AuditAll())
}

package ledger

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

	"github.com/ksred/brokerage-api/internal/money"
	"github.com/ksred/brokerage-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Transaction{}))
	return db
}

func testTransaction(userID, symbol string, shares int64, price money.Cents, at time.Time) *types.Transaction {
	return &types.Transaction{
		TxID:       fmt.Sprintf("tx-%s-%s-%d-%d", userID, symbol, shares, at.UnixNano()),
		UserID:     userID,
		Symbol:     symbol,
		Shares:     shares,
		PriceCents: price,
		ExecutedAt: at,
	}
}

func TestAppendAndQueryOrdered(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	d := NewDatabase(db)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, tx := range []*types.Transaction{
		testTransaction("u1", "AAPL", 10, 150_00, base.Add(2*time.Minute)),
		testTransaction("u1", "MSFT", 5, 410_00, base),
		testTransaction("u1", "AAPL", -3, 151_00, base.Add(5*time.Minute)),
		testTransaction("u2", "AAPL", 7, 150_00, base.Add(time.Minute)),
	} {
		handle := db.Begin()
		require.NoError(t, d.Append(handle, tx), "append %d", i)
		require.NoError(t, handle.Commit().Error)
	}

	txs, err := d.QueryByUser("u1")
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// Ordered by execution time ascending, other users excluded.
	assert.Equal(t, "MSFT", txs[0].Symbol)
	assert.Equal(t, "AAPL", txs[1].Symbol)
	assert.Equal(t, int64(10), txs[1].Shares)
	assert.Equal(t, int64(-3), txs[2].Shares)
	for _, tx := range txs {
		assert.Equal(t, "u1", tx.UserID)
	}
}

func TestQueryByUserIsRestartable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	d := NewDatabase(db)

	handle := db.Begin()
	require.NoError(t, d.Append(handle, testTransaction("u1", "AAPL", 10, 150_00, time.Now())))
	require.NoError(t, handle.Commit().Error)

	first, err := d.QueryByUser("u1")
	require.NoError(t, err)
	second, err := d.QueryByUser("u1")
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
	assert.Equal(t, first[0].TxID, second[0].TxID)
}

func TestAppendRejectsZeroShares(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	d := NewDatabase(db)

	handle := db.Begin()
	defer handle.Rollback()
	err := d.Append(handle, testTransaction("u1", "AAPL", 0, 150_00, time.Now()))
	assert.Error(t, err)
}

func TestAppendRejectsNonPositivePrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	d := NewDatabase(db)

	handle := db.Begin()
	defer handle.Rollback()
	err := d.Append(handle, testTransaction("u1", "AAPL", 10, 0, time.Now()))
	assert.Error(t, err)

	err = d.Append(handle, testTransaction("u1", "AAPL", 10, -5, time.Now()))
	assert.Error(t, err)
}

func TestRolledBackAppendLeavesNoTrace(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	d := NewDatabase(db)

	handle := db.Begin()
	require.NoError(t, d.Append(handle, testTransaction("u1", "AAPL", 10, 150_00, time.Now())))
	handle.Rollback()

	txs, err := d.QueryByUser("u1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestQueryByUserEmpty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	d := NewDatabase(db)

	txs, err := d.QueryByUser("nobody")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/brokerage-api/internal/auth"
	"github.com/ksred/brokerage-api/internal/cash"
	"github.com/ksred/brokerage-api/internal/database/migrations"
)

// NewDatabase initializes and returns a new GORM DB connection. The busy
// timeout lets concurrent writers queue on SQLite's single-writer lock
// instead of failing immediately; orders still retry the rare conflict
// that outlives it.
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "brokerage.db"
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddTransactionLedger(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&auth.User{},
		&cash.Account{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

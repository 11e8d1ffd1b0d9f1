package cash

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/brokerage-api/internal/money"
	"github.com/ksred/brokerage-api/internal/types"
)

var (
	ErrNoAccount      = errors.New("cash account not found")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Database manages cash accounts. Balance mutations only happen through a
// caller-owned gorm transaction so they commit together with the ledger
// append they belong to.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateAccount opens an account with the given starting balance inside
// the caller's transaction.
func (d *Database) CreateAccount(tx *gorm.DB, userID string, initial money.Cents) error {
	account := Account{UserID: userID, BalanceCents: initial}
	if err := tx.Create(&account).Error; err != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return nil
}

// GetBalance returns the committed balance for a user.
func (d *Database) GetBalance(userID string) (money.Cents, error) {
	return d.balance(d.db, userID)
}

// GetBalanceTx reads the balance under an open transaction handle.
func (d *Database) GetBalanceTx(tx *gorm.DB, userID string) (money.Cents, error) {
	return d.balance(tx, userID)
}

func (d *Database) balance(tx *gorm.DB, userID string) (money.Cents, error) {
	var account Account
	if err := tx.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoAccount
		}
		return 0, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return account.BalanceCents, nil
}

// ListAccounts returns every cash account.
func (d *Database) ListAccounts() ([]Account, error) {
	var accounts []Account
	if err := d.db.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return accounts, nil
}

// Debit subtracts amount from the balance inside the caller's transaction.
// Returns InsufficientFundsError when amount exceeds the balance; the
// balance is never partially applied. A negative amount is rejected: a
// debit must never grow a balance.
func (d *Database) Debit(tx *gorm.DB, userID string, amount money.Cents) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit of %s", ErrNegativeAmount, amount)
	}
	balance, err := d.balance(tx, userID)
	if err != nil {
		return err
	}
	if amount > balance {
		return &types.InsufficientFundsError{RequiredCents: amount, AvailableCents: balance}
	}
	return d.setBalance(tx, userID, balance-amount)
}

// Credit adds amount to the balance inside the caller's transaction.
func (d *Database) Credit(tx *gorm.DB, userID string, amount money.Cents) error {
	if amount < 0 {
		return fmt.Errorf("%w: credit of %s", ErrNegativeAmount, amount)
	}
	balance, err := d.balance(tx, userID)
	if err != nil {
		return err
	}
	return d.setBalance(tx, userID, balance+amount)
}

func (d *Database) setBalance(tx *gorm.DB, userID string, balance money.Cents) error {
	res := tx.Model(&Account{}).Where("user_id = ?", userID).Update("balance_cents", balance)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", types.ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoAccount
	}
	return nil
}

// Package ledger implements the underlying token ledger: a balance table
// exposing the atomic transfer(to, amount) primitive the wallet core assumes.
// Every function operates on the caller's transaction handle, so balance
// checks and mutations always commit or revert together with the enclosing
// operation.
package ledger

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tutela-wallet/tutela/internal/models"
)

// Balance reads an account balance inside tx; missing accounts read zero.
func Balance(tx *gorm.DB, address string) (int64, error) {
	var account models.LedgerAccount
	if err := tx.Where("address = ?", address).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read ledger account: %s", err)
	}
	return account.Balance, nil
}

// Credit adds amount to an account, creating it on first use.
func Credit(tx *gorm.DB, address string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	account := models.LedgerAccount{Address: address, Balance: amount}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"balance": gorm.Expr("ledger_accounts.balance + ?", amount)}),
	}).Create(&account).Error
	if err != nil {
		return fmt.Errorf("failed to credit ledger account: %s", err)
	}
	return nil
}

// Debit removes amount from an account, failing when the balance does not
// cover it.
func Debit(tx *gorm.DB, address string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive")
	}
	balance, err := Balance(tx, address)
	if err != nil {
		return err
	}
	if balance < amount {
		return models.ErrInsufficientFunds
	}
	err = tx.Model(&models.LedgerAccount{}).
		Where("address = ?", address).
		Update("balance", gorm.Expr("balance - ?", amount)).Error
	if err != nil {
		return fmt.Errorf("failed to debit ledger account: %s", err)
	}
	return nil
}

// Transfer moves amount between two accounts. Succeeds or fails atomically
// within the caller's transaction. A self-transfer is allowed and leaves the
// balance unchanged; it still requires the balance to cover the amount.
func Transfer(tx *gorm.DB, from, to string, amount int64) error {
	if err := Debit(tx, from, amount); err != nil {
		return err
	}
	return Credit(tx, to, amount)
}

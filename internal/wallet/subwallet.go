package wallet

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/metrics"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

// effectiveSpent computes the spent amount a limit check must count right
// now, and whether the window rolled over. Rolling sub-wallets read zero once
// the period has elapsed; the stored value is left untouched until the next
// spend writes it (lazy reset, no sweeper).
func effectiveSpent(mode models.SubWalletMode, now, lastResetTime, period, stored int64) (int64, bool) {
	if mode == models.SubWalletModeRolling && now >= lastResetTime+period {
		return 0, true
	}
	return stored, false
}

// CreateSubWallet creates an allowance account spendable only by child.
// Owner-only.
func (e *Engine) CreateSubWallet(caller, walletAddress, child string, limit int64, mode models.SubWalletMode, period int64) (int64, error) {
	cmd := &models.WalletCommand{
		Op:     models.OpCreateSubWallet,
		Child:  child,
		Limit:  limit,
		Mode:   mode,
		Period: period,
	}
	if err := cmd.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := e.store.Transaction(func(tx *gorm.DB) error {
		wallet, err := e.loadOwnedWallet(tx, caller, walletAddress)
		if err != nil {
			return err
		}
		id, err = e.createSubWallet(tx, wallet, child, limit, mode, period)
		return err
	})
	return id, err
}

// ExecuteSubWalletTransaction spends from a sub-wallet. Caller must be the
// child principal.
func (e *Engine) ExecuteSubWalletTransaction(caller, walletAddress string, id int64, to string, amount int64) error {
	walletAddress = validation.NormalizeAddress(walletAddress)

	err := e.store.Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.Where("address = ?", walletAddress).First(&wallet).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.ErrWalletNotFound
			}
			return fmt.Errorf("failed to load wallet: %s", err)
		}
		return e.executeSubWalletTransaction(tx, &wallet, validation.NormalizeAddress(caller), id, to, amount)
	})
	if err != nil {
		metrics.SubWalletSpends.WithLabelValues("rejected").Inc()
		return err
	}

	metrics.SubWalletSpends.WithLabelValues("executed").Inc()
	e.notify(&models.Notification{
		ID:        uuid.NewString(),
		Kind:      models.EventSubWalletSpent,
		Wallet:    walletAddress,
		Principal: validation.NormalizeAddress(caller),
		Amount:    amount,
		Timestamp: e.Now(),
	})
	return nil
}

// UpdateSubWalletLimit sets a new spending limit. Owner-only.
func (e *Engine) UpdateSubWalletLimit(caller, walletAddress string, id, newLimit int64) error {
	if newLimit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return e.store.Transaction(func(tx *gorm.DB) error {
		wallet, err := e.loadOwnedWallet(tx, caller, walletAddress)
		if err != nil {
			return err
		}
		return e.updateSubWalletLimit(tx, wallet, id, newLimit)
	})
}

// PauseSubWallet suspends spending but preserves the limit for later
// reactivation. Owner-only.
func (e *Engine) PauseSubWallet(caller, walletAddress string, id int64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		wallet, err := e.loadOwnedWallet(tx, caller, walletAddress)
		if err != nil {
			return err
		}
		return e.pauseSubWallet(tx, wallet, id)
	})
}

// ResumeSubWallet reactivates a paused sub-wallet. Owner-only; revoked
// sub-wallets stay dead.
func (e *Engine) ResumeSubWallet(caller, walletAddress string, id int64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		wallet, err := e.loadOwnedWallet(tx, caller, walletAddress)
		if err != nil {
			return err
		}
		return e.resumeSubWallet(tx, wallet, id)
	})
}

// RevokeSubWallet terminally disables a sub-wallet and zeroes its limit.
// Owner-only.
func (e *Engine) RevokeSubWallet(caller, walletAddress string, id int64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		wallet, err := e.loadOwnedWallet(tx, caller, walletAddress)
		if err != nil {
			return err
		}
		return e.revokeSubWallet(tx, wallet, id)
	})
}

func (e *Engine) createSubWallet(tx *gorm.DB, wallet *models.Wallet, child string, limit int64, mode models.SubWalletMode, period int64) (int64, error) {
	if mode == "" {
		mode = models.SubWalletModeRolling
	}
	wallet.SubWalletCounter++
	if err := tx.Model(&models.Wallet{}).
		Where("address = ?", wallet.Address).
		Update("sub_wallet_counter", wallet.SubWalletCounter).Error; err != nil {
		return 0, fmt.Errorf("failed to bump sub-wallet counter: %s", err)
	}

	sw := models.SubWallet{
		WalletAddress: wallet.Address,
		ID:            wallet.SubWalletCounter,
		Child:         validation.NormalizeAddress(child),
		SpendingLimit: limit,
		SpentInPeriod: 0,
		LastResetTime: e.Now(),
		Period:        period,
		Mode:          mode,
		Active:        true,
	}
	if err := tx.Create(&sw).Error; err != nil {
		return 0, fmt.Errorf("failed to create sub-wallet: %s", err)
	}
	e.logger.Infow("Sub-wallet created",
		"wallet", wallet.Address, "id", sw.ID, "child", sw.Child,
		"limit", limit, "mode", mode, "period", period)
	return sw.ID, nil
}

func (e *Engine) executeSubWalletTransaction(tx *gorm.DB, wallet *models.Wallet, caller string, id int64, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	var sw models.SubWallet
	if err := tx.Where("wallet_address = ? AND id = ?", wallet.Address, id).First(&sw).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.ErrSubWalletNotFound
		}
		return fmt.Errorf("failed to load sub-wallet: %s", err)
	}

	if caller != sw.Child {
		return models.ErrOnlyChildEOA
	}
	if !sw.Active {
		return models.ErrSubWalletInactive
	}

	now := e.Now()
	spent, rolledOver := effectiveSpent(sw.Mode, now, sw.LastResetTime, sw.Period, sw.SpentInPeriod)
	if spent+amount > sw.SpendingLimit {
		return models.ErrExceedsSpendingLimit
	}

	if err := ledger.Transfer(tx, wallet.Address, validation.NormalizeAddress(to), amount); err != nil {
		return err
	}

	updates := map[string]interface{}{"spent_in_period": spent + amount}
	if rolledOver {
		// This spend starts the new window even when nothing was spent in
		// the old one; a stale reset time would reopen the allowance on the
		// very next spend.
		updates["last_reset_time"] = now
	}
	if err := tx.Model(&models.SubWallet{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update sub-wallet spend state: %s", err)
	}
	e.logger.Infow("Sub-wallet spend executed",
		"wallet", wallet.Address, "id", id, "child", sw.Child, "to", to, "amount", amount)
	return nil
}

func (e *Engine) updateSubWalletLimit(tx *gorm.DB, wallet *models.Wallet, id, newLimit int64) error {
	sw, err := loadSubWallet(tx, wallet.Address, id)
	if err != nil {
		return err
	}
	if sw.Revoked {
		return models.ErrSubWalletRevoked
	}
	if err := tx.Model(&models.SubWallet{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Update("spending_limit", newLimit).Error; err != nil {
		return fmt.Errorf("failed to update sub-wallet limit: %s", err)
	}
	e.logger.Infow("Sub-wallet limit updated", "wallet", wallet.Address, "id", id, "limit", newLimit)
	return nil
}

func (e *Engine) pauseSubWallet(tx *gorm.DB, wallet *models.Wallet, id int64) error {
	sw, err := loadSubWallet(tx, wallet.Address, id)
	if err != nil {
		return err
	}
	if sw.Revoked {
		return models.ErrSubWalletRevoked
	}
	if err := tx.Model(&models.SubWallet{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("failed to pause sub-wallet: %s", err)
	}
	e.logger.Infow("Sub-wallet paused", "wallet", wallet.Address, "id", id)
	return nil
}

func (e *Engine) resumeSubWallet(tx *gorm.DB, wallet *models.Wallet, id int64) error {
	sw, err := loadSubWallet(tx, wallet.Address, id)
	if err != nil {
		return err
	}
	if sw.Revoked {
		return models.ErrSubWalletRevoked
	}
	if err := tx.Model(&models.SubWallet{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Update("active", true).Error; err != nil {
		return fmt.Errorf("failed to resume sub-wallet: %s", err)
	}
	e.logger.Infow("Sub-wallet resumed", "wallet", wallet.Address, "id", id)
	return nil
}

func (e *Engine) revokeSubWallet(tx *gorm.DB, wallet *models.Wallet, id int64) error {
	if _, err := loadSubWallet(tx, wallet.Address, id); err != nil {
		return err
	}
	// Terminal: limit zeroed, never reactivated.
	if err := tx.Model(&models.SubWallet{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Updates(map[string]interface{}{
			"active":         false,
			"revoked":        true,
			"spending_limit": 0,
		}).Error; err != nil {
		return fmt.Errorf("failed to revoke sub-wallet: %s", err)
	}
	e.logger.Infow("Sub-wallet revoked", "wallet", wallet.Address, "id", id)
	return nil
}

func loadSubWallet(tx *gorm.DB, walletAddress string, id int64) (*models.SubWallet, error) {
	var sw models.SubWallet
	if err := tx.Where("wallet_address = ? AND id = ?", walletAddress, id).First(&sw).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrSubWalletNotFound
		}
		return nil, fmt.Errorf("failed to load sub-wallet: %s", err)
	}
	return &sw, nil
}

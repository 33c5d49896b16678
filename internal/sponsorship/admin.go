package sponsorship

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/metrics"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

// Deposit tops up the gate balance from any principal's ledger account.
func (e *Engine) Deposit(from string, amount int64) error {
	from, err := validation.ValidateAndNormalizeAddress(from)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive")
	}
	err = e.store.Transaction(func(tx *gorm.DB) error {
		if err := ledger.Debit(tx, from, amount); err != nil {
			return err
		}
		return tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	})
	if err != nil {
		return err
	}
	e.logger.Infow("Sponsorship deposit", "from", from, "amount", amount)
	e.refreshBalanceGauge()
	return nil
}

// Withdraw moves funds to a ledger account. Owner-only; the stake is
// permanently earmarked, so at most balance - stake can leave through here.
func (e *Engine) Withdraw(caller string, amount int64, to string) error {
	to, err := validation.ValidateAndNormalizeAddress(to)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive")
	}
	err = e.store.Transaction(func(tx *gorm.DB) error {
		cfg, err := e.ownedConfig(tx, caller)
		if err != nil {
			return err
		}
		if amount > cfg.Balance-cfg.StakeAmount {
			return models.ErrStakeLocked
		}
		if err := tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Update("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
			return fmt.Errorf("failed to debit gate balance: %s", err)
		}
		return ledger.Credit(tx, to, amount)
	})
	if err != nil {
		return err
	}
	e.logger.Infow("Sponsorship withdrawal", "to", to, "amount", amount)
	e.refreshBalanceGauge()
	return nil
}

// EmergencyWithdraw drains everything above the stake to the owner. The only
// path that reaches exactly the stake floor.
func (e *Engine) EmergencyWithdraw(caller string) error {
	var drained int64
	err := e.store.Transaction(func(tx *gorm.DB) error {
		cfg, err := e.ownedConfig(tx, caller)
		if err != nil {
			return err
		}
		drained = cfg.Balance - cfg.StakeAmount
		if drained <= 0 {
			return nil
		}
		if err := tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Update("balance", cfg.StakeAmount).Error; err != nil {
			return fmt.Errorf("failed to drain gate balance: %s", err)
		}
		return ledger.Credit(tx, cfg.Owner, drained)
	})
	if err != nil {
		return err
	}
	e.logger.Warnw("Emergency withdrawal executed", "amount", drained)
	e.refreshBalanceGauge()
	return nil
}

// GetBalance reads the gate balance.
func (e *Engine) GetBalance() (int64, error) {
	cfg, err := e.config(e.store.Conn)
	if err != nil {
		return 0, err
	}
	return cfg.Balance, nil
}

// SetWhitelisted adds or removes a principal from the sponsorship whitelist.
// Owner-only.
func (e *Engine) SetWhitelisted(caller, address string, whitelisted bool) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		return e.setWhitelisted(tx, address, whitelisted)
	})
}

// BatchSetWhitelisted applies one whitelist flag to many principals
// atomically. Owner-only.
func (e *Engine) BatchSetWhitelisted(caller string, addresses []string, whitelisted bool) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		for _, address := range addresses {
			if err := e.setWhitelisted(tx, address, whitelisted); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) setWhitelisted(tx *gorm.DB, address string, whitelisted bool) error {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	if whitelisted {
		entry := models.WhitelistedAccount{Address: address, AddedAt: e.Now()}
		if err := tx.Save(&entry).Error; err != nil {
			return fmt.Errorf("failed to whitelist account: %s", err)
		}
		return nil
	}
	if err := tx.Where("address = ?", address).Delete(&models.WhitelistedAccount{}).Error; err != nil {
		return fmt.Errorf("failed to remove whitelisted account: %s", err)
	}
	return nil
}

// AddRelayer authorizes a relayer for the underwriting call. Owner-only.
func (e *Engine) AddRelayer(caller, address string) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		address, err := validation.ValidateAndNormalizeAddress(address)
		if err != nil {
			return err
		}
		rel := models.Relayer{Address: address, AddedAt: e.Now()}
		if err := tx.Save(&rel).Error; err != nil {
			return fmt.Errorf("failed to add relayer: %s", err)
		}
		e.logger.Infow("Relayer authorized", "address", address)
		return nil
	})
}

// RemoveRelayer deauthorizes a relayer. Owner-only.
func (e *Engine) RemoveRelayer(caller, address string) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		address, err := validation.ValidateAndNormalizeAddress(address)
		if err != nil {
			return err
		}
		if err := tx.Where("address = ?", address).Delete(&models.Relayer{}).Error; err != nil {
			return fmt.Errorf("failed to remove relayer: %s", err)
		}
		e.logger.Infow("Relayer deauthorized", "address", address)
		return nil
	})
}

// UpdateRateLimits replaces the rate-limit parameters. Owner-only.
func (e *Engine) UpdateRateLimits(caller string, maxUnitsPerWindow, minTimeBetweenOps int64) error {
	if maxUnitsPerWindow <= 0 {
		return fmt.Errorf("max units per window must be positive")
	}
	if minTimeBetweenOps < 0 {
		return fmt.Errorf("min time between ops must not be negative")
	}
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		if err := tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Updates(map[string]interface{}{
				"max_units_per_window": maxUnitsPerWindow,
				"min_time_between_ops": minTimeBetweenOps,
			}).Error; err != nil {
			return fmt.Errorf("failed to update rate limits: %s", err)
		}
		e.logger.Infow("Rate limits updated",
			"max_units_per_window", maxUnitsPerWindow, "min_time_between_ops", minTimeBetweenOps)
		return nil
	})
}

// Pause stops all sponsorship. Owner-only.
func (e *Engine) Pause(caller string) error {
	return e.setPaused(caller, true)
}

// Unpause resumes sponsorship. Owner-only.
func (e *Engine) Unpause(caller string) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller string, paused bool) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		if err := tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Update("paused", paused).Error; err != nil {
			return fmt.Errorf("failed to set paused state: %s", err)
		}
		e.logger.Warnw("Sponsorship paused state changed", "paused", paused)
		return nil
	})
}

// SetSponsorshipEndpoint stores the webhook endpoint URL. Owner-only;
// configuration passthrough with no effect on gate decisions.
func (e *Engine) SetSponsorshipEndpoint(caller, url string) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		if _, err := e.ownedConfig(tx, caller); err != nil {
			return err
		}
		if err := tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Update("endpoint", url).Error; err != nil {
			return fmt.Errorf("failed to set endpoint: %s", err)
		}
		e.logger.Infow("Sponsorship endpoint updated", "endpoint", url)
		return nil
	})
}

// GetEndpoint reads the configured webhook endpoint.
func (e *Engine) GetEndpoint() (string, error) {
	cfg, err := e.config(e.store.Conn)
	if err != nil {
		return "", err
	}
	return cfg.Endpoint, nil
}

// ownedConfig loads the config row and checks the caller is the gate owner.
func (e *Engine) ownedConfig(tx *gorm.DB, caller string) (*models.SponsorshipConfig, error) {
	cfg, err := e.config(tx)
	if err != nil {
		return nil, err
	}
	if validation.NormalizeAddress(caller) != cfg.Owner {
		return nil, models.ErrNotOwner
	}
	return cfg, nil
}

func (e *Engine) refreshBalanceGauge() {
	if balance, err := e.GetBalance(); err == nil {
		metrics.SponsorshipBalance.Set(float64(balance))
	}
}

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

// CreateSubscription authorizes a vendor to pull amountPerInterval from the
// wallet at most once per interval. Owner-only.
func (e *Engine) CreateSubscription(caller, walletAddress, vendor string, amountPerInterval, interval int64) (int64, error) {
	cmd := &models.WalletCommand{
		Op:       models.OpCreateSubscription,
		Vendor:   vendor,
		Amount:   amountPerInterval,
		Interval: interval,
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
		id, err = e.createSubscription(tx, wallet, vendor, amountPerInterval, interval)
		return err
	})
	return id, err
}

// ExecuteSubscriptionPayment executes one interval's payment. Callable by
// anyone (the vendor is the intended caller); the subscription's own state
// gates it.
func (e *Engine) ExecuteSubscriptionPayment(walletAddress string, id int64) error {
	walletAddress = validation.NormalizeAddress(walletAddress)

	var paid *models.Subscription
	err := e.store.Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.Where("address = ?", walletAddress).First(&wallet).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.ErrWalletNotFound
			}
			return fmt.Errorf("failed to load wallet: %s", err)
		}
		if err := e.executeSubscriptionPayment(tx, &wallet, id); err != nil {
			return err
		}
		var sub models.Subscription
		if err := tx.Where("wallet_address = ? AND id = ?", walletAddress, id).First(&sub).Error; err != nil {
			return fmt.Errorf("failed to reload subscription: %s", err)
		}
		paid = &sub
		return nil
	})
	if err != nil {
		metrics.SubscriptionPayments.WithLabelValues("rejected").Inc()
		return err
	}

	metrics.SubscriptionPayments.WithLabelValues("executed").Inc()
	e.notify(&models.Notification{
		ID:        uuid.NewString(),
		Kind:      models.EventSubscriptionPaid,
		Wallet:    walletAddress,
		Principal: paid.Vendor,
		Amount:    paid.AmountPerInterval,
		Timestamp: e.Now(),
	})
	return nil
}

// CancelSubscription deactivates a subscription. Owner-only, idempotent.
func (e *Engine) CancelSubscription(caller, walletAddress string, id int64) error {
	return e.store.Transaction(func(tx *gorm.DB) error {
		wallet, err := e.loadOwnedWallet(tx, caller, walletAddress)
		if err != nil {
			return err
		}
		return e.cancelSubscription(tx, wallet, id)
	})
}

func (e *Engine) createSubscription(tx *gorm.DB, wallet *models.Wallet, vendor string, amountPerInterval, interval int64) (int64, error) {
	wallet.SubscriptionCounter++
	if err := tx.Model(&models.Wallet{}).
		Where("address = ?", wallet.Address).
		Update("subscription_counter", wallet.SubscriptionCounter).Error; err != nil {
		return 0, fmt.Errorf("failed to bump subscription counter: %s", err)
	}

	sub := models.Subscription{
		WalletAddress:     wallet.Address,
		ID:                wallet.SubscriptionCounter,
		Vendor:            validation.NormalizeAddress(vendor),
		AmountPerInterval: amountPerInterval,
		Interval:          interval,
		LastPayment:       e.Now(),
		Active:            true,
	}
	if err := tx.Create(&sub).Error; err != nil {
		return 0, fmt.Errorf("failed to create subscription: %s", err)
	}
	e.logger.Infow("Subscription created",
		"wallet", wallet.Address, "id", sub.ID, "vendor", sub.Vendor,
		"amount", amountPerInterval, "interval", interval)
	return sub.ID, nil
}

func (e *Engine) executeSubscriptionPayment(tx *gorm.DB, wallet *models.Wallet, id int64) error {
	var sub models.Subscription
	if err := tx.Where("wallet_address = ? AND id = ?", wallet.Address, id).First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.ErrSubscriptionNotFound
		}
		return fmt.Errorf("failed to load subscription: %s", err)
	}

	now := e.Now()
	if !sub.Active || now < sub.LastPayment+sub.Interval {
		return models.ErrPaymentIntervalNotMet
	}

	// One payment per call: a late caller collects a single interval's
	// amount, never the missed ones.
	if err := ledger.Transfer(tx, wallet.Address, sub.Vendor, sub.AmountPerInterval); err != nil {
		return err
	}
	if err := tx.Model(&models.Subscription{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Update("last_payment", now).Error; err != nil {
		return fmt.Errorf("failed to update last payment: %s", err)
	}
	e.logger.Infow("Subscription payment executed",
		"wallet", wallet.Address, "id", id, "vendor", sub.Vendor, "amount", sub.AmountPerInterval)
	return nil
}

func (e *Engine) cancelSubscription(tx *gorm.DB, wallet *models.Wallet, id int64) error {
	var sub models.Subscription
	if err := tx.Where("wallet_address = ? AND id = ?", wallet.Address, id).First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.ErrSubscriptionNotFound
		}
		return fmt.Errorf("failed to load subscription: %s", err)
	}
	if !sub.Active {
		return nil
	}
	if err := tx.Model(&models.Subscription{}).
		Where("wallet_address = ? AND id = ?", wallet.Address, id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("failed to cancel subscription: %s", err)
	}
	e.logger.Infow("Subscription cancelled", "wallet", wallet.Address, "id", id)
	return nil
}

// loadOwnedWallet loads a wallet and checks the caller is its owner.
func (e *Engine) loadOwnedWallet(tx *gorm.DB, caller, walletAddress string) (*models.Wallet, error) {
	caller = validation.NormalizeAddress(caller)
	walletAddress = validation.NormalizeAddress(walletAddress)

	var wallet models.Wallet
	if err := tx.Where("address = ?", walletAddress).First(&wallet).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to load wallet: %s", err)
	}
	if wallet.Owner != caller {
		return nil, models.ErrNotWalletOwner
	}
	return &wallet, nil
}

func (e *Engine) notify(n *models.Notification) {
	if e.notifier == nil {
		return
	}
	go e.notifier.SendNotification(n)
}

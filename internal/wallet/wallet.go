// Package wallet implements the spending wallet: owner-context execution,
// vendor subscriptions and bounded sub-wallet allowances. Every operation is
// one store transaction; the authorization check and the ledger mutation it
// guards always commit or revert together.
package wallet

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/pkg/logger"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

// Engine serves all spending-wallet operations.
type Engine struct {
	logger *logger.Logger
	store  *repository.Store

	notifier models.NotificationService

	// Now supplies the current unix time. Tests override it to drive
	// interval and period rollovers.
	Now func() int64
}

// NewEngine creates a new wallet engine. notifier may be nil.
func NewEngine(store *repository.Store, notifier models.NotificationService, logger *logger.Logger) *Engine {
	return &Engine{
		logger:   logger,
		store:    store,
		notifier: notifier,
		Now:      func() int64 { return time.Now().Unix() },
	}
}

// CreateWallet resolves or creates the wallet for an owner. The factory is
// idempotent: one wallet per owner, with a deterministic address derived
// from the owner account.
func (e *Engine) CreateWallet(owner string) (*models.Wallet, error) {
	owner, err := validation.ValidateAndNormalizeAddress(owner)
	if err != nil {
		return nil, err
	}

	if existing, err := e.store.GetWalletByOwner(owner); err == nil {
		return existing, nil
	} else if err != models.ErrWalletNotFound {
		return nil, err
	}

	wallet := &models.Wallet{
		Address:   deriveWalletAddress(owner),
		Owner:     owner,
		CreatedAt: e.Now(),
	}
	if err := e.store.Conn.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create wallet: %s", err)
	}
	e.logger.Infow("Wallet created", "owner", owner, "address", wallet.Address)
	return wallet, nil
}

// GetWallet fetches a wallet by owner.
func (e *Engine) GetWallet(owner string) (*models.Wallet, error) {
	owner, err := validation.ValidateAndNormalizeAddress(owner)
	if err != nil {
		return nil, err
	}
	return e.store.GetWalletByOwner(owner)
}

// deriveWalletAddress derives the wallet account from the owner account the
// way a deployment factory would.
func deriveWalletAddress(owner string) string {
	derived := crypto.CreateAddress(common.HexToAddress(owner), 0)
	return validation.NormalizeAddress(derived.Hex())
}

// Execute runs one command in the wallet owner's context.
func (e *Engine) Execute(caller, walletAddress string, cmd *models.WalletCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return e.store.Transaction(func(tx *gorm.DB) error {
		return e.Apply(tx, caller, walletAddress, cmd)
	})
}

// Apply dispatches a validated command against a wallet inside an existing
// transaction. The delegation authority composes delegated calls through
// this entry point so the nonce increment and the command share one atomic
// unit.
func (e *Engine) Apply(tx *gorm.DB, caller, walletAddress string, cmd *models.WalletCommand) error {
	caller = validation.NormalizeAddress(caller)
	walletAddress = validation.NormalizeAddress(walletAddress)

	var wallet models.Wallet
	if err := tx.Where("address = ?", walletAddress).First(&wallet).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.ErrWalletNotFound
		}
		return fmt.Errorf("failed to load wallet: %s", err)
	}

	switch cmd.Op {
	case models.OpTransfer:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		return ledger.Transfer(tx, wallet.Address, validation.NormalizeAddress(cmd.To), cmd.Amount)

	case models.OpBatch:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		// All-or-nothing: the shared tx rolls every sub-command back on
		// the first failure.
		for i := range cmd.Batch {
			if err := e.Apply(tx, caller, walletAddress, &cmd.Batch[i]); err != nil {
				return fmt.Errorf("batch index %d: %w", i, err)
			}
		}
		return nil

	case models.OpCreateSubscription:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		_, err := e.createSubscription(tx, &wallet, cmd.Vendor, cmd.Amount, cmd.Interval)
		return err

	case models.OpCancelSubscription:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		return e.cancelSubscription(tx, &wallet, cmd.SubscriptionID)

	case models.OpExecuteSubscriptionPay:
		// Callable by anyone; the subscription's own state gates it.
		return e.executeSubscriptionPayment(tx, &wallet, cmd.SubscriptionID)

	case models.OpCreateSubWallet:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		_, err := e.createSubWallet(tx, &wallet, cmd.Child, cmd.Limit, cmd.Mode, cmd.Period)
		return err

	case models.OpUpdateSubWalletLimit:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		return e.updateSubWalletLimit(tx, &wallet, cmd.SubWalletID, cmd.Limit)

	case models.OpPauseSubWallet:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		return e.pauseSubWallet(tx, &wallet, cmd.SubWalletID)

	case models.OpResumeSubWallet:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		return e.resumeSubWallet(tx, &wallet, cmd.SubWalletID)

	case models.OpRevokeSubWallet:
		if caller != wallet.Owner {
			return models.ErrNotWalletOwner
		}
		return e.revokeSubWallet(tx, &wallet, cmd.SubWalletID)

	case models.OpExecuteSubWalletTransfer:
		return e.executeSubWalletTransaction(tx, &wallet, caller, cmd.SubWalletID, cmd.To, cmd.Amount)

	default:
		return fmt.Errorf("unknown command op %q", cmd.Op)
	}
}

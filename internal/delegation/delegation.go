// Package delegation implements the delegation authority: the single choke
// point through which a relay executes calls against a wallet on a
// principal's behalf. A request is admitted on a valid signature over the
// canonical digest, or on the caller being an authorized paymaster; either
// way it consumes exactly one nonce.
package delegation

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/metrics"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/internal/wallet"
	"github.com/tutela-wallet/tutela/pkg/logger"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

// ExecuteRequest is one delegated call as submitted by the relay.
type ExecuteRequest struct {
	// Caller is the submitting principal (relay identity).
	Caller string
	// Principal is the delegating account whose nonce and signature are
	// checked.
	Principal string
	// Wallet is the target wallet address.
	Wallet string
	// Payload is the raw command encoding. Its bytes are hashed into the
	// digest; it is decoded only after admission.
	Payload []byte
	// Nonce must equal the principal's current nonce.
	Nonce uint64
	// Deadline is the unix timestamp the request expires at.
	Deadline int64
	// Signature is the 65-byte signature over the request digest. May be
	// empty only when Caller is an authorized paymaster.
	Signature []byte
}

// Engine serves delegated execution and paymaster management.
type Engine struct {
	logger *logger.Logger
	store  *repository.Store
	wallet *wallet.Engine

	notifier models.NotificationService

	// chainScope binds signatures to this deployment.
	chainScope uint64
	// owner is the administrative principal for paymaster management.
	owner string

	// Now supplies the current unix time; tests override it.
	Now func() int64
}

// NewEngine creates a new delegation engine. notifier may be nil.
func NewEngine(store *repository.Store, walletEngine *wallet.Engine, notifier models.NotificationService, chainScope uint64, owner string, logger *logger.Logger) *Engine {
	return &Engine{
		logger:     logger,
		store:      store,
		wallet:     walletEngine,
		notifier:   notifier,
		chainScope: chainScope,
		owner:      validation.NormalizeAddress(owner),
		Now:        func() int64 { return time.Now().Unix() },
	}
}

// ExecuteOnWallet admits and executes one delegated call. Checks run in
// order: deadline, nonce, authorization. The nonce increment and the inner
// command share one transaction, so a failing command rolls the increment
// back and the nonce can be resubmitted with a corrected request.
func (e *Engine) ExecuteOnWallet(req *ExecuteRequest) error {
	principal, err := validation.ValidateAndNormalizeAddress(req.Principal)
	if err != nil {
		return fmt.Errorf("invalid principal: %w", err)
	}
	walletAddr, err := validation.ValidateAndNormalizeAddress(req.Wallet)
	if err != nil {
		return fmt.Errorf("invalid wallet: %w", err)
	}
	caller := validation.NormalizeAddress(req.Caller)

	err = e.store.Transaction(func(tx *gorm.DB) error {
		if e.Now() > req.Deadline {
			return models.ErrExpiredDeadline
		}

		record, err := loadOrCreateRecord(tx, principal)
		if err != nil {
			return err
		}
		if req.Nonce != record.Nonce {
			return models.ErrInvalidNonce
		}

		authorized, err := isAuthorizedPaymaster(tx, caller)
		if err != nil {
			return err
		}
		if !authorized {
			digest := RequestDigest(e.chainScope, common.HexToAddress(walletAddr), req.Payload, req.Nonce, req.Deadline)
			signer, err := RecoverSigner(digest, req.Signature)
			if err != nil {
				return models.ErrInvalidSignature
			}
			if validation.NormalizeAddress(signer.Hex()) != principal {
				return models.ErrInvalidSignature
			}
		}

		// Effects before interaction: consume the nonce, then dispatch.
		// A reentrant or failing payload cannot observe the old nonce.
		if err := tx.Model(&models.DelegationRecord{}).
			Where("principal = ?", principal).
			Update("nonce", record.Nonce+1).Error; err != nil {
			return fmt.Errorf("failed to increment nonce: %s", err)
		}

		cmd, err := models.DecodeCommand(req.Payload)
		if err != nil {
			return err
		}
		return e.wallet.Apply(tx, principal, walletAddr, cmd)
	})
	if err != nil {
		metrics.DelegatedExecutions.WithLabelValues("rejected").Inc()
		e.logger.Warnw("Delegated call rejected",
			"principal", principal, "wallet", walletAddr, "nonce", req.Nonce, "reason", err.Error())
		return err
	}

	metrics.DelegatedExecutions.WithLabelValues("executed").Inc()
	e.logger.Infow("Delegated call executed",
		"principal", principal, "wallet", walletAddr, "nonce", req.Nonce, "caller", caller)
	if e.notifier != nil {
		go e.notifier.SendNotification(&models.Notification{
			ID:        uuid.NewString(),
			Kind:      models.EventDelegationExecuted,
			Wallet:    walletAddr,
			Principal: principal,
			Timestamp: e.Now(),
		})
	}
	return nil
}

// GetNonce returns the principal's current nonce. Principals with no record
// read zero.
func (e *Engine) GetNonce(principal string) (uint64, error) {
	principal, err := validation.ValidateAndNormalizeAddress(principal)
	if err != nil {
		return 0, err
	}
	var record models.DelegationRecord
	if err := e.store.Conn.Where("principal = ?", principal).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get delegation record: %s", err)
	}
	return record.Nonce, nil
}

// AddAuthorizedPaymaster adds a principal to the trusted-relay set.
// Authority-owner only.
func (e *Engine) AddAuthorizedPaymaster(caller, address string) error {
	if validation.NormalizeAddress(caller) != e.owner {
		return models.ErrNotOwner
	}
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	pm := models.AuthorizedPaymaster{Address: address, AddedAt: e.Now()}
	if err := e.store.Conn.Save(&pm).Error; err != nil {
		return fmt.Errorf("failed to add paymaster: %s", err)
	}
	e.logger.Infow("Paymaster authorized", "address", address)
	return nil
}

// RemoveAuthorizedPaymaster removes a principal from the trusted-relay set.
// Authority-owner only.
func (e *Engine) RemoveAuthorizedPaymaster(caller, address string) error {
	if validation.NormalizeAddress(caller) != e.owner {
		return models.ErrNotOwner
	}
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	if err := e.store.Conn.Where("address = ?", address).Delete(&models.AuthorizedPaymaster{}).Error; err != nil {
		return fmt.Errorf("failed to remove paymaster: %s", err)
	}
	e.logger.Infow("Paymaster deauthorized", "address", address)
	return nil
}

func loadOrCreateRecord(tx *gorm.DB, principal string) (*models.DelegationRecord, error) {
	var record models.DelegationRecord
	err := tx.Where("principal = ?", principal).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		record = models.DelegationRecord{Principal: principal, Nonce: 0}
		if err := tx.Create(&record).Error; err != nil {
			return nil, fmt.Errorf("failed to create delegation record: %s", err)
		}
		return &record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load delegation record: %s", err)
	}
	return &record, nil
}

func isAuthorizedPaymaster(tx *gorm.DB, address string) (bool, error) {
	var pm models.AuthorizedPaymaster
	err := tx.Where("address = ?", address).First(&pm).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check paymaster set: %s", err)
	}
	return true, nil
}

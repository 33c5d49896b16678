// Package sponsorship implements the sponsorship gate: whitelisting, rate
// budgets and the stake-backed balance that underwrites relayer execution
// costs. The gate is consulted read-only via PreApprove before a relay
// commits to a request, and enforces the same checks when the underwriting
// call actually lands.
package sponsorship

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/metrics"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/pkg/logger"
	"github.com/tutela-wallet/tutela/pkg/validation"
)

// dayWindow is the length of the per-principal usage window.
const dayWindow = int64(24 * time.Hour / time.Second)

// Engine serves all sponsorship gate operations.
type Engine struct {
	logger *logger.Logger
	store  *repository.Store

	notifier models.NotificationService

	// Now supplies the current unix time; tests override it.
	Now func() int64
}

// NewEngine creates a new sponsorship engine. notifier may be nil.
func NewEngine(store *repository.Store, notifier models.NotificationService, logger *logger.Logger) *Engine {
	return &Engine{
		logger:   logger,
		store:    store,
		notifier: notifier,
		Now:      func() int64 { return time.Now().Unix() },
	}
}

// Seed creates the singleton gate configuration on first start. Subsequent
// starts leave the stored row untouched so runtime admin changes survive
// restarts.
func (e *Engine) Seed(owner string, stakeAmount, maxUnitsPerWindow, minTimeBetweenOps int64, endpoint string) error {
	var cfg models.SponsorshipConfig
	err := e.store.Conn.Where("id = ?", models.SponsorshipConfigID).First(&cfg).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to load sponsorship config: %s", err)
	}

	cfg = models.SponsorshipConfig{
		ID:                models.SponsorshipConfigID,
		Owner:             validation.NormalizeAddress(owner),
		StakeAmount:       stakeAmount,
		Balance:           0,
		MaxUnitsPerWindow: maxUnitsPerWindow,
		MinTimeBetweenOps: minTimeBetweenOps,
		Endpoint:          endpoint,
	}
	if err := e.store.Conn.Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to seed sponsorship config: %s", err)
	}
	e.logger.Infow("Sponsorship gate seeded",
		"owner", cfg.Owner, "stake", stakeAmount,
		"max_units_per_window", maxUnitsPerWindow, "min_time_between_ops", minTimeBetweenOps)
	return nil
}

// PreApprove evaluates whether a sponsored operation for principal would be
// admitted right now. Read-only: it never consumes budget. Returns the first
// failing reason, or approved with an empty reason.
func (e *Engine) PreApprove(principal string, estimatedUnits int64) (bool, string, error) {
	principal, err := validation.ValidateAndNormalizeAddress(principal)
	if err != nil {
		return false, "", err
	}

	cfg, err := e.config(e.store.Conn)
	if err != nil {
		return false, "", err
	}

	reason := e.evaluate(e.store.Conn, cfg, principal, estimatedUnits)
	if reason != nil {
		metrics.SponsorshipDecisions.WithLabelValues("denied").Inc()
		return false, reason.Error(), nil
	}
	metrics.SponsorshipDecisions.WithLabelValues("approved").Inc()
	return true, "", nil
}

// SponsorTransaction is the actual underwriting call. Restricted to
// authorized relayers, rejected while paused; on success the principal's
// rate state advances and the sponsored units move from the gate balance to
// the relayer's ledger account. The gate balance never drops below the
// stake through this path.
func (e *Engine) SponsorTransaction(relayer, principal string, units int64) error {
	relayer, err := validation.ValidateAndNormalizeAddress(relayer)
	if err != nil {
		return fmt.Errorf("invalid relayer: %w", err)
	}
	principal, err = validation.ValidateAndNormalizeAddress(principal)
	if err != nil {
		return fmt.Errorf("invalid principal: %w", err)
	}
	if units <= 0 {
		return fmt.Errorf("units must be positive")
	}

	err = e.store.Transaction(func(tx *gorm.DB) error {
		cfg, err := e.config(tx)
		if err != nil {
			return err
		}
		if cfg.Paused {
			return models.ErrSponsorshipPaused
		}

		var rel models.Relayer
		if err := tx.Where("address = ?", relayer).First(&rel).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return models.ErrNotRelayer
			}
			return fmt.Errorf("failed to check relayer set: %s", err)
		}

		if reason := e.evaluate(tx, cfg, principal, units); reason != nil {
			return reason
		}

		if cfg.Balance-units < cfg.StakeAmount {
			return models.ErrStakeLocked
		}

		now := e.Now()
		state, err := loadRateState(tx, principal)
		if err != nil {
			return err
		}
		windowStart := state.WindowStart
		used := state.UnitsUsed
		if now >= windowStart+dayWindow {
			// Lazy window rollover, same rule as sub-wallet periods.
			windowStart = now
			used = 0
		}
		if err := tx.Model(&models.RateState{}).
			Where("principal = ?", principal).
			Updates(map[string]interface{}{
				"last_op_time": now,
				"window_start": windowStart,
				"units_used":   used + units,
			}).Error; err != nil {
			return fmt.Errorf("failed to update rate state: %s", err)
		}

		if err := tx.Model(&models.SponsorshipConfig{}).
			Where("id = ?", models.SponsorshipConfigID).
			Update("balance", gorm.Expr("balance - ?", units)).Error; err != nil {
			return fmt.Errorf("failed to debit gate balance: %s", err)
		}
		return ledger.Credit(tx, relayer, units)
	})
	if err != nil {
		metrics.SponsoredTransactions.WithLabelValues("rejected").Inc()
		return err
	}

	metrics.SponsoredTransactions.WithLabelValues("executed").Inc()
	e.logger.Infow("Transaction sponsored", "relayer", relayer, "principal", principal, "units", units)
	if e.notifier != nil {
		go e.notifier.SendNotification(&models.Notification{
			ID:        uuid.NewString(),
			Kind:      models.EventSponsored,
			Principal: principal,
			Amount:    units,
			Timestamp: e.Now(),
		})
	}
	return nil
}

// evaluate runs the admission checks in spec order against the given
// database handle: whitelist, min spacing, window budget.
func (e *Engine) evaluate(db *gorm.DB, cfg *models.SponsorshipConfig, principal string, units int64) error {
	var wl models.WhitelistedAccount
	if err := db.Where("address = ?", principal).First(&wl).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.ErrNotWhitelisted
		}
		return fmt.Errorf("failed to check whitelist: %s", err)
	}

	var state models.RateState
	err := db.Where("principal = ?", principal).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		// First operation for this principal: only the window cap applies.
		if units > cfg.MaxUnitsPerWindow {
			return models.ErrRateLimitWindowUsed
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load rate state: %s", err)
	}

	now := e.Now()
	if state.LastOpTime > 0 && now < state.LastOpTime+cfg.MinTimeBetweenOps {
		return models.ErrRateLimitTooSoon
	}

	used := state.UnitsUsed
	if now >= state.WindowStart+dayWindow {
		used = 0
	}
	if used+units > cfg.MaxUnitsPerWindow {
		return models.ErrRateLimitWindowUsed
	}
	return nil
}

func (e *Engine) config(db *gorm.DB) (*models.SponsorshipConfig, error) {
	var cfg models.SponsorshipConfig
	if err := db.Where("id = ?", models.SponsorshipConfigID).First(&cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to load sponsorship config: %s", err)
	}
	return &cfg, nil
}

func loadRateState(tx *gorm.DB, principal string) (*models.RateState, error) {
	var state models.RateState
	err := tx.Where("principal = ?", principal).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		state = models.RateState{Principal: principal}
		if err := tx.Create(&state).Error; err != nil {
			return nil, fmt.Errorf("failed to create rate state: %s", err)
		}
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rate state: %s", err)
	}
	return &state, nil
}

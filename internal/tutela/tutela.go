// Package tutela wires the three authorization engines together and runs
// the application lifecycle.
package tutela

import (
	"time"

	"github.com/tutela-wallet/tutela/internal/config"
	"github.com/tutela-wallet/tutela/internal/delegation"
	"github.com/tutela-wallet/tutela/internal/events"
	"github.com/tutela-wallet/tutela/internal/ledger"
	"github.com/tutela-wallet/tutela/internal/metrics"
	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/internal/notificator"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/internal/sponsorship"
	"github.com/tutela-wallet/tutela/internal/wallet"
	"github.com/tutela-wallet/tutela/pkg/logger"
	"github.com/tutela-wallet/tutela/pkg/validation"
	"gorm.io/gorm"
)

// Tutela is the assembled application: one store, three engines, shared
// notification plumbing.
type Tutela struct {
	logger *logger.Logger
	config *config.Config
	store  *repository.Store

	Wallet      *wallet.Engine
	Delegation  *delegation.Engine
	Sponsorship *sponsorship.Engine

	publisher *events.Publisher
}

// New assembles the engines over a migrated store.
func New(cfg *config.Config, store *repository.Store, log *logger.Logger) (*Tutela, error) {
	publisher, err := events.NewPublisher(cfg.NATSUrl, log.Named("events"))
	if err != nil {
		return nil, err
	}

	webhook := notificator.NewWebhookNotificator(log.Named("webhook"))
	var stream models.NotificationService
	if publisher != nil {
		stream = publisher
	}
	notifier := notificator.NewNotificator(log.Named("notificator"), store, webhook, stream)

	walletEngine := wallet.NewEngine(store, notifier, log.Named("wallet"))
	delegationEngine := delegation.NewEngine(store, walletEngine, notifier, cfg.ChainScope, cfg.OwnerAddress, log.Named("delegation"))
	sponsorshipEngine := sponsorship.NewEngine(store, notifier, log.Named("sponsorship"))

	if err := sponsorshipEngine.Seed(cfg.OwnerAddress, cfg.StakeAmount, cfg.MaxUnitsPerWindow, cfg.MinTimeBetweenOps, cfg.SponsorshipEndpoint); err != nil {
		return nil, err
	}

	return &Tutela{
		logger:      log,
		config:      cfg,
		store:       store,
		Wallet:      walletEngine,
		Delegation:  delegationEngine,
		Sponsorship: sponsorshipEngine,
		publisher:   publisher,
	}, nil
}

// Start runs the maintenance loop: it only refreshes observability state.
// Period rollovers and rate windows reset lazily inside the operations
// themselves, so no sweeper mutates domain state here.
func (t *Tutela) Start() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		balance, err := t.Sponsorship.GetBalance()
		if err != nil {
			t.logger.Error("Failed to read sponsorship balance: ", err)
			continue
		}
		metrics.SponsorshipBalance.Set(float64(balance))
	}
}

// Fund credits a ledger account. Operational seeding path, owner-gated at
// the API layer.
func (t *Tutela) Fund(address string, amount int64) error {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	return t.store.Transaction(func(tx *gorm.DB) error {
		return ledger.Credit(tx, address, amount)
	})
}

// FundAs is the owner-gated form of Fund used by the admin API.
func (t *Tutela) FundAs(caller, address string, amount int64) error {
	if validation.NormalizeAddress(caller) != t.config.OwnerAddress {
		return models.ErrNotOwner
	}
	return t.Fund(address, amount)
}

// Balance reads a ledger account balance.
func (t *Tutela) Balance(address string) (int64, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return 0, err
	}
	return t.store.GetBalance(address)
}

// DescribeWallet reads a wallet and its authorization objects by address.
func (t *Tutela) DescribeWallet(address string) (*models.Wallet, []*models.Subscription, []*models.SubWallet, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, nil, nil, err
	}
	w, err := t.store.GetWallet(address)
	if err != nil {
		return nil, nil, nil, err
	}
	subs, err := t.store.GetSubscriptions(address)
	if err != nil {
		return nil, nil, nil, err
	}
	sws, err := t.store.GetSubWallets(address)
	if err != nil {
		return nil, nil, nil, err
	}
	return w, subs, sws, nil
}

// Owner returns the administrative principal.
func (t *Tutela) Owner() string {
	return t.config.OwnerAddress
}

// Close releases external connections.
func (t *Tutela) Close() {
	t.publisher.Close()
	if err := t.store.Close(); err != nil {
		t.logger.Error("Failed to close store: ", err)
	}
}

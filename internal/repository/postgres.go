package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/tutela-wallet/tutela/internal/models"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

// Store wraps the database connection. Engines compose multi-step operations
// through Transaction so that every operation is one atomic unit: either all
// of its mutations commit, or none do.
type Store struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// NewPostgresDB connects to Postgres, migrates the schema and returns the
// store.
func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*Store, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	store, err := NewStore(db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return store, nil
}

// NewStore migrates the schema on an existing connection. Tests use this with
// an in-memory database.
func NewStore(db *gorm.DB, logger *logger.Logger) (*Store, error) {
	if err := db.AutoMigrate(
		&models.Wallet{},
		&models.Subscription{},
		&models.SubWallet{},
		&models.DelegationRecord{},
		&models.AuthorizedPaymaster{},
		&models.SponsorshipConfig{},
		&models.WhitelistedAccount{},
		&models.Relayer{},
		&models.RateState{},
		&models.LedgerAccount{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	return &Store{Conn: db, logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// Transaction runs fn inside one database transaction. A returned error
// rolls every mutation back.
func (s *Store) Transaction(fn func(tx *gorm.DB) error) error {
	return s.Conn.Transaction(fn)
}

// GetWalletByOwner resolves the factory lookup owner -> wallet.
func (s *Store) GetWalletByOwner(owner string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.Conn.Where("owner = ?", owner).First(&wallet).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet by owner: %s", err)
	}
	return &wallet, nil
}

// GetWallet fetches a wallet by its address.
func (s *Store) GetWallet(address string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.Conn.Where("address = ?", address).First(&wallet).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %s", err)
	}
	return &wallet, nil
}

// GetSubscriptions lists a wallet's subscriptions.
func (s *Store) GetSubscriptions(walletAddress string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := s.Conn.Where("wallet_address = ?", walletAddress).Order("id ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %s", err)
	}
	return subs, nil
}

// GetSubWallets lists a wallet's sub-wallets.
func (s *Store) GetSubWallets(walletAddress string) ([]*models.SubWallet, error) {
	var sws []*models.SubWallet
	if err := s.Conn.Where("wallet_address = ?", walletAddress).Order("id ASC").Find(&sws).Error; err != nil {
		return nil, fmt.Errorf("failed to get sub-wallets: %s", err)
	}
	return sws, nil
}

// GetEndpoint reads the webhook endpoint from the sponsorship config row.
// Implements the notificator's endpoint source.
func (s *Store) GetEndpoint() (string, error) {
	var cfg models.SponsorshipConfig
	if err := s.Conn.Where("id = ?", models.SponsorshipConfigID).First(&cfg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to load sponsorship config: %s", err)
	}
	return cfg.Endpoint, nil
}

// GetBalance reads a ledger account balance; missing accounts read zero.
func (s *Store) GetBalance(address string) (int64, error) {
	var account models.LedgerAccount
	if err := s.Conn.Where("address = ?", address).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get ledger account: %s", err)
	}
	return account.Balance, nil
}

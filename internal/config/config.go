package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/tutela-wallet/tutela/pkg/validation"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// ChainScope is the execution-scope identifier mixed into every request
	// digest. A signature produced for one scope never verifies in another.
	ChainScope uint64
	// OwnerAddress is the administrative principal for the delegation
	// authority and the sponsorship gate.
	OwnerAddress string
	// Sponsorship gate defaults (seed values for the singleton config row)
	StakeAmount       int64
	MaxUnitsPerWindow int64
	MinTimeBetweenOps int64
	// SponsorshipEndpoint is the initial webhook endpoint for post-commit
	// event notifications. Mutable at runtime via the admin API.
	SponsorshipEndpoint string
	// NATSUrl enables the event publisher when non-empty.
	NATSUrl string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:         getEnvAsBool("DEVELOPMENT", false),
		APIPort:             getEnvAsInt("API_PORT", 6710),
		PostgresUser:        getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:    getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:        getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:        getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:          getEnv("POSTGRES_DB", "tutela"),
		ChainScope:          getEnvAsUint64("CHAIN_SCOPE", 1),
		OwnerAddress:        getEnv("OWNER_ADDRESS", ""),
		StakeAmount:         getEnvAsInt64("STAKE_AMOUNT", 1_000_000),
		MaxUnitsPerWindow:   getEnvAsInt64("MAX_UNITS_PER_WINDOW", 500_000),
		MinTimeBetweenOps:   getEnvAsInt64("MIN_TIME_BETWEEN_OPS", 5),
		SponsorshipEndpoint: getEnv("SPONSORSHIP_ENDPOINT", ""),
		NATSUrl:             getEnv("NATS_URL", ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.OwnerAddress == "" {
		return fmt.Errorf("OWNER_ADDRESS is required")
	}

	owner, err := validation.ValidateAndNormalizeAddress(c.OwnerAddress)
	if err != nil {
		return fmt.Errorf("invalid OWNER_ADDRESS format: %w", err)
	}
	c.OwnerAddress = owner

	if c.StakeAmount < 0 {
		return fmt.Errorf("STAKE_AMOUNT must not be negative")
	}

	if c.MaxUnitsPerWindow <= 0 {
		return fmt.Errorf("MAX_UNITS_PER_WINDOW must be positive")
	}

	if c.MinTimeBetweenOps < 0 {
		return fmt.Errorf("MIN_TIME_BETWEEN_OPS must not be negative")
	}

	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt64(name string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsUint64(name string, defaultValue uint64) uint64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

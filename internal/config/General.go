package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog/log"
)

// ModeSim runs the vault against the in-process venue with the trade driver.
const ModeSim = "sim"

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultOwner is the initial owner of the vault. A restored owner takes precedence.
	VaultOwner sdk.AccAddress
	// VaultAccount is the custody account holding deposits, reserves and fees.
	VaultAccount sdk.AccAddress
	// VenueAddress is the only caller allowed to run the update hook.
	VenueAddress sdk.AccAddress

	// MaxWithdrawFeeBps caps the withdraw fee rate an owner may set.
	MaxWithdrawFeeBps uint32

	// VaultMode selects the venue. Only ModeSim is supported.
	VaultMode string

	// TradeInterval is the period of the trade driver.
	TradeInterval time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required unless stated otherwise.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultOwner, err = getEnvAsAddress("VAULT_OWNER")
	if err != nil {
		return err
	}

	VaultAccount, err = getEnvAsAddress("VAULT_ACCOUNT")
	if err != nil {
		return err
	}

	VenueAddress, err = getEnvAsAddress("VENUE_ADDRESS")
	if err != nil {
		return err
	}

	MaxWithdrawFeeBps, err = getEnvAsUint32("MAX_WITHDRAW_FEE_BPS")
	if err != nil {
		return err
	}
	if MaxWithdrawFeeBps > 10_000 {
		return fmt.Errorf("MAX_WITHDRAW_FEE_BPS must not exceed 10000, got %d", MaxWithdrawFeeBps)
	}

	VaultMode, err = getEnv("VAULT_MODE")
	if err != nil {
		return err
	}
	if VaultMode != ModeSim {
		return fmt.Errorf("VAULT_MODE must be %q, got %q", ModeSim, VaultMode)
	}

	TradeInterval, err = getEnvAsDuration("TRADE_INTERVAL", DefaultSimulation.TradeInterval)
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultOwner", VaultOwner.String()).
		Str("VaultAccount", VaultAccount.String()).
		Str("VenueAddress", VenueAddress.String()).
		Uint32("MaxWithdrawFeeBps", MaxWithdrawFeeBps).
		Str("VaultMode", VaultMode).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves an optional string environment variable.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint32 retrieves an environment variable as a uint32. Returns error if not set or invalid.
func getEnvAsUint32(key string) (uint32, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint32, got: " + valueStr)
	}
	return uint32(value), nil
}

// getEnvAsInt retrieves an optional environment variable as an int.
func getEnvAsInt(key string, fallback int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an optional environment variable as a time.Duration.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsAddress retrieves a bech32 account address. Returns error if not set or invalid.
func getEnvAsAddress(key string) (sdk.AccAddress, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return nil, err
	}
	addr, err := sdk.AccAddressFromBech32(valueStr)
	if err != nil {
		return nil, fmt.Errorf("environment variable %s must be a bech32 address: %w", key, err)
	}
	return addr, nil
}

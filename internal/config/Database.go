package config

import (
	"errors"

	"github.com/elys-network/ammvault/internal/state"
)

// LoadDBConfig reads the database settings. DB_USER and DB_NAME are required.
func LoadDBConfig() (state.DBConfig, error) {
	port, err := getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return state.DBConfig{}, err
	}
	cfg := state.DBConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		DBName:   getEnvOrDefault("DB_NAME", ""),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}
	if cfg.User == "" {
		return state.DBConfig{}, errors.New("environment variable DB_USER is required but not set")
	}
	if cfg.DBName == "" {
		return state.DBConfig{}, errors.New("environment variable DB_NAME is required but not set")
	}
	return cfg, nil
}

package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port of the HTTP API.
	WebPort string
	// GRPCPort is the port of the gRPC health service.
	GRPCPort string
	// NATSURL is the NATS server events are published to. Empty disables publishing.
	NATSURL string
	// NATSSubjectPrefix prefixes every published subject.
	NATSSubjectPrefix string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	WebPort, err = getEnv("WEB_PORT")
	if err != nil {
		return err
	}

	GRPCPort, err = getEnv("GRPC_PORT")
	if err != nil {
		return err
	}

	NATSURL = getEnvOrDefault("NATS_URL", "")
	NATSSubjectPrefix = getEnvOrDefault("NATS_SUBJECT_PREFIX", "ammvault.events")

	log.Debug().
		Str("WebPort", WebPort).
		Str("GRPCPort", GRPCPort).
		Str("NATSURL", NATSURL).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/elys-network/ammvault/internal/config"
	"github.com/elys-network/ammvault/internal/driver"
	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/logger"
	"github.com/elys-network/ammvault/internal/metrics"
	"github.com/elys-network/ammvault/internal/simulations"
	"github.com/elys-network/ammvault/internal/state"
	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/vault"
	"github.com/elys-network/ammvault/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ammvault",
		Short:        "Pooled-liquidity vault in front of an AMM venue",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
			}
			return initLogger()
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func initLogger() error {
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logger.Initialize(os.Getenv("LOG_LEVEL"))
		return nil
	}
	w, err := logger.FileWriter(logFile)
	if err != nil {
		return err
	}
	logger.Initialize(os.Getenv("LOG_LEVEL"), w)
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the vault tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDBConfig()
			if err != nil {
				return err
			}
			if err := state.InitDB(dbCfg); err != nil {
				return err
			}
			defer state.CloseDB()
			return state.EnsureSchema()
		},
	}
}

func newServeCmd() *cobra.Command {
	var noDB bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vault against the simulated venue with the API and trade driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, !noDB)
		},
	}
	cmd.Flags().BoolVar(&noDB, "no-db", false, "run without PostgreSQL persistence")
	return cmd
}

func serve(ctx context.Context, useDB bool) error {
	// --- 1. Initialization Phase ---
	if err := config.LoadConfig(); err != nil {
		return err
	}
	log.Info().Str("mode", config.VaultMode).Msg("AMM vault starting...")

	m := metrics.New()
	recorder := events.NewRecorder(0)
	hub := web.NewHub()
	emitters := events.Multi{recorder, hub}
	var history events.History = recorder

	var (
		store   *state.Store
		counter driver.Counter
		dbCheck func() error
	)
	if useDB {
		dbCfg, err := config.LoadDBConfig()
		if err != nil {
			return err
		}
		if err := state.InitDB(dbCfg); err != nil {
			return err
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			return err
		}
		store = state.NewStore(state.DB)
		journal := state.NewEventJournal(state.DB)
		emitters = append(emitters, journal)
		history = journal
		counter = state.NewCycleCounter(state.DB)
		dbCheck = state.TestDBConnection
	} else {
		log.Warn().Msg("Running without database. Vault state is lost on exit.")
	}

	if config.NATSURL != "" {
		publisher, err := events.ConnectNATS(config.NATSURL, config.NATSSubjectPrefix)
		if err != nil {
			return err
		}
		defer publisher.Close()
		emitters = append(emitters, publisher)
	}

	// --- 2. Venue and vault ---
	bank := simulations.NewBank()
	venue := simulations.NewVenue(config.VenueAddress, bank)

	planner, err := strategy.NewCenteredRange(config.DefaultRangeParameters)
	if err != nil {
		return err
	}
	vaultCfg := vault.Config{
		Owner:             config.VaultOwner,
		Account:           config.VaultAccount,
		VenueAddress:      config.VenueAddress,
		MaxWithdrawFeeBps: config.MaxWithdrawFeeBps,
		Venue:             venue.Client(config.VaultAccount),
		Bank:              bank,
		Planner:           planner,
		Emitter:           emitters,
		Metrics:           m,
	}
	if store != nil {
		vaultCfg.Persister = store
	}
	v, err := vault.New(vaultCfg)
	if err != nil {
		return err
	}

	if store != nil {
		saved, found, err := store.LoadVaultState(ctx)
		if err != nil {
			return err
		}
		if found {
			reseeded, err := driver.Reseed(saved, bank, config.VaultAccount)
			if err != nil {
				return err
			}
			if err := v.Restore(reseeded); err != nil {
				return err
			}
		}
	}

	markets, err := driver.Setup(ctx, venue, bank, v, config.DefaultSimulation)
	if err != nil {
		return err
	}

	// --- 3. Outer surfaces ---
	webServer := web.NewWebServer(web.Config{
		Port:    config.WebPort,
		Vault:   v,
		Metrics: m,
		History: history,
		Hub:     hub,
		DBCheck: dbCheck,
	})
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	healthServer := web.NewHealthServer(dbCheck, 0)
	go func() {
		if err := healthServer.ListenAndServe(ctx, config.GRPCPort); err != nil {
			log.Error().Err(err).Msg("gRPC health server failed")
		}
	}()

	// --- 4. Trade driver ---
	params := config.DefaultSimulation
	params.TradeInterval = config.TradeInterval
	d, err := driver.New(driver.Config{
		Venue:   venue,
		Vault:   v,
		Markets: markets,
		Params:  params,
		Counter: counter,
	})
	if err != nil {
		return err
	}
	d.RunLoop(ctx, params.TradeInterval)

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	return nil
}

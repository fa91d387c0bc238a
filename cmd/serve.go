package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"circle-integration/config"
	"circle-integration/db"
	"circle-integration/devnet"
	"circle-integration/handlers"
	"circle-integration/logger"
	"circle-integration/models"
	"circle-integration/routers"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the integration API against a LevelDB-backed devnet chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func chainConfig(cfg *config.Config) (devnet.ChainConfig, error) {
	guardians, err := devnet.NewGuardians(cfg.Devnet.GuardianSetIndex, cfg.Devnet.GuardianKeys)
	if err != nil {
		return devnet.ChainConfig{}, fmt.Errorf("devnet.guardian_keys: %w", err)
	}
	attesters, err := devnet.NewAttesters(cfg.Devnet.AttesterKeys, cfg.Devnet.SignatureThreshold)
	if err != nil {
		return devnet.ChainConfig{}, fmt.Errorf("devnet.attester_keys: %w", err)
	}
	fee, err := cfg.MessageFee()
	if err != nil {
		return devnet.ChainConfig{}, err
	}
	return devnet.ChainConfig{
		ChainID:            models.ChainID(cfg.Chain.ID),
		Domain:             models.Domain(cfg.Chain.Domain),
		Token:              config.Address(cfg.Chain.Token),
		Contract:           config.Address(cfg.Chain.Contract),
		Transmitter:        config.Address(cfg.Chain.Transmitter),
		GovernanceChain:    models.ChainID(cfg.Governance.ChainID),
		GovernanceContract: config.Address(cfg.Governance.Contract),
		MessageFee:         fee,
		Finality:           cfg.Chain.Finality,
		Faucet:             cfg.Devnet.Faucet,
		GuardianSet:        guardians.GuardianSet(),
		Attesters:          attesters.Addresses(),
		SignatureThreshold: attesters.Threshold,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Logger.Info("Starting circle integration node",
		zap.Uint16("chain", cfg.Chain.ID), zap.Uint32("domain", cfg.Chain.Domain))

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		logger.Logger.Error("Failed to open leveldb", zap.Error(err))
		return err
	}
	defer ldb.Close()

	chainCfg, err := chainConfig(cfg)
	if err != nil {
		return err
	}
	chain, err := devnet.NewChain(ctx, ldb, chainCfg)
	if err != nil {
		logger.Logger.Error("Failed to wire chain", zap.Error(err))
		return err
	}

	r := mux.NewRouter()
	routers.RegisterRoutes(r, handlers.NewHandler(chain.Engine, chain.Governance, chain.Wallet))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		logger.Logger.Error("Server stopped", zap.Error(err))
		return err
	case <-sigCh:
		logger.Logger.Info("Shutdown signal received, exiting...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

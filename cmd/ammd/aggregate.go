package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	inPath, _ := cmd.Flags().GetString("in")
	if inPath == "" {
		return fmt.Errorf("input events file is required")
	}
	if cfg.PgDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be greater than zero")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgStore.Close()

	var stateStore aggregate.StateStore
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile}
	}

	aggregator := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: int64(cfg.Window.Seconds()),
		BatchSize:     cfg.BatchSize,
		FeeBps:        cfg.FeeBps,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		StateStore:    stateStore,
	}, pgStore, logger)

	logger.Info("aggregate start",
		zap.String("in", inPath),
		zap.Duration("window", cfg.Window),
		zap.Uint64("fee_bps", cfg.FeeBps),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return aggregator.Run(ctx, inPath)
}

package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityEngine/internal/api"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/postgres"
	"liquidityEngine/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:          "ammd",
		Short:        "Constant-product liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pool engine HTTP service",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().Uint64("fee-bps", 30, "swap fee in basis points (0 disables the fee)")
	serveCmd.Flags().String("genesis", "", "ledger genesis JSON path")
	serveCmd.Flags().String("snapshot", "./data/pools.json", "pool snapshot path")
	serveCmd.Flags().String("events-out", "./data/events.jsonl", "event JSONL path (empty disables)")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN (empty disables)")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a no-fee constant-product quote",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("amount-in", "", "exact input amount")
	quoteCmd.Flags().String("reserve-in", "", "input-side reserve")
	quoteCmd.Flags().String("reserve-out", "", "output-side reserve")

	root.AddCommand(quoteCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate emitted events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input events JSONL")
	aggregateCmd.Flags().Uint64("fee-bps", 30, "fee rate the events were produced with")
	aggregateCmd.Flags().Duration("window", 5*time.Minute, "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "window batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	aggregateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	assetLedger := ledger.NewMemoryLedger()
	if cfg.Genesis != "" {
		if err := ledger.LoadGenesis(cfg.Genesis, assetLedger); err != nil {
			return err
		}
		logger.Info("genesis loaded", zap.String("path", cfg.Genesis))
	}

	poolStore := store.New()
	snapshots := store.NewSnapshotStore(cfg.Snapshot)
	var startSeq uint64
	if snap, found, err := snapshots.Load(); err != nil {
		return err
	} else if found {
		if err := poolStore.Restore(snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		startSeq = snap.LastSequence
		logger.Info("snapshot restored",
			zap.String("path", cfg.Snapshot),
			zap.Int("pools", len(snap.Pools)),
			zap.Int("positions", len(snap.Positions)),
			zap.Uint64("last_sequence", startSeq),
		)
	}

	var sinks storage.Multi
	if cfg.EventsOut != "" {
		sinks = append(sinks, storage.NewJsonlSink(cfg.EventsOut))
	}

	var pgStore *postgres.Store
	if cfg.PgDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		sinks = append(sinks, pgStore)
	}

	var sink storage.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	eng, err := engine.New(engine.Config{FeeBps: cfg.FeeBps, StartSequence: startSeq}, poolStore, assetLedger, sink, logger)
	if err != nil {
		return err
	}

	logger.Info("engine start",
		zap.String("listen", cfg.Listen),
		zap.Uint64("fee_bps", cfg.FeeBps),
		zap.String("events_out", cfg.EventsOut),
		zap.Bool("postgres", pgStore != nil),
	)

	server := api.NewServer(eng, logger)
	serveErr := server.Listen(ctx, cfg.Listen)

	snap := poolStore.Export()
	snap.LastSequence = eng.LastSequence()
	if err := snapshots.Save(snap); err != nil {
		logger.Error("save snapshot", zap.Error(err))
	}
	if pgStore != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgStore.UpsertPools(flushCtx, snap.Pools); err != nil {
			logger.Error("flush pools", zap.Error(err))
		}
		if err := pgStore.UpsertPositions(flushCtx, snap.Positions); err != nil {
			logger.Error("flush positions", zap.Error(err))
		}
	}

	return serveErr
}

func runQuote(cmd *cobra.Command, _ []string) error {
	amountIn, err := parseAmountFlag(cmd, "amount-in")
	if err != nil {
		return err
	}
	reserveIn, err := parseAmountFlag(cmd, "reserve-in")
	if err != nil {
		return err
	}
	reserveOut, err := parseAmountFlag(cmd, "reserve-out")
	if err != nil {
		return err
	}

	amountOut, err := engine.QuoteOutput(amountIn, reserveIn, reserveOut)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), amountOut.String())
	return nil
}

func parseAmountFlag(cmd *cobra.Command, name string) (*big.Int, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", name, value)
	}
	return amount, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

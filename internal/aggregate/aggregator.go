package aggregate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

func errInvalidAmount(value string) error {
	return fmt.Errorf("invalid amount: %s", value)
}

// MetricsStore persists aggregated window rows.
type MetricsStore interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds int64
	BatchSize     int
	FeeBps        uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	StateStore    StateStore
}

// Aggregator folds engine event records into pool window metrics. Events are
// sequence-ordered, so per pool the window only moves forward: one window per
// pool stays open, and it closes when a later window for that pool arrives.
// Only closed windows are flushed mid-run; an open window flushed early would
// be overwritten by its own smaller partial totals on the next upsert.
type Aggregator struct {
	cfg     Config
	store   MetricsStore
	logger  *zap.Logger
	open    map[string]*Accumulator
	closed  []*Accumulator
	lastSeq uint64
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:    cfg,
		store:  store,
		logger: logger,
		open:   make(map[string]*Accumulator),
	}
}

// Run replays an events JSONL file into window metrics rows, resuming from
// the last processed sequence when a state store is configured.
func (a *Aggregator) Run(ctx context.Context, inPath string) error {
	if a.cfg.WindowSeconds <= 0 {
		return fmt.Errorf("window must be greater than zero")
	}
	if a.store == nil {
		return fmt.Errorf("metrics store is nil")
	}

	resumeSeq := uint64(0)
	if a.cfg.StateStore != nil {
		seq, found, err := a.cfg.StateStore.Load(ctx)
		if err != nil {
			return err
		}
		if found {
			resumeSeq = seq
		}
	}

	file, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer file.Close()

	processed := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("parse event record: %w", err)
		}
		if record.Sequence <= resumeSeq {
			continue
		}

		if err := a.addRecord(record); err != nil {
			return err
		}
		a.lastSeq = record.Sequence
		processed++

		if a.cfg.BatchSize > 0 && len(a.closed) >= a.cfg.BatchSize {
			if err := a.flushClosed(ctx); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan events: %w", err)
	}

	for _, acc := range a.open {
		a.closed = append(a.closed, acc)
	}
	a.open = make(map[string]*Accumulator)
	if err := a.flushClosed(ctx); err != nil {
		return err
	}

	// The state save comes last: a sequence persisted before its window is
	// flushed would make a resume skip events the table never saw.
	if a.cfg.StateStore != nil {
		if err := a.cfg.StateStore.Save(ctx, a.lastSeq); err != nil {
			return err
		}
	}

	a.logger.Info("aggregation complete",
		zap.Int("events", processed),
		zap.Uint64("last_sequence", a.lastSeq),
	)
	return nil
}

func (a *Aggregator) addRecord(record model.EventRecord) error {
	if record.Type != model.EventSwapExecuted {
		return nil
	}

	var swap model.SwapExecutedData
	if err := json.Unmarshal(record.Data, &swap); err != nil {
		return fmt.Errorf("decode swap: %w", err)
	}

	windowStart := record.Timestamp - record.Timestamp%a.cfg.WindowSeconds
	acc, ok := a.open[swap.PairKey]
	if ok && acc.WindowStart != windowStart {
		a.closed = append(a.closed, acc)
		ok = false
	}
	if !ok {
		acc = NewAccumulator(swap.PairKey, windowStart, windowStart+a.cfg.WindowSeconds)
		a.open[swap.PairKey] = acc
	}
	return acc.AddSwap(swap, a.cfg.FeeBps)
}

func (a *Aggregator) flushClosed(ctx context.Context) error {
	if len(a.closed) == 0 {
		return nil
	}

	metrics := make([]model.PoolWindowMetrics, 0, len(a.closed))
	for _, acc := range a.closed {
		metrics = append(metrics, model.PoolWindowMetrics{
			PairKey:        acc.PairKey,
			Token0:         acc.Token0,
			Token1:         acc.Token1,
			WindowSizeSecs: a.cfg.WindowSeconds,
			WindowStart:    time.Unix(acc.WindowStart, 0).UTC(),
			WindowEnd:      time.Unix(acc.WindowEnd, 0).UTC(),
			SwapCount:      acc.SwapCount,
			Volume0:        acc.Volume0.String(),
			Volume1:        acc.Volume1.String(),
			Fee0:           acc.Fee0.String(),
			Fee1:           acc.Fee1.String(),
		})
	}

	err := withRetry(ctx, a.cfg.MaxRetries, a.cfg.RetryBackoff, func(ctx context.Context) error {
		return a.store.UpsertWindowMetrics(ctx, metrics)
	})
	if err != nil {
		return fmt.Errorf("upsert window metrics: %w", err)
	}

	a.logger.Debug("flushed window metrics", zap.Int("windows", len(metrics)))
	a.closed = a.closed[:0]
	return nil
}

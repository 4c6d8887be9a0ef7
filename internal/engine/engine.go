// Package engine implements the pool ledger algorithms: liquidity
// provisioning, liquidity withdrawal and constant-product swap pricing.
// The engine is stateless between calls; all pool state lives in the store
// and all asset custody lives behind the AssetLedger interface.
package engine

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/store"
)

const feeDenominator = 10_000

// Config holds engine-level constants and dependencies.
type Config struct {
	// FeeBps is the proportional trading fee in basis points applied to swap
	// input. Zero is the fee-free variant of the same algorithm.
	FeeBps uint64
	// StartSequence is the sequence of the last event emitted before this
	// process started; emission continues at StartSequence+1. Event sinks are
	// append-only across restarts, so sequences must never repeat.
	StartSequence uint64
	// Now overrides the clock used for deadline checks. Defaults to time.Now.
	Now func() time.Time
}

// Engine executes pool operations against a store and an asset ledger.
// A mutex serializes public operations: the store is single-writer and the
// algorithms assume no interleaving between check and commit.
type Engine struct {
	mu     sync.Mutex
	store  *store.Store
	ledger ledger.AssetLedger
	events storage.Sink
	logger *zap.Logger

	feeMul *big.Int
	feeDen *big.Int
	now    func() time.Time
	seq    uint64
}

// New builds an Engine. A nil sink disables event emission; a nil logger is
// replaced with a nop logger.
func New(cfg Config, st *store.Store, assetLedger ledger.AssetLedger, events storage.Sink, logger *zap.Logger) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if assetLedger == nil {
		return nil, fmt.Errorf("asset ledger is nil")
	}
	if cfg.FeeBps >= feeDenominator {
		return nil, fmt.Errorf("fee %d bps must be below %d", cfg.FeeBps, feeDenominator)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:  st,
		ledger: assetLedger,
		events: events,
		logger: logger,
		feeMul: new(big.Int).SetUint64(feeDenominator - cfg.FeeBps),
		feeDen: big.NewInt(feeDenominator),
		now:    now,
		seq:    cfg.StartSequence,
	}, nil
}

// LastSequence returns the sequence of the most recently emitted event, or
// the configured start sequence when nothing has been emitted yet. Persist it
// alongside the store so a restarted engine can continue the series.
func (e *Engine) LastSequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// ProvisionParams are the inputs for adding liquidity. Desired and minimum
// amounts are in caller orientation: A refers to AssetA, B to AssetB.
type ProvisionParams struct {
	Provider  common.Address
	AssetA    common.Address
	AssetB    common.Address
	DesiredA  *big.Int
	DesiredB  *big.Int
	MinA      *big.Int
	MinB      *big.Int
	Recipient common.Address
	Deadline  int64
}

// ProvisionResult reports the final deposited amounts and the minted claim.
type ProvisionResult struct {
	AmountA *big.Int
	AmountB *big.Int
	Minted  *big.Int
}

// ProvisionLiquidity deposits paired assets and mints a proportional claim.
//
// An empty pool accepts the full desired amounts, letting the caller set the
// initial price. Otherwise the matching amount for one side is computed from
// the other at the current reserve ratio, truncating, and checked against the
// caller's floors in both directions.
//
// The minted claim is the raw sum of the two deposited amounts. This is an
// intentional simplification: claim values are not comparable across pools
// with different price levels or decimal scales, unlike geometric-mean share
// accounting. Changing it would alter all downstream withdrawal math.
func (e *Engine) ProvisionLiquidity(p ProvisionParams) (ProvisionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.now().Unix() > p.Deadline {
		return ProvisionResult{}, ErrExpired
	}
	key, err := PairKey(p.AssetA, p.AssetB)
	if err != nil {
		return ProvisionResult{}, err
	}

	desiredA := valueOrZero(p.DesiredA)
	desiredB := valueOrZero(p.DesiredB)
	minA := valueOrZero(p.MinA)
	minB := valueOrZero(p.MinB)

	tx := e.store.Begin()
	pool, ok := tx.Pool(key)
	if !ok {
		token0, token1, err := SortTokens(p.AssetA, p.AssetB)
		if err != nil {
			return ProvisionResult{}, err
		}
		pool = store.Pool{
			Token0:   token0,
			Token1:   token1,
			Reserve0: big.NewInt(0),
			Reserve1: big.NewInt(0),
		}
	}
	reserveA, reserveB := orientReserves(pool, p.AssetA)

	var amountA, amountB *big.Int
	if reserveA.Sign() == 0 && reserveB.Sign() == 0 {
		amountA, amountB = desiredA, desiredB
	} else {
		optimalB := new(big.Int).Mul(desiredA, reserveB)
		optimalB.Div(optimalB, reserveA)
		if optimalB.Cmp(desiredB) <= 0 {
			if optimalB.Cmp(minB) < 0 {
				return ProvisionResult{}, ErrInsufficientBAmount
			}
			amountA, amountB = desiredA, optimalB
		} else {
			optimalA := new(big.Int).Mul(desiredB, reserveA)
			optimalA.Div(optimalA, reserveB)
			if optimalA.Cmp(minA) < 0 {
				return ProvisionResult{}, ErrInsufficientAAmount
			}
			amountA, amountB = optimalA, desiredB
		}
	}
	if amountA.Sign() <= 0 {
		return ProvisionResult{}, ErrInsufficientAAmount
	}
	if amountB.Sign() <= 0 {
		return ProvisionResult{}, ErrInsufficientBAmount
	}

	custody := custodyAccount(key)
	if err := e.ledger.TransferFrom(p.AssetA, p.Provider, custody, amountA); err != nil {
		return ProvisionResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.ledger.TransferFrom(p.AssetB, p.Provider, custody, amountB); err != nil {
		// Undo the first leg so custody matches the untouched reserves.
		if refundErr := e.ledger.Transfer(p.AssetA, custody, p.Provider, amountA); refundErr != nil {
			e.logger.Error("provision refund failed",
				zap.String("pair", key.Hex()),
				zap.Error(refundErr),
			)
		}
		return ProvisionResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	amount0, amount1 := orientAmounts(pool, p.AssetA, amountA, amountB)
	pool.Reserve0 = new(big.Int).Add(pool.Reserve0, amount0)
	pool.Reserve1 = new(big.Int).Add(pool.Reserve1, amount1)
	tx.SetPool(key, pool)

	minted := new(big.Int).Add(amountA, amountB)
	shares := tx.Position(p.Recipient, key)
	tx.SetPosition(p.Recipient, key, shares.Add(shares, minted))
	tx.Commit()

	e.emit(model.EventLiquidityAdded, model.LiquidityAddedData{
		PairKey:  key.Hex(),
		Provider: p.Provider.Hex(),
		Token0:   pool.Token0.Hex(),
		Token1:   pool.Token1.Hex(),
		Amount0:  amount0.String(),
		Amount1:  amount1.String(),
		Minted:   minted.String(),
	})
	e.logger.Info("liquidity added",
		zap.String("pair", key.Hex()),
		zap.String("provider", p.Provider.Hex()),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
		zap.String("minted", minted.String()),
	)

	return ProvisionResult{AmountA: amountA, AmountB: amountB, Minted: minted}, nil
}

// WithdrawParams are the inputs for removing liquidity, in caller
// orientation like ProvisionParams.
type WithdrawParams struct {
	Provider  common.Address
	AssetA    common.Address
	AssetB    common.Address
	Claim     *big.Int
	MinA      *big.Int
	MinB      *big.Int
	Recipient common.Address
	Deadline  int64
}

// WithdrawResult reports the amounts paid out for the burned claim.
type WithdrawResult struct {
	AmountA *big.Int
	AmountB *big.Int
}

// WithdrawLiquidity burns a claim and pays out each reserve in proportion to
// claim/(reserve0+reserve1), truncating both divisions so rounding favors the
// pool, never the withdrawer.
func (e *Engine) WithdrawLiquidity(p WithdrawParams) (WithdrawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.now().Unix() > p.Deadline {
		return WithdrawResult{}, ErrExpired
	}
	key, err := PairKey(p.AssetA, p.AssetB)
	if err != nil {
		return WithdrawResult{}, err
	}

	claim := valueOrZero(p.Claim)
	if claim.Sign() <= 0 {
		return WithdrawResult{}, ErrInsufficientLiquidity
	}
	minA := valueOrZero(p.MinA)
	minB := valueOrZero(p.MinB)

	tx := e.store.Begin()
	pool, ok := tx.Pool(key)
	if !ok {
		return WithdrawResult{}, ErrInsufficientLiquidity
	}
	shares := tx.Position(p.Provider, key)
	if shares.Cmp(claim) < 0 {
		return WithdrawResult{}, ErrInsufficientLiquidity
	}
	total := new(big.Int).Add(pool.Reserve0, pool.Reserve1)
	if total.Sign() == 0 {
		return WithdrawResult{}, ErrInsufficientLiquidity
	}

	amount0 := new(big.Int).Mul(claim, pool.Reserve0)
	amount0.Div(amount0, total)
	amount1 := new(big.Int).Mul(claim, pool.Reserve1)
	amount1.Div(amount1, total)

	amountA, amountB := amount0, amount1
	if p.AssetA != pool.Token0 {
		amountA, amountB = amount1, amount0
	}
	if amountA.Cmp(minA) < 0 {
		return WithdrawResult{}, ErrInsufficientAAmount
	}
	if amountB.Cmp(minB) < 0 {
		return WithdrawResult{}, ErrInsufficientBAmount
	}

	tx.SetPosition(p.Provider, key, shares.Sub(shares, claim))
	pool.Reserve0 = new(big.Int).Sub(pool.Reserve0, amount0)
	pool.Reserve1 = new(big.Int).Sub(pool.Reserve1, amount1)
	tx.SetPool(key, pool)

	// Reserves never exceed pool custody, so a conforming ledger cannot
	// reject these. A rejection still aborts with the staged state discarded.
	custody := custodyAccount(key)
	if amount0.Sign() > 0 {
		if err := e.ledger.Transfer(pool.Token0, custody, p.Recipient, amount0); err != nil {
			return WithdrawResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	if amount1.Sign() > 0 {
		if err := e.ledger.Transfer(pool.Token1, custody, p.Recipient, amount1); err != nil {
			if amount0.Sign() > 0 {
				if refundErr := e.ledger.Transfer(pool.Token0, p.Recipient, custody, amount0); refundErr != nil {
					e.logger.Error("withdraw refund failed",
						zap.String("pair", key.Hex()),
						zap.Error(refundErr),
					)
				}
			}
			return WithdrawResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	tx.Commit()

	e.emit(model.EventLiquidityRemoved, model.LiquidityRemovedData{
		PairKey:   key.Hex(),
		Provider:  p.Provider.Hex(),
		Token0:    pool.Token0.Hex(),
		Token1:    pool.Token1.Hex(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
		Recipient: p.Recipient.Hex(),
	})
	e.logger.Info("liquidity removed",
		zap.String("pair", key.Hex()),
		zap.String("provider", p.Provider.Hex()),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
	)

	return WithdrawResult{AmountA: amountA, AmountB: amountB}, nil
}

// SwapParams are the inputs for an exact-input swap. Path must name exactly
// the input asset followed by the output asset.
type SwapParams struct {
	Caller       common.Address
	Path         []common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Recipient    common.Address
	Deadline     int64
}

// SwapResult reports the executed amounts as [amountIn, amountOut].
type SwapResult struct {
	Amounts []*big.Int
}

// SwapExactIn trades an exact input amount for the other asset of the pair
// at the constant-product price, applying the engine fee to the input. All
// checks, including the output floor, run before any custody move.
func (e *Engine) SwapExactIn(p SwapParams) (SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.now().Unix() > p.Deadline {
		return SwapResult{}, ErrExpired
	}
	if len(p.Path) != 2 {
		return SwapResult{}, ErrUnsupportedPath
	}
	assetIn, assetOut := p.Path[0], p.Path[1]
	key, err := PairKey(assetIn, assetOut)
	if err != nil {
		return SwapResult{}, err
	}
	amountIn := valueOrZero(p.AmountIn)
	if amountIn.Sign() <= 0 {
		return SwapResult{}, ErrInsufficientInput
	}
	amountOutMin := valueOrZero(p.AmountOutMin)

	tx := e.store.Begin()
	pool, ok := tx.Pool(key)
	if !ok {
		return SwapResult{}, ErrInsufficientLiquidity
	}
	reserveIn, reserveOut := orientReserves(pool, assetIn)
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return SwapResult{}, ErrInsufficientLiquidity
	}

	inWithFee := new(big.Int).Mul(amountIn, e.feeMul)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, e.feeDen)
	denominator.Add(denominator, inWithFee)
	amountOut := numerator.Div(numerator, denominator)

	if amountOut.Sign() <= 0 || amountOut.Cmp(amountOutMin) < 0 {
		return SwapResult{}, ErrInsufficientOutput
	}

	custody := custodyAccount(key)
	if err := e.ledger.TransferFrom(assetIn, p.Caller, custody, amountIn); err != nil {
		return SwapResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.ledger.Transfer(assetOut, custody, p.Recipient, amountOut); err != nil {
		if refundErr := e.ledger.Transfer(assetIn, custody, p.Caller, amountIn); refundErr != nil {
			e.logger.Error("swap refund failed",
				zap.String("pair", key.Hex()),
				zap.Error(refundErr),
			)
		}
		return SwapResult{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	newIn := new(big.Int).Add(reserveIn, amountIn)
	newOut := new(big.Int).Sub(reserveOut, amountOut)
	if assetIn == pool.Token0 {
		pool.Reserve0, pool.Reserve1 = newIn, newOut
	} else {
		pool.Reserve0, pool.Reserve1 = newOut, newIn
	}
	tx.SetPool(key, pool)
	tx.Commit()

	e.emit(model.EventSwapExecuted, model.SwapExecutedData{
		PairKey:   key.Hex(),
		Caller:    p.Caller.Hex(),
		AssetIn:   assetIn.Hex(),
		AssetOut:  assetOut.Hex(),
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
		Recipient: p.Recipient.Hex(),
	})
	e.logger.Info("swap executed",
		zap.String("pair", key.Hex()),
		zap.String("caller", p.Caller.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
	)

	return SwapResult{Amounts: []*big.Int{amountIn, amountOut}}, nil
}

// orientReserves maps canonical reserves into (reserveA, reserveB) for the
// caller's first asset.
func orientReserves(pool store.Pool, assetA common.Address) (*big.Int, *big.Int) {
	if assetA == pool.Token0 {
		return pool.Reserve0, pool.Reserve1
	}
	return pool.Reserve1, pool.Reserve0
}

// orientAmounts maps caller-oriented amounts back into canonical
// (amount0, amount1) order.
func orientAmounts(pool store.Pool, assetA common.Address, amountA, amountB *big.Int) (*big.Int, *big.Int) {
	if assetA == pool.Token0 {
		return amountA, amountB
	}
	return amountB, amountA
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// emit appends one event record to the sink. Events are notifications with
// no behavioral effect; a sink failure is logged, not propagated.
func (e *Engine) emit(eventType string, data interface{}) {
	if e.events == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		e.logger.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}
	e.seq++
	record := model.EventRecord{
		Sequence:  e.seq,
		Type:      eventType,
		Timestamp: e.now().Unix(),
		Data:      payload,
	}
	if err := e.events.PutEventBatch([]model.EventRecord{record}); err != nil {
		e.logger.Error("emit event", zap.String("type", eventType), zap.Error(err))
	}
}

package engine

import "errors"

// Every failure aborts the whole operation with no persisted effect; callers
// receive exactly one of these conditions.
var (
	// ErrExpired is returned when the current time exceeds the deadline.
	ErrExpired = errors.New("deadline expired")

	// ErrIdenticalAssets is returned for a degenerate pair of equal assets.
	ErrIdenticalAssets = errors.New("identical assets")

	// ErrInsufficientAAmount is returned when the computed amount for the
	// caller's first asset falls below its slippage floor.
	ErrInsufficientAAmount = errors.New("insufficient A amount")

	// ErrInsufficientBAmount is returned when the computed amount for the
	// caller's second asset falls below its slippage floor.
	ErrInsufficientBAmount = errors.New("insufficient B amount")

	// ErrInsufficientLiquidity is returned when a withdrawal exceeds the
	// holder's claim or a zero-reserve pool is queried.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrInsufficientInput is returned for a zero-amount quote or swap.
	ErrInsufficientInput = errors.New("insufficient input amount")

	// ErrInsufficientOutput is returned when a swap's output falls below the
	// caller's minimum.
	ErrInsufficientOutput = errors.New("insufficient output amount")

	// ErrUnsupportedPath is returned for any swap path other than a direct
	// two-asset hop.
	ErrUnsupportedPath = errors.New("unsupported swap path")

	// ErrTransferFailed wraps a rejection reported by the asset ledger.
	ErrTransferFailed = errors.New("asset transfer failed")
)

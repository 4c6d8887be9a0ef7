package model

import "encoding/json"

// Event type names carried in EventRecord.Type.
const (
	EventLiquidityAdded   = "liquidity_added"
	EventLiquidityRemoved = "liquidity_removed"
	EventSwapExecuted     = "swap_executed"
)

// EventRecord is the envelope written to event sinks.
type EventRecord struct {
	Sequence  uint64          `json:"sequence"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// LiquidityAddedData is the payload for a provisioning event.
type LiquidityAddedData struct {
	PairKey  string `json:"pair_key"`
	Provider string `json:"provider"`
	Token0   string `json:"token0"`
	Token1   string `json:"token1"`
	Amount0  string `json:"amount0"`
	Amount1  string `json:"amount1"`
	Minted   string `json:"minted"`
}

// LiquidityRemovedData is the payload for a withdrawal event.
type LiquidityRemovedData struct {
	PairKey   string `json:"pair_key"`
	Provider  string `json:"provider"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Recipient string `json:"recipient"`
}

// SwapExecutedData is the payload for a swap event.
type SwapExecutedData struct {
	PairKey   string `json:"pair_key"`
	Caller    string `json:"caller"`
	AssetIn   string `json:"asset_in"`
	AssetOut  string `json:"asset_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Recipient string `json:"recipient"`
}

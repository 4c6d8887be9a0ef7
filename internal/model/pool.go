package model

// Pool is the persisted state record for one canonical asset pair.
// Token0/Token1 follow canonical ordering, not caller-supplied order.
type Pool struct {
	PairKey  string `json:"pair_key"`
	Token0   string `json:"token0"`
	Token1   string `json:"token1"`
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// Position is the persisted liquidity-share record for one holder in one pool.
type Position struct {
	PairKey string `json:"pair_key"`
	Holder  string `json:"holder"`
	Shares  string `json:"shares"`
}

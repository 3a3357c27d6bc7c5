package model

// TickState is the liquidity referencing a single initialized tick.
// Both amounts are base-10 integers; LiquidityNet may be negative.
type TickState struct {
	Tick           int32  `json:"tick"`
	LiquidityGross string `json:"liquidity_gross"`
	LiquidityNet   string `json:"liquidity_net"`
}

// PoolSnapshot is the full set of initialized ticks of a pool after the
// event at (BlockNumber, LogIndex).
type PoolSnapshot struct {
	ChainID     uint64      `json:"chain_id"`
	Pool        string      `json:"pool"`
	TickSpacing int32       `json:"tick_spacing"`
	BlockNumber uint64      `json:"block_number"`
	LogIndex    uint64      `json:"log_index"`
	Ticks       []TickState `json:"ticks"`
}

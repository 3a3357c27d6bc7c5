package model

// LiquidityKind distinguishes liquidity being added to or removed from a range.
type LiquidityKind string

const (
	LiquidityMint LiquidityKind = "mint"
	LiquidityBurn LiquidityKind = "burn"
)

// LiquidityEvent is a position change on [TickLower, TickUpper) of a pool.
type LiquidityEvent struct {
	Kind        LiquidityKind `json:"kind"`
	ChainID     uint64        `json:"chain_id"`
	Pool        string        `json:"pool"`
	Owner       string        `json:"owner"`
	TickLower   int32         `json:"tick_lower"`
	TickUpper   int32         `json:"tick_upper"`
	Amount      string        `json:"amount"`
	TickSpacing int32         `json:"tick_spacing,omitempty"`
	BlockNumber uint64        `json:"block_number"`
	LogIndex    uint64        `json:"log_index"`
}

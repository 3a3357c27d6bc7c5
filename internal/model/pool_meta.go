package model

// PoolMeta captures the pool metadata carried by decoded events.
// Only TickSpacing is needed to build a tick book; the rest is passed through.
type PoolMeta struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

package model

// PositionChange is the part of a Mint or Burn payload that moves tick
// state. Both payloads embed it, so either decodes into it directly.
type PositionChange struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
}

// Event fills the position fields of base and sets its kind.
func (p PositionChange) Event(kind LiquidityKind, base LiquidityEvent) LiquidityEvent {
	base.Kind = kind
	base.Owner = p.Owner
	base.TickLower = p.TickLower
	base.TickUpper = p.TickUpper
	base.Amount = p.Amount
	return base
}

// MintEventData is a decoded Mint payload. Sender paid for the position,
// Owner holds it.
type MintEventData struct {
	Sender string `json:"sender"`
	PositionChange
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// BurnEventData is a decoded Burn payload.
type BurnEventData struct {
	PositionChange
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

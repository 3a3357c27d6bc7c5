package model

import (
	"encoding/json"
	"testing"
)

func TestLogRecordDecodesIndexerLine(t *testing.T) {
	line := `{"chain_id":56,"block_number":36000000,"block_hash":"0xabc123","tx_hash":"0xdef456","tx_index":7,"log_index":12,"address":"0x1111111111111111111111111111111111111111","topics":["0xaaa","0xbbb"],"data":"0xdeadbeef","removed":true,"timestamp":1700000000,"ingested_at":"2024-01-01T00:00:00Z"}`

	var decoded LogRecord
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.ChainID != 56 || decoded.BlockNumber != 36000000 || decoded.LogIndex != 12 {
		t.Fatalf("position mismatch: %+v", decoded)
	}
	if len(decoded.Topics) != 2 || decoded.Topics[0] != "0xaaa" {
		t.Fatalf("topics mismatch: %+v", decoded.Topics)
	}
	if !decoded.Removed {
		t.Fatalf("removed flag lost")
	}
}

func TestPoolSnapshotAmountsAreStrings(t *testing.T) {
	snap := PoolSnapshot{
		ChainID:     56,
		Pool:        "0x1111111111111111111111111111111111111111",
		TickSpacing: 60,
		BlockNumber: 100,
		Ticks: []TickState{
			{Tick: -120, LiquidityGross: "340282366920938463463374607431768211455", LiquidityNet: "5"},
			{Tick: 120, LiquidityGross: "5", LiquidityNet: "-5"},
		},
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	ticks, ok := decoded["ticks"].([]interface{})
	if !ok || len(ticks) != 2 {
		t.Fatalf("ticks missing: %v", decoded["ticks"])
	}
	first := ticks[0].(map[string]interface{})
	if _, ok := first["liquidity_gross"].(string); !ok {
		t.Fatalf("liquidity_gross should be string")
	}
	if _, ok := first["liquidity_net"].(string); !ok {
		t.Fatalf("liquidity_net should be string")
	}
}

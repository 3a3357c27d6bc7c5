package dex

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"tickScope/internal/model"
)

func TestLiquidityDecoderMintBurn(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewLiquidityDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}

	mintLog := buildLogRecord(pool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	})
	if !decoder.CanDecode(mintLog.Topics[0]) {
		t.Fatalf("mint topic not accepted")
	}

	mint, err := decoder.Decode(mintLog)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mint.Kind != model.LiquidityMint || mint.Amount != "5000" {
		t.Fatalf("mint mismatch: %+v", mint)
	}
	if mint.TickLower != -120 || mint.TickUpper != 120 {
		t.Fatalf("mint tick mismatch: %+v", mint)
	}
	if mint.Owner != owner.Hex() || mint.Pool != pool.Hex() {
		t.Fatalf("mint address mismatch: %+v", mint)
	}
	if mint.BlockNumber != 12345 || mint.LogIndex != 1 || mint.ChainID != 56 {
		t.Fatalf("mint position mismatch: %+v", mint)
	}

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}

	burnLog := buildLogRecord(pool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-8388608),
		topicFromInt24(60),
	})

	burn, err := decoder.Decode(burnLog)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	if burn.Kind != model.LiquidityBurn || burn.Amount != "7000" {
		t.Fatalf("burn mismatch: %+v", burn)
	}
	if burn.TickLower != -8388608 || burn.TickUpper != 60 {
		t.Fatalf("burn tick mismatch: %+v", burn)
	}
}

func TestLiquidityDecoderRejects(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewLiquidityDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	swapTopic := common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
	if decoder.CanDecode(swapTopic.Hex()) {
		t.Fatalf("swap topic should not be accepted")
	}

	missingTopic := buildLogRecord(pool, poolABI.Events["Burn"].ID, nil, []common.Hash{topicFromInt24(1)})
	if _, err := decoder.Decode(missingTopic); err == nil {
		t.Fatalf("expected error for missing indexed topics")
	}

	badData := buildLogRecord(pool, poolABI.Events["Burn"].ID, []byte{0x01}, []common.Hash{
		topicFromAddress(pool),
		topicFromInt24(-60),
		topicFromInt24(60),
	})
	if _, err := decoder.Decode(badData); err == nil {
		t.Fatalf("expected error for short data")
	}

	if _, err := NewLiquidityDecoder(DecoderConfig{Topic0Map: map[string]string{"0x01": "swap"}}); err == nil {
		t.Fatalf("expected error for unsupported alias")
	}
}

func TestLiquidityDecoderTopicAlias(t *testing.T) {
	alias := "0x00000000000000000000000000000000000000000000000000000000000000AB"
	decoder, err := NewLiquidityDecoder(DecoderConfig{Topic0Map: map[string]string{alias: " mint "}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode("0x00000000000000000000000000000000000000000000000000000000000000ab") {
		t.Fatalf("alias not accepted")
	}
	if len(decoder.Topics()) != 3 {
		t.Fatalf("topics mismatch: %v", decoder.Topics())
	}
}

func TestFromTypedEvent(t *testing.T) {
	decoded, _ := json.Marshal(model.MintEventData{
		PositionChange: model.PositionChange{
			Owner:     "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			TickLower: -60,
			TickUpper: 60,
			Amount:    "42",
		},
	})
	record := model.TypedEventRecord{
		ChainID:     56,
		BlockNumber: 10,
		LogIndex:    3,
		Address:     "0x9999999999999999999999999999999999999999",
		EventName:   "Mint",
		Decoded:     decoded,
		PoolMeta:    model.PoolMeta{TickSpacing: 60},
	}

	ev, ok, err := FromTypedEvent(record)
	if err != nil || !ok {
		t.Fatalf("from typed event: ok=%v err=%v", ok, err)
	}
	if ev.Kind != model.LiquidityMint || ev.TickSpacing != 60 || ev.Amount != "42" || ev.TickLower != -60 {
		t.Fatalf("event mismatch: %+v", ev)
	}

	record.EventName = "Swap"
	if _, ok, err := FromTypedEvent(record); ok || err != nil {
		t.Fatalf("swap should be skipped: ok=%v err=%v", ok, err)
	}

	record.EventName = "burn"
	record.Decoded = json.RawMessage(`{"tick_lower": "x"}`)
	if _, ok, err := FromTypedEvent(record); !ok || err == nil {
		t.Fatalf("expected decode error: ok=%v err=%v", ok, err)
	}
}

func buildLogRecord(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}

package dex

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"tickScope/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases (forks that rename the events) mapped to "mint" or "burn".
	Topic0Map map[string]string
}

// LiquidityDecoder decodes V3 pool Mint and Burn logs into liquidity events.
type LiquidityDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewLiquidityDecoder builds a decoder for the V3 Mint/Burn events.
func NewLiquidityDecoder(cfg DecoderConfig) (*LiquidityDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := liquidityTopics(poolABI)

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &LiquidityDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// Topics returns every topic0 the decoder accepts, for log filtering.
func (d *LiquidityDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *LiquidityDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a Mint or Burn LogRecord into a LiquidityEvent.
// TickSpacing is left zero; the caller resolves it per pool.
func (d *LiquidityDecoder) Decode(log model.LogRecord) (model.LiquidityEvent, error) {
	if len(log.Topics) == 0 {
		return model.LiquidityEvent{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return model.LiquidityEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return model.LiquidityEvent{}, fmt.Errorf("invalid pool address: %s", log.Address)
	}

	event := d.poolABI.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.LiquidityEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	kind := model.LiquidityBurn
	if name == "Mint" {
		kind = model.LiquidityMint
	}
	amountPos := liquidityEvents[name]
	if want := len(event.Inputs.NonIndexed()); len(values) != want {
		return model.LiquidityEvent{}, fmt.Errorf("unexpected %s values: %d", kind, len(values))
	}

	amount, err := asBigInt(values[amountPos])
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.LiquidityEvent{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.LiquidityEvent{}, err
	}

	return model.LiquidityEvent{
		Kind:        kind,
		ChainID:     log.ChainID,
		Pool:        common.HexToAddress(log.Address).Hex(),
		Owner:       indexed.Owner.Hex(),
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Amount:      amount.String(),
		BlockNumber: log.BlockNumber,
		LogIndex:    log.LogIndex,
	}, nil
}

// FromTypedEvent converts an already decoded Mint/Burn record. ok is false
// for any other event name.
func FromTypedEvent(record model.TypedEventRecord) (ev model.LiquidityEvent, ok bool, err error) {
	ev = model.LiquidityEvent{
		ChainID:     record.ChainID,
		Pool:        record.Address,
		TickSpacing: record.PoolMeta.TickSpacing,
		BlockNumber: record.BlockNumber,
		LogIndex:    record.LogIndex,
	}

	kind := model.LiquidityBurn
	switch normalizeEventName(record.EventName) {
	case "Mint":
		kind = model.LiquidityMint
	case "Burn":
	default:
		return model.LiquidityEvent{}, false, nil
	}

	var change model.PositionChange
	if err := json.Unmarshal(record.Decoded, &change); err != nil {
		return model.LiquidityEvent{}, true, fmt.Errorf("decode %s: %w", kind, err)
	}
	return change.Event(kind, ev), true, nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mint":
		return "Mint"
	case "burn":
		return "Burn"
	default:
		return ""
	}
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	if value == nil {
		return 0, fmt.Errorf("missing int24 value")
	}
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}

package dex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// The V3 pool entries that move or describe tick state. Mint carries the
// sender ahead of the amounts, Burn does not.
const (
	mintEventJSON = `{"type":"event","name":"Mint","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":false},
		{"name":"owner","type":"address","indexed":true},
		{"name":"tickLower","type":"int24","indexed":true},
		{"name":"tickUpper","type":"int24","indexed":true},
		{"name":"amount","type":"uint128","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}]}`

	burnEventJSON = `{"type":"event","name":"Burn","anonymous":false,"inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"tickLower","type":"int24","indexed":true},
		{"name":"tickUpper","type":"int24","indexed":true},
		{"name":"amount","type":"uint128","indexed":false},
		{"name":"amount0","type":"uint256","indexed":false},
		{"name":"amount1","type":"uint256","indexed":false}]}`

	tickSpacingJSON = `{"type":"function","name":"tickSpacing","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"int24"}]}`
)

// liquidityEvents maps each event the decoder handles to the position of
// its amount among the non-indexed values.
var liquidityEvents = map[string]int{
	"Mint": 1,
	"Burn": 0,
}

var (
	v3PoolABI     abi.ABI
	v3PoolABIOnce sync.Once
	v3PoolABIErr  error
)

// V3PoolABI returns the parsed V3 pool fragment: Mint, Burn and tickSpacing().
func V3PoolABI() (abi.ABI, error) {
	v3PoolABIOnce.Do(func() {
		v3PoolABI, v3PoolABIErr = parsePoolABI(mintEventJSON, burnEventJSON, tickSpacingJSON)
	})
	return v3PoolABI, v3PoolABIErr
}

func parsePoolABI(entries ...string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader("[" + strings.Join(entries, ",") + "]"))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse pool abi: %w", err)
	}
	for name, amountPos := range liquidityEvents {
		event, ok := parsed.Events[name]
		if !ok {
			return abi.ABI{}, fmt.Errorf("pool abi missing event %s", name)
		}
		if got := len(indexedArguments(event.Inputs)); got != 3 {
			return abi.ABI{}, fmt.Errorf("pool abi %s: %d indexed inputs, want 3", name, got)
		}
		if nonIndexed := event.Inputs.NonIndexed(); len(nonIndexed) <= amountPos || nonIndexed[amountPos].Name != "amount" {
			return abi.ABI{}, fmt.Errorf("pool abi %s: amount not at position %d", name, amountPos)
		}
	}
	if _, ok := parsed.Methods["tickSpacing"]; !ok {
		return abi.ABI{}, fmt.Errorf("pool abi missing method tickSpacing")
	}
	return parsed, nil
}

// liquidityTopics maps the lowercase topic0 of each liquidity event to its name.
func liquidityTopics(poolABI abi.ABI) map[string]string {
	out := make(map[string]string, len(liquidityEvents))
	for name := range liquidityEvents {
		out[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}
	return out
}

// EventTopic returns the topic0 of the named liquidity event.
func EventTopic(name string) (common.Hash, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return common.Hash{}, err
	}
	if _, ok := liquidityEvents[name]; !ok {
		return common.Hash{}, fmt.Errorf("not a liquidity event: %s", name)
	}
	return poolABI.Events[name].ID, nil
}

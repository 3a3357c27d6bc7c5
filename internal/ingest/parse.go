package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	seen := make(map[common.Address]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addr := common.HexToAddress(input)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseSpacingOverrides converts pool=spacing pairs into typed overrides.
func ParseSpacingOverrides(inputs map[string]string) (map[string]int32, error) {
	out := make(map[string]int32, len(inputs))
	for pool, raw := range inputs {
		pool = strings.TrimSpace(pool)
		if !common.IsHexAddress(pool) {
			return nil, fmt.Errorf("invalid pool address: %s", pool)
		}
		spacing, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid tick spacing for %s: %w", pool, err)
		}
		if spacing <= 0 {
			return nil, fmt.Errorf("tick spacing for %s must be positive", pool)
		}
		out[common.HexToAddress(pool).Hex()] = int32(spacing)
	}
	return out, nil
}

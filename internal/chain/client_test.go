package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLogQuery(t *testing.T) {
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	mint := common.HexToHash("0x01")

	query, err := logQuery(10, 20, []common.Address{pool}, []common.Hash{mint})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query.FromBlock.Cmp(big.NewInt(10)) != 0 || query.ToBlock.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("range mismatch: %v-%v", query.FromBlock, query.ToBlock)
	}
	if len(query.Topics) != 1 || len(query.Topics[0]) != 1 || query.Topics[0][0] != mint {
		t.Fatalf("topics mismatch: %v", query.Topics)
	}

	query, err = logQuery(5, 5, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query.Topics != nil {
		t.Fatalf("expected no topic filter, got %v", query.Topics)
	}

	if _, err := logQuery(21, 20, nil, nil); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestFilterLogsRejectsInvertedRangeBeforeCall(t *testing.T) {
	// no RPC behind the client: the range check must fail first
	client := &Client{}
	if _, err := client.FilterLogs(context.Background(), 9, 8, nil, nil); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

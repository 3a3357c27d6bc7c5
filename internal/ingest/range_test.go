package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}, got)
}

func TestSplitRangeUneven(t *testing.T) {
	got, err := SplitRange(5, 11, 4)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{{From: 5, To: 8}, {From: 9, To: 11}}, got)
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	require.NoError(t, err)
	require.Equal(t, []BlockRange{{From: 5, To: 5}}, got)
}

func TestSplitRangeInvalid(t *testing.T) {
	_, err := SplitRange(10, 9, 1)
	require.Error(t, err, "inverted range")
	_, err = SplitRange(1, 10, 0)
	require.Error(t, err, "zero batch size")
}

func TestSafeHead(t *testing.T) {
	require.Equal(t, uint64(88), SafeHead(100, 12))
	require.Equal(t, uint64(0), SafeHead(5, 12), "clamps to zero")
}

func TestParseSpacingOverrides(t *testing.T) {
	got, err := ParseSpacingOverrides(map[string]string{"0x1111111111111111111111111111111111111111": " 60 "})
	require.NoError(t, err)
	require.Equal(t, int32(60), got["0x1111111111111111111111111111111111111111"])

	_, err = ParseSpacingOverrides(map[string]string{"0x1111111111111111111111111111111111111111": "0"})
	require.Error(t, err, "zero spacing")
	_, err = ParseSpacingOverrides(map[string]string{"pool": "10"})
	require.Error(t, err, "invalid address")
}

func TestParseAddressesDedupes(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x1111111111111111111111111111111111111111", "0x1111111111111111111111111111111111111111", ""})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = ParseAddresses([]string{"0x12"})
	require.Error(t, err)
}

package rpc

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseHexUint64 converts a hex quantity string (with or without the "0x"
// prefix) to uint64. Block numbers, timestamps and chain ids all fit here.
//
// Examples:
//   - "0x172721e" -> 24277534
//   - "0x0" -> 0
//   - "" -> 0 (absent field treated as zero)
func ParseHexUint64(hex string) (uint64, error) {
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return 0, nil
	}

	val := new(big.Int)
	_, ok := val.SetString(hex, 16)
	if !ok || !val.IsUint64() {
		return 0, fmt.Errorf("invalid hex: %s", hex)
	}
	return val.Uint64(), nil
}

// ParseHexBigInt converts a hex quantity string to *big.Int for values that
// may exceed 64 bits, such as wei amounts.
func ParseHexBigInt(hex string) (*big.Int, error) {
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" {
		return big.NewInt(0), nil
	}

	val := new(big.Int)
	if _, ok := val.SetString(hex, 16); !ok {
		return nil, fmt.Errorf("invalid hex: %s", hex)
	}
	return val, nil
}

// hexBigOrZero parses like ParseHexBigInt but folds malformed input to zero,
// the same treatment absent fields get.
func hexBigOrZero(hex string) *big.Int {
	val, err := ParseHexBigInt(hex)
	if err != nil {
		return big.NewInt(0)
	}
	return val
}

// Uint64ToHex converts a block number to the 0x-prefixed hex form the RPC
// methods expect.
func Uint64ToHex(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}

// WeiToGwei converts a wei amount to gwei (1 gwei = 10^9 wei). A nil amount
// converts to zero.
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}

	gwei, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		big.NewFloat(1e9),
	).Float64()
	return gwei
}

// FormatNumber adds thousand separators (commas) for terminal display.
//
// Examples:
//   - 24277510 -> "24,277,510"
//   - 123 -> "123"
func FormatNumber(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

package utils

import (
	"math/big"
	"regexp"
	"strings"
)

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsHexAddress reports whether s looks like a 20-byte hex address.
func IsHexAddress(s string) bool {
	return hexAddressRe.MatchString(s)
}

// NormalizeAddress lowercases hex-looking addresses so they can be used as
// unique map keys. Anything else (labels, synthetic accounts like the fee
// sink) passes through unchanged.
func NormalizeAddress(s string) string {
	if IsHexAddress(s) {
		return strings.ToLower(s)
	}
	return s
}

// HexQuantity converts an 0x-prefixed hex quantity (the JSON-RPC number
// encoding) to its decimal string form. Non-hex input passes through
// unchanged so already-decimal values survive.
func HexQuantity(s string) string {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return s
	}
	n, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return s
	}
	return n.String()
}

// Selector extracts the 4-byte function selector from transaction call data,
// normalized to lowercase "0x" form. Returns "" for plain value transfers
// (empty or too-short input).
func Selector(inputData string) string {
	data := strings.TrimPrefix(strings.ToLower(inputData), "0x")
	if len(data) < 8 {
		return ""
	}
	return "0x" + data[:8]
}

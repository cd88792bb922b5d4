// Package tokens classifies token standards and enriches raw on-chain
// balances into display-ready records.
package tokens

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DecodeHexString decodes a hex-encoded byte string into UTF-8 text.
// The decode is round-trip safe: if the input is not valid hex, or the
// decoded bytes are not printable text, the original string is returned
// unchanged so nothing is ever lost.
func DecodeHexString(s string) string {
	if s == "" {
		return s
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return s
	}
	decoded := string(b)
	if !utf8.ValidString(decoded) {
		return s
	}
	for _, r := range decoded {
		if !unicode.IsPrint(r) {
			return s
		}
	}
	return decoded
}

// FormatTokenAmount inserts a decimal point `decimals` digits from the
// right of a base-10 integer string. Pure string manipulation: amounts
// routinely exceed 2^53, so the value is never parsed into a float.
// Trailing zero fractional digits are trimmed for display; the caller
// keeps the exact integer string.
func FormatTokenAmount(raw string, decimals int) string {
	if raw == "" {
		return "0"
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return raw
		}
	}

	// Normalize leading zeros first.
	raw = strings.TrimLeft(raw, "0")
	if raw == "" {
		raw = "0"
	}

	if decimals <= 0 {
		return raw
	}

	if len(raw) <= decimals {
		raw = strings.Repeat("0", decimals-len(raw)+1) + raw
	}

	intPart := raw[:len(raw)-decimals]
	fracPart := strings.TrimRight(raw[len(raw)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// TruncateID shortens a token id for placeholder names: first six and
// last four characters around an ellipsis.
func TruncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "..." + id[len(id)-4:]
}

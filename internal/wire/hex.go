package wire

import "encoding/hex"

// HexEncode lowercase-encodes b with no separator.
func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// HexDecode case-insensitively decodes s. Odd-length input is treated
// as invalid and returns an empty (non-nil) slice, matching spec.md's
// documented behavior rather than encoding/hex's error-on-odd-length
// default.
func HexDecode(s string) []byte {
	if len(s)%2 != 0 {
		return []byte{}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return []byte{}
	}
	return b
}

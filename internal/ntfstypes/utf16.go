package ntfstypes

import (
	"encoding/binary"
	"unicode/utf16"
)

// DecodeUTF16LE converts a UTF-16LE byte slice (as stored in FILE_NAME
// attributes and attribute names) to a UTF-8 string. This is the single
// conversion function used throughout the scanner, per spec.md §9's
// "manual UTF-16/UTF-8 conversion, per-call allocations" re-architecture
// note: one pair, used everywhere, rather than ad hoc conversions scattered
// across callers.
func DecodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}

// EncodeUTF16LE converts a UTF-8 string to UTF-16LE bytes. Used only by
// tests that need to synthesize FILE_NAME attribute payloads.
func EncodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:i*2+2], u)
	}
	return b
}

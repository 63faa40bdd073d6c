package sourcemap

import "strings"

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift
	vlqBaseMask        = vlqBase - 1
	vlqContinuationBit = vlqBase
)

var base64Lookup = func() [128]int8 {
	var table [128]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range base64Chars {
		table[c] = int8(i)
	}
	return table
}()

// encodeVLQ appends the base64 VLQ encoding of value to b.
func encodeVLQ(b *strings.Builder, value int) {
	vlq := value << 1
	if value < 0 {
		vlq = (-value << 1) | 1
	}
	for {
		digit := vlq & vlqBaseMask
		vlq >>= vlqBaseShift
		if vlq > 0 {
			digit |= vlqContinuationBit
		}
		b.WriteByte(base64Chars[digit])
		if vlq == 0 {
			return
		}
	}
}

// decodeVLQ reads one VLQ value from s starting at pos. It returns the
// value and the next position, or ok=false for malformed input.
func decodeVLQ(s string, pos int) (value, next int, ok bool) {
	shift := 0
	result := 0
	for {
		if pos >= len(s) {
			return 0, 0, false
		}
		c := s[pos]
		if c >= 128 || base64Lookup[c] < 0 {
			return 0, 0, false
		}
		digit := int(base64Lookup[c])
		pos++
		result += (digit & vlqBaseMask) << shift
		if digit&vlqContinuationBit == 0 {
			break
		}
		shift += vlqBaseShift
	}
	if result&1 != 0 {
		return -(result >> 1), pos, true
	}
	return result >> 1, pos, true
}

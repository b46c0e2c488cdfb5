package guid

import "strconv"

// Alphabet is the 85-symbol set used by packed GUIDs, ordered by digit value.
const Alphabet = "!$%&'()*+,-.0123456789=?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[]^_`abcdefghijklmnopqrstuvwxyz{}~"

const invalidSymbol = 0xff

// decodeTable maps an ASCII ordinal to its digit value, or invalidSymbol.
var decodeTable = func() [128]byte {
	var t [128]byte
	for i := range t {
		t[i] = invalidSymbol
	}
	for v := 0; v < len(Alphabet); v++ {
		t[Alphabet[v]] = byte(v)
	}
	return t
}()

// DecodePacked converts a 20-character packed GUID to its expanded form.
//
// The input is four groups of five little-endian base-85 digits. Each group
// yields 32 bits, written as 8 hex digits; the resulting 32 digits are then
// re-sliced into GUID field order. A group whose value does not fit in 32
// bits is rejected.
func DecodePacked(packed string) (string, bool) {
	if len(packed) != PackedLen {
		return "", false
	}

	var hex [32]byte
	for g := 0; g < 4; g++ {
		var total, weight uint64 = 0, 1
		for i := 0; i < 5; i++ {
			c := packed[g*5+i]
			if c >= 128 || decodeTable[c] == invalidSymbol {
				return "", false
			}
			total += uint64(decodeTable[c]) * weight
			weight *= 85
		}
		if total > 0xFFFFFFFF {
			return "", false
		}
		writeHex8(hex[g*8:g*8+8], total)
	}

	d := hex[:]
	var out [ExpandedLen]byte
	n := 0
	put := func(b ...byte) {
		n += copy(out[n:], b)
	}

	put('{')
	put(d[0:8]...)
	put('-')
	put(d[12:16]...)
	put('-')
	put(d[8:12]...)
	put('-')
	put(d[22:24]...)
	put(d[20:22]...)
	put('-')
	put(d[18:20]...)
	put(d[16:18]...)
	put(d[30:32]...)
	put(d[28:30]...)
	put(d[26:28]...)
	put(d[24:26]...)
	put('}')

	return string(out[:]), true
}

// writeHex8 renders v as exactly 8 uppercase hex digits.
func writeHex8(dst []byte, v uint64) {
	s := strconv.FormatUint(v, 16)
	for i := range dst {
		dst[i] = '0'
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' {
			c -= 'a' - 'A'
		}
		dst[8-len(s)+i] = c
	}
}

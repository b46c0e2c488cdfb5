// pkg/guid/guid.go - conversions between the three textual GUID forms used by Windows Installer.
//
//	Expanded    {90160000-008C-0000-0000-0000000FF1CE}   display form, 38 chars
//	Compressed  00006109C80000000000000000F01FEC         registry key names, 32 chars
//	Packed      zn=BV`$!!!!!!!!MKKSk                     component descriptor lists, 20 chars
//
// All functions are pure and report malformed input with ok == false.

package guid

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ExpandedLen   = 38
	CompressedLen = 32
	PackedLen     = 20
)

// hyphen positions in the expanded form
var dashes = [...]int{9, 14, 19, 24}

// Expand converts a compressed GUID to its expanded form.
//
// The first three groups (8, 4 and 4 characters) are reversed character by
// character. The remaining eight bytes keep their order but the two nibbles
// of each byte are swapped.
func Expand(compressed string) (string, bool) {
	if len(compressed) != CompressedLen || !isHex(compressed) {
		return "", false
	}

	var out [ExpandedLen]byte
	out[0] = '{'
	for _, p := range dashes {
		out[p] = '-'
	}
	out[37] = '}'

	reverseInto(out[1:9], compressed[0:8])
	reverseInto(out[10:14], compressed[8:12])
	reverseInto(out[15:19], compressed[12:16])
	swapPairsInto(out[20:24], compressed[16:20])
	swapPairsInto(out[25:37], compressed[20:32])

	return strings.ToUpper(string(out[:])), true
}

// Compress converts an expanded GUID to the compressed registry form.
func Compress(expanded string) (string, bool) {
	if !IsExpanded(expanded) {
		return "", false
	}

	var out [CompressedLen]byte
	reverseInto(out[0:8], expanded[1:9])
	reverseInto(out[8:12], expanded[10:14])
	reverseInto(out[12:16], expanded[15:19])
	swapPairsInto(out[16:20], expanded[20:24])
	swapPairsInto(out[20:32], expanded[25:37])

	return strings.ToUpper(string(out[:])), true
}

// IsExpanded reports whether s has the braced, hyphenated 38-character layout with hex digits elsewhere.
func IsExpanded(s string) bool {
	if len(s) != ExpandedLen || s[0] != '{' || s[37] != '}' {
		return false
	}
	for _, p := range dashes {
		if s[p] != '-' {
			return false
		}
	}
	return isHex(s[1:9]) && isHex(s[10:14]) && isHex(s[15:19]) && isHex(s[20:24]) && isHex(s[25:37])
}

// IsCompressed reports whether s is 32 hex characters.
func IsCompressed(s string) bool {
	return len(s) == CompressedLen && isHex(s)
}

func reverseInto(dst []byte, src string) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}

func swapPairsInto(dst []byte, src string) {
	for i := 0; i+1 < len(src); i += 2 {
		dst[i] = src[i+1]
		dst[i+1] = src[i]
	}
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ErrFormat is returned by Normalize for input that matches none of the three forms.
var ErrFormat = errors.New("guid: unrecognized format")

// Normalize accepts any of the expanded, compressed or packed forms and returns the uppercase expanded form.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case ExpandedLen:
		if IsExpanded(s) {
			return strings.ToUpper(s), nil
		}
	case CompressedLen:
		if out, ok := Expand(s); ok {
			return out, nil
		}
	case PackedLen:
		if out, ok := DecodePacked(s); ok {
			return out, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, s)
}

package winsys

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// UTF16Trim cuts a fixed-width buffer at its first NUL. A buffer without a
// terminator is returned whole.
func UTF16Trim(buf []uint16) []uint16 {
	for i, v := range buf {
		if v == 0 {
			return buf[:i]
		}
	}
	return buf
}

// UTF16ToString decodes a fixed-width, possibly NUL-terminated buffer.
func UTF16ToString(buf []uint16) string {
	return string(utf16.Decode(UTF16Trim(buf)))
}

// EncodeUTF16Z returns the little-endian wide string of s followed by one
// 16-bit NUL, the layout LoadLibraryW expects.
func EncodeUTF16Z(s string) ([]byte, error) {
	if strings.IndexByte(s, 0) != -1 {
		return nil, errors.Errorf("string %q contains a NUL", s)
	}
	wide := append(utf16.Encode([]rune(s)), 0)
	out := make([]byte, len(wide)*2)
	for i, w := range wide {
		binary.LittleEndian.PutUint16(out[i*2:], w)
	}
	return out, nil
}

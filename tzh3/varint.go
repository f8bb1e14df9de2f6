package tzh3

import (
	"encoding/binary"
)

func appendUvarint(dst []byte, x uint64) []byte {
	return binary.AppendUvarint(dst, x)
}

// readUvarint decodes an unsigned varint starting at off and returns the
// value along with the offset of the following byte. Bits of a tenth byte
// beyond 64 are dropped; only a tenth continuation byte is an overflow.
func readUvarint(buf []byte, off int) (uint64, int, error) {
	if off < 0 || off > len(buf) {
		return 0, off, &FormatError{Reason: "truncated varint", Offset: off}
	}
	var v uint64
	var shift uint
	for i := off; i < len(buf); i++ {
		b := buf[i]
		if b < 0x80 {
			return v | uint64(b)<<shift, i + 1, nil
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
		if shift > 63 {
			return 0, off, &FormatError{Reason: "varint overflow", Offset: off}
		}
	}
	return 0, off, &FormatError{Reason: "truncated varint", Offset: off}
}

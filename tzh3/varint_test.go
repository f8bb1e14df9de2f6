package tzh3

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUvarintRoundtrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16383, 16384, 1<<32 - 1, 1 << 35, 0x8075fffffffffff, math.MaxUint64 - 1, math.MaxUint64}
	for _, v := range values {
		b := appendUvarint(nil, v)
		result, off, err := readUvarint(b, 0)
		assert.Nil(t, err)
		assert.Equal(t, v, result)
		assert.Equal(t, len(b), off)
	}
}

func TestUvarintSequence(t *testing.T) {
	b := appendUvarint(nil, 5)
	b = appendUvarint(b, 1000)
	b = appendUvarint(b, 0)

	v, off, err := readUvarint(b, 0)
	assert.Nil(t, err)
	assert.Equal(t, uint64(5), v)
	assert.Equal(t, 1, off)

	v, off, err = readUvarint(b, off)
	assert.Nil(t, err)
	assert.Equal(t, uint64(1000), v)
	assert.Equal(t, 3, off)

	v, off, err = readUvarint(b, off)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, 4, off)
}

func TestUvarintTruncated(t *testing.T) {
	_, _, err := readUvarint([]byte{0x80, 0x80}, 0)
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "truncated varint", fe.Reason)

	_, _, err = readUvarint([]byte{0x01}, 1)
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "truncated varint", fe.Reason)
	assert.Equal(t, 1, fe.Offset)
}

func TestUvarintOverflow(t *testing.T) {
	b := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	_, _, err := readUvarint(b, 0)
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "varint overflow", fe.Reason)
}

func TestUvarintTenthByte(t *testing.T) {
	b := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	v, off, err := readUvarint(b, 0)
	assert.Nil(t, err)
	assert.Equal(t, uint64(1)<<63, v)
	assert.Equal(t, 10, off)

	// bits past 64 fall off the accumulator
	b[9] = 0x02
	v, off, err = readUvarint(b, 0)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, 10, off)

	b[9] = 0x80
	_, _, err = readUvarint(append(b, 0x01), 0)
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "varint overflow", fe.Reason)
}

package tzh3

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixtureIndex() *Index {
	return &Index{
		BaseResolution: 0,
		MaxResolution:  9,
		Zones:          []string{"Asia/Tokyo", "Australia/Sydney", "America/New_York"},
		Cells:          []Cell{0x80bffffffffffff, 0x842f5a3ffffffff, 0x892a1072893ffff},
		ZoneIDs:        []uint32{1, 0, 2},
	}
}

func assertFormatError(t *testing.T, err error, reason string) *FormatError {
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a FormatError, got %v", err)
	}
	assert.Contains(t, fe.Reason, reason)
	return fe
}

func TestEncodeDecode(t *testing.T) {
	ix := fixtureIndex()
	b, err := Encode(ix, false)
	assert.Nil(t, err)
	assert.Equal(t, []byte("TZH3"), b[0:4])
	assert.Equal(t, byte(1), b[4])
	assert.Equal(t, byte(0), b[5])
	assert.Equal(t, byte(9), b[6])

	result, err := Decode(b)
	assert.Nil(t, err)
	assert.Equal(t, ix, result)
}

func TestEncodeDecodeGzip(t *testing.T) {
	ix := fixtureIndex()
	b, err := Encode(ix, true)
	assert.Nil(t, err)
	assert.True(t, isGzipped(b))

	result, err := Decode(b)
	assert.Nil(t, err)
	assert.Equal(t, ix, result)
}

func TestEncodeLayout(t *testing.T) {
	ix := &Index{
		BaseResolution: 0,
		MaxResolution:  0,
		Zones:          []string{"UTC"},
		Cells:          []Cell{0x8075fffffffffff},
		ZoneIDs:        []uint32{0},
	}
	b, err := Encode(ix, false)
	assert.Nil(t, err)
	expected := []byte{'T', 'Z', 'H', '3', 1, 0, 0, 1, 3, 'U', 'T', 'C', 1}
	expected = appendUvarint(expected, 0x8075fffffffffff)
	expected = append(expected, 0)
	assert.Equal(t, expected, b)
}

func TestEncodeRejects(t *testing.T) {
	ix := fixtureIndex()
	ix.Cells[0], ix.Cells[1] = ix.Cells[1], ix.Cells[0]
	_, err := Encode(ix, false)
	assert.NotNil(t, err)

	ix = fixtureIndex()
	ix.ZoneIDs[0] = 3
	_, err = Encode(ix, false)
	assert.NotNil(t, err)

	ix = fixtureIndex()
	ix.MaxResolution = 16
	_, err = Encode(ix, false)
	assert.NotNil(t, err)

	ix = fixtureIndex()
	ix.ZoneIDs = ix.ZoneIDs[:2]
	_, err = Encode(ix, false)
	assert.NotNil(t, err)
}

func TestDecodeEmpty(t *testing.T) {
	b := []byte{'T', 'Z', 'H', '3', 1, 2, 7, 0, 0}
	ix, err := Decode(b)
	assert.Nil(t, err)
	assert.Equal(t, 2, ix.BaseResolution)
	assert.Equal(t, 7, ix.MaxResolution)
	assert.Empty(t, ix.Zones)
	assert.Empty(t, ix.Cells)
	_, ok := ix.Lookup(0, 0)
	assert.False(t, ok)
}

func TestDecodeBadMagic(t *testing.T) {
	b, _ := Encode(fixtureIndex(), false)
	b[3] = '4'
	ix, err := Decode(b)
	assert.Nil(t, ix)
	assertFormatError(t, err, "magic")
}

func TestDecodeBadVersion(t *testing.T) {
	b, _ := Encode(fixtureIndex(), false)
	b[4] = 2
	_, err := Decode(b)
	fe := assertFormatError(t, err, "unsupported version 2")
	assert.Equal(t, 4, fe.Offset)
}

func TestDecodeResolutionOutOfRange(t *testing.T) {
	_, err := Decode([]byte{'T', 'Z', 'H', '3', 1, 0, 16, 0, 0})
	assertFormatError(t, err, "resolution out of range")

	_, err = Decode([]byte{'T', 'Z', 'H', '3', 1, 5, 4, 0, 0})
	assertFormatError(t, err, "resolution out of range")
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{'T', 'Z'})
	assertFormatError(t, err, "truncated header")

	_, err = Decode([]byte{'T', 'Z', 'H', '3', 1})
	assertFormatError(t, err, "truncated header")

	_, err = Decode(nil)
	assertFormatError(t, err, "truncated header")
}

func TestDecodeTruncatedVarint(t *testing.T) {
	_, err := Decode([]byte{'T', 'Z', 'H', '3', 1, 0, 0, 1, 0x80})
	fe := assertFormatError(t, err, "truncated varint")
	assert.Equal(t, 8, fe.Offset)
}

func TestDecodeTruncatedTables(t *testing.T) {
	b, _ := Encode(fixtureIndex(), false)
	for i := HeaderLenBytes; i < len(b); i++ {
		ix, err := Decode(b[:i])
		assert.Nil(t, ix)
		var fe *FormatError
		assert.True(t, errors.As(err, &fe), "cut at %d", i)
	}

	_, err := Decode([]byte{'T', 'Z', 'H', '3', 1, 0, 0, 1, 5, 'U', 'T'})
	assertFormatError(t, err, "truncated zone name")

	_, err = Decode([]byte{'T', 'Z', 'H', '3', 1, 0, 0, 0x7f})
	assertFormatError(t, err, "truncated zone table")

	_, err = Decode([]byte{'T', 'Z', 'H', '3', 1, 0, 0, 0, 0x7f, 1, 0})
	assertFormatError(t, err, "truncated cell table")
}

func TestDecodeZoneIDOutOfRange(t *testing.T) {
	b := []byte{'T', 'Z', 'H', '3', 1, 0, 0, 1, 3, 'U', 'T', 'C', 1}
	b = appendUvarint(b, 0x8075fffffffffff)
	b = append(b, 1)
	_, err := Decode(b)
	assertFormatError(t, err, "zone id 1 out of range")
}

func TestDecodeNotAscending(t *testing.T) {
	b := []byte{'T', 'Z', 'H', '3', 1, 0, 0, 1, 3, 'U', 'T', 'C', 2}
	b = appendUvarint(b, 0x8075fffffffffff)
	b = append(b, 0)
	b = append(b, 0, 0)
	_, err := Decode(b)
	assertFormatError(t, err, "cells not ascending")

	b = []byte{'T', 'Z', 'H', '3', 1, 0, 0, 1, 3, 'U', 'T', 'C', 2}
	b = appendUvarint(b, 0x8075fffffffffff)
	b = append(b, 0)
	b = appendUvarint(b, 0xffffffffffffffff)
	b = append(b, 0)
	_, err = Decode(b)
	assertFormatError(t, err, "cells not ascending")
}

func TestDecodeCorruptGzip(t *testing.T) {
	b, _ := Encode(fixtureIndex(), true)
	_, err := Decode(b[:len(b)/2])
	assertFormatError(t, err, "gzip")
}

func TestReadHeader(t *testing.T) {
	for _, compress := range []bool{false, true} {
		b, _ := Encode(fixtureIndex(), compress)
		header, err := ReadHeader(b)
		assert.Nil(t, err)
		assert.Equal(t, Header{Version: 1, BaseResolution: 0, MaxResolution: 9}, header)
	}
}

package tzh3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// HeaderLenBytes is the fixed-size binary header size.
const HeaderLenBytes = 7

// FormatVersion is the only index version this package reads and writes.
const FormatVersion = 1

const magic = "TZH3"

// Header is the fixed prefix of a TZH3 index.
type Header struct {
	Version        uint8
	BaseResolution uint8
	MaxResolution  uint8
}

func isGzipped(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("corrupt gzip stream: %v", err)}
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("corrupt gzip stream: %v", err)}
	}
	return b, nil
}

func serializeHeader(header Header) []byte {
	b := make([]byte, HeaderLenBytes)
	copy(b[0:4], magic)
	b[4] = header.Version
	b[5] = header.BaseResolution
	b[6] = header.MaxResolution
	return b
}

func deserializeHeader(d []byte) (Header, error) {
	h := Header{}
	if len(d) < len(magic) {
		return h, &FormatError{Reason: "truncated header", Offset: len(d)}
	}
	if string(d[0:4]) != magic {
		return h, &FormatError{Reason: fmt.Sprintf("bad magic %q, confirm this is a TZH3 index", d[0:4])}
	}
	if len(d) < HeaderLenBytes {
		return h, &FormatError{Reason: "truncated header", Offset: len(d)}
	}
	if d[4] != FormatVersion {
		return h, &FormatError{Reason: fmt.Sprintf("unsupported version %d, only version %d is supported", d[4], FormatVersion), Offset: 4}
	}
	h.Version = d[4]
	h.BaseResolution = d[5]
	h.MaxResolution = d[6]
	if h.MaxResolution > MaxResolution || h.BaseResolution > h.MaxResolution {
		return h, &FormatError{Reason: fmt.Sprintf("resolution out of range: base %d, max %d", h.BaseResolution, h.MaxResolution), Offset: 5}
	}
	return h, nil
}

// ReadHeader parses just the header of a possibly gzipped index.
func ReadHeader(data []byte) (Header, error) {
	if isGzipped(data) {
		var err error
		data, err = gunzip(data)
		if err != nil {
			return Header{}, err
		}
	}
	return deserializeHeader(data)
}

// Decode parses a TZH3 index, gzip wrapped or not. On failure the error is
// a *FormatError and no Index is returned.
func Decode(data []byte) (*Index, error) {
	if isGzipped(data) {
		var err error
		data, err = gunzip(data)
		if err != nil {
			return nil, err
		}
	}

	header, err := deserializeHeader(data)
	if err != nil {
		return nil, err
	}

	off := HeaderLenBytes
	numZones, off, err := readUvarint(data, off)
	if err != nil {
		return nil, err
	}
	// every zone takes at least its length byte
	if numZones > uint64(len(data)-off) {
		return nil, &FormatError{Reason: fmt.Sprintf("truncated zone table, %d zones declared", numZones), Offset: off}
	}

	zones := make([]string, 0, numZones)
	for i := uint64(0); i < numZones; i++ {
		var n uint64
		var next int
		n, next, err = readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		if n > uint64(len(data)-next) {
			return nil, &FormatError{Reason: "truncated zone name", Offset: next}
		}
		zones = append(zones, string(data[next:next+int(n)]))
		off = next + int(n)
	}

	numEntries, off, err := readUvarint(data, off)
	if err != nil {
		return nil, err
	}
	// every entry takes at least two bytes
	if numEntries > uint64(len(data)-off)/2 {
		return nil, &FormatError{Reason: fmt.Sprintf("truncated cell table, %d entries declared", numEntries), Offset: off}
	}

	cells := make([]Cell, 0, numEntries)
	zoneIDs := make([]uint32, 0, numEntries)

	lastID := uint64(0)
	for i := uint64(0); i < numEntries; i++ {
		entryOffset := off
		var delta, zoneID uint64
		delta, off, err = readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		zoneID, off, err = readUvarint(data, off)
		if err != nil {
			return nil, err
		}
		if zoneID >= uint64(len(zones)) {
			return nil, &FormatError{Reason: fmt.Sprintf("zone id %d out of range, %d zones", zoneID, len(zones)), Offset: entryOffset}
		}
		if (i > 0 && delta == 0) || lastID+delta < lastID {
			return nil, &FormatError{Reason: "cells not ascending", Offset: entryOffset}
		}
		lastID += delta
		cells = append(cells, Cell(lastID))
		zoneIDs = append(zoneIDs, uint32(zoneID))
	}

	return &Index{
		BaseResolution: int(header.BaseResolution),
		MaxResolution:  int(header.MaxResolution),
		Zones:          zones,
		Cells:          cells,
		ZoneIDs:        zoneIDs,
	}, nil
}

// Encode serializes an index, optionally gzip wrapped.
func Encode(ix *Index, compress bool) ([]byte, error) {
	if ix.BaseResolution < 0 || ix.MaxResolution > MaxResolution || ix.BaseResolution > ix.MaxResolution {
		return nil, fmt.Errorf("resolution out of range: base %d, max %d", ix.BaseResolution, ix.MaxResolution)
	}
	if len(ix.Cells) != len(ix.ZoneIDs) {
		return nil, fmt.Errorf("%d cells but %d zone ids", len(ix.Cells), len(ix.ZoneIDs))
	}

	b := serializeHeader(Header{
		Version:        FormatVersion,
		BaseResolution: uint8(ix.BaseResolution),
		MaxResolution:  uint8(ix.MaxResolution),
	})

	b = appendUvarint(b, uint64(len(ix.Zones)))
	for _, z := range ix.Zones {
		b = appendUvarint(b, uint64(len(z)))
		b = append(b, z...)
	}

	b = appendUvarint(b, uint64(len(ix.Cells)))
	lastID := uint64(0)
	for i, c := range ix.Cells {
		if i > 0 && uint64(c) <= lastID {
			return nil, fmt.Errorf("cell %s at position %d is not ascending", c, i)
		}
		if int(ix.ZoneIDs[i]) >= len(ix.Zones) {
			return nil, fmt.Errorf("zone id %d out of range", ix.ZoneIDs[i])
		}
		b = appendUvarint(b, uint64(c)-lastID)
		b = appendUvarint(b, uint64(ix.ZoneIDs[i]))
		lastID = uint64(c)
	}

	if !compress {
		return b, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

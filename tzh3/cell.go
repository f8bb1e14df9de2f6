package tzh3

import (
	"fmt"
	"strconv"
)

// MaxResolution is the finest grid resolution a cell can carry.
const MaxResolution = 15

// Cell is a 64-bit hierarchical grid cell identifier in the H3 layout:
// one reserved bit, a 4-bit mode, a 4-bit resolution, a 7-bit base cell
// and fifteen 3-bit digits, one per resolution 1..15. Digits deeper than
// the cell's resolution hold 7. The zero Cell is the invalid sentinel.
type Cell uint64

const (
	cellMode = 1

	modeOffset     = 59
	resOffset      = 52
	baseCellOffset = 45

	modeMask     = uint64(15) << modeOffset
	resMask      = uint64(15) << resOffset
	baseCellMask = uint64(127) << baseCellOffset

	digitBits = 3
	digitMask = uint64(7)

	// all digits set to 7, every other field zero
	cellInit = uint64(0x00001fffffffffff)

	numBaseCells = 122
)

// child digits of the aperture-7 subdivision
const (
	centerDigit  = 0
	kAxesDigit   = 1
	jAxesDigit   = 2
	jkAxesDigit  = 3
	iAxesDigit   = 4
	ikAxesDigit  = 5
	ijAxesDigit  = 6
	invalidDigit = 7
)

var rotate60ccwDigit = [8]int{centerDigit, ikAxesDigit, jkAxesDigit, kAxesDigit, ijAxesDigit, iAxesDigit, jAxesDigit, invalidDigit}
var rotate60cwDigit = [8]int{centerDigit, jkAxesDigit, ijAxesDigit, jAxesDigit, ikAxesDigit, kAxesDigit, iAxesDigit, invalidDigit}

func newCell(res int, baseCell int) Cell {
	c := cellInit | uint64(cellMode)<<modeOffset
	c |= uint64(res) << resOffset
	c |= uint64(baseCell) << baseCellOffset
	return Cell(c)
}

func digitOffset(r int) uint {
	return uint((MaxResolution - r) * digitBits)
}

// Resolution returns the resolution field.
func (c Cell) Resolution() int {
	return int((uint64(c) & resMask) >> resOffset)
}

// BaseCell returns the resolution 0 ancestor number, 0-121.
func (c Cell) BaseCell() int {
	return int((uint64(c) & baseCellMask) >> baseCellOffset)
}

// Digit returns the child digit at resolution r (1..15).
func (c Cell) Digit(r int) int {
	return int((uint64(c) >> digitOffset(r)) & digitMask)
}

func (c Cell) setDigit(r int, d int) Cell {
	off := digitOffset(r)
	return Cell((uint64(c) &^ (digitMask << off)) | (uint64(d) << off))
}

func (c Cell) setResolution(res int) Cell {
	return Cell((uint64(c) &^ resMask) | (uint64(res) << resOffset))
}

// Parent returns the ancestor of c at resolution res. It returns c itself
// when res equals the cell's resolution and the zero Cell when res is
// negative or finer than c.
func (c Cell) Parent(res int) Cell {
	cellRes := c.Resolution()
	if res < 0 || res > cellRes {
		return 0
	}
	if res == cellRes {
		return c
	}
	p := c.setResolution(res)
	for r := res + 1; r <= cellRes; r++ {
		p = p.setDigit(r, invalidDigit)
	}
	return p
}

// ParentOf is Parent with the cell as an explicit argument.
func ParentOf(c Cell, res int) Cell {
	return c.Parent(res)
}

// Valid checks the mode, base cell and digit fields. It does not check that
// pentagon cells avoid the deleted k-axes subsequence.
func (c Cell) Valid() bool {
	if c == 0 || (uint64(c)>>63) != 0 {
		return false
	}
	if (uint64(c)&modeMask)>>modeOffset != cellMode {
		return false
	}
	if c.BaseCell() >= numBaseCells {
		return false
	}
	res := c.Resolution()
	for r := 1; r <= MaxResolution; r++ {
		d := c.Digit(r)
		if r <= res && d == invalidDigit {
			return false
		}
		if r > res && d != invalidDigit {
			return false
		}
	}
	return true
}

// IsPentagon reports whether c is one of the twelve pentagonal cells of its
// resolution.
func (c Cell) IsPentagon() bool {
	return isBaseCellPentagon(c.BaseCell()) && c.leadingNonZeroDigit() == centerDigit
}

func (c Cell) String() string {
	return strconv.FormatUint(uint64(c), 16)
}

// ParseCell parses a hexadecimal cell identifier, with or without a 0x
// prefix.
func ParseCell(s string) (Cell, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cell %q: %w", s, err)
	}
	c := Cell(v)
	if !c.Valid() {
		return 0, fmt.Errorf("invalid cell %q", s)
	}
	return c, nil
}

func (c Cell) leadingNonZeroDigit() int {
	res := c.Resolution()
	for r := 1; r <= res; r++ {
		if d := c.Digit(r); d != centerDigit {
			return d
		}
	}
	return centerDigit
}

func (c Cell) rotate60ccw() Cell {
	res := c.Resolution()
	for r := 1; r <= res; r++ {
		c = c.setDigit(r, rotate60ccwDigit[c.Digit(r)])
	}
	return c
}

func (c Cell) rotate60cw() Cell {
	res := c.Resolution()
	for r := 1; r <= res; r++ {
		c = c.setDigit(r, rotate60cwDigit[c.Digit(r)])
	}
	return c
}

// rotatePent60ccw rotates a pentagon cell, skipping the deleted k-axes
// subsequence.
func (c Cell) rotatePent60ccw() Cell {
	foundFirst := false
	res := c.Resolution()
	for r := 1; r <= res; r++ {
		c = c.setDigit(r, rotate60ccwDigit[c.Digit(r)])
		if !foundFirst && c.Digit(r) != centerDigit {
			foundFirst = true
			if c.leadingNonZeroDigit() == kAxesDigit {
				c = c.rotate60ccw()
			}
		}
	}
	return c
}

func isBaseCellPentagon(baseCell int) bool {
	_, ok := pentagonCwOffsetFaces[baseCell]
	return ok
}

func baseCellIsCwOffset(baseCell int, face int) bool {
	faces, ok := pentagonCwOffsetFaces[baseCell]
	return ok && (faces[0] == face || faces[1] == face)
}

package tzh3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellFields(t *testing.T) {
	c := Cell(0x85283473fffffff)
	assert.Equal(t, 5, c.Resolution())
	assert.Equal(t, 20, c.BaseCell())
	assert.Equal(t, 0, c.Digit(1))
	assert.Equal(t, 6, c.Digit(2))
	assert.Equal(t, 4, c.Digit(3))
	assert.Equal(t, 3, c.Digit(4))
	assert.Equal(t, 4, c.Digit(5))
	assert.Equal(t, 7, c.Digit(6))
	assert.Equal(t, 7, c.Digit(15))
	assert.Equal(t, "85283473fffffff", c.String())
	assert.True(t, c.Valid())
}

func TestNewCell(t *testing.T) {
	assert.Equal(t, Cell(0x8075fffffffffff), newCell(0, 58))
	assert.Equal(t, Cell(0x8001fffffffffff), newCell(0, 0))
	assert.Equal(t, 3, newCell(3, 7).Resolution())
	assert.Equal(t, 7, newCell(3, 7).Digit(1))
}

func TestParent(t *testing.T) {
	c := Cell(0x892f5a363bbffff)
	assert.Equal(t, Cell(0x842f5a3ffffffff), c.Parent(4))
	assert.Equal(t, Cell(0x802ffffffffffff), c.Parent(0))
	assert.Equal(t, c, c.Parent(9))
	assert.Equal(t, Cell(0), c.Parent(10))
	assert.Equal(t, Cell(0), c.Parent(-1))
	assert.Equal(t, c.Parent(4), ParentOf(c, 4))
}

func TestParentChain(t *testing.T) {
	c := Cell(0x8f2f5a363ba005a)
	for res := 14; res >= 0; res-- {
		p := c.Parent(res)
		assert.Equal(t, res, p.Resolution())
		assert.Equal(t, c.BaseCell(), p.BaseCell())
		assert.True(t, p.Valid())
		assert.Equal(t, p, c.Parent(res+1).Parent(res))
	}
}

func TestParseCell(t *testing.T) {
	c, err := ParseCell("85283473fffffff")
	assert.Nil(t, err)
	assert.Equal(t, Cell(0x85283473fffffff), c)

	c, err = ParseCell("0x8075fffffffffff")
	assert.Nil(t, err)
	assert.Equal(t, Cell(0x8075fffffffffff), c)

	_, err = ParseCell("not a cell")
	assert.NotNil(t, err)

	// resolution 5 with a digit 7 at resolution 5
	_, err = ParseCell("8528347ffffffff")
	assert.NotNil(t, err)

	_, err = ParseCell("0")
	assert.NotNil(t, err)
}

func TestValid(t *testing.T) {
	assert.False(t, Cell(0).Valid())
	// base cell 122
	assert.False(t, newCell(0, 122).Valid())
	// mode 0
	assert.False(t, Cell(0x1075fffffffffff).Valid())
	assert.True(t, newCell(0, 121).Valid())
}

func TestRotate60(t *testing.T) {
	c := newCell(2, 10).setDigit(1, kAxesDigit).setDigit(2, ijAxesDigit)
	ccw := c.rotate60ccw()
	assert.Equal(t, ikAxesDigit, ccw.Digit(1))
	assert.Equal(t, jAxesDigit, ccw.Digit(2))
	assert.Equal(t, c, ccw.rotate60cw())

	r := c
	for i := 0; i < 6; i++ {
		r = r.rotate60ccw()
	}
	assert.Equal(t, c, r)
}

func TestRotatePent60ccw(t *testing.T) {
	// rotating i (4) ccw lands on ij (6), no k digit involved
	c := newCell(2, 4).setDigit(1, centerDigit).setDigit(2, iAxesDigit)
	r := c.rotatePent60ccw()
	assert.Equal(t, centerDigit, r.Digit(1))
	assert.Equal(t, ijAxesDigit, r.Digit(2))

	// jk (3) rotates onto k (1), which is skipped on a pentagon
	c = newCell(1, 4).setDigit(1, jkAxesDigit)
	r = c.rotatePent60ccw()
	assert.NotEqual(t, kAxesDigit, r.leadingNonZeroDigit())
	assert.Equal(t, ikAxesDigit, r.Digit(1))
}

func TestIsPentagon(t *testing.T) {
	assert.True(t, newCell(0, 4).IsPentagon())
	assert.True(t, newCell(3, 4).setDigit(1, 0).setDigit(2, 0).setDigit(3, 0).IsPentagon())
	assert.False(t, newCell(1, 4).setDigit(1, 2).IsPentagon())
	assert.False(t, newCell(0, 5).IsPentagon())
}

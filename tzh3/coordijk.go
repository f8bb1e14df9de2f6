package tzh3

import (
	"math"
)

// sin(60 degrees)
const sin60 = 0.8660254037844386467637231707529361834714

// coordIJK is a position on the hexagonal lattice in cube coordinates,
// i j k axes 120 degrees apart.
type coordIJK struct {
	i, j, k int
}

// unit vectors of the seven aperture-7 children, indexed by digit
var unitVecs = [7]coordIJK{
	{0, 0, 0}, // center
	{0, 0, 1}, // k
	{0, 1, 0}, // j
	{0, 1, 1}, // jk
	{1, 0, 0}, // i
	{1, 0, 1}, // ik
	{1, 1, 0}, // ij
}

func (c coordIJK) sub(o coordIJK) coordIJK {
	return coordIJK{c.i - o.i, c.j - o.j, c.k - o.k}
}

func (c coordIJK) scale(f int) coordIJK {
	return coordIJK{c.i * f, c.j * f, c.k * f}
}

func (c coordIJK) add(o coordIJK) coordIJK {
	return coordIJK{c.i + o.i, c.j + o.j, c.k + o.k}
}

// normalize removes negative components and leaves the minimum at zero.
func (c coordIJK) normalize() coordIJK {
	if c.i < 0 {
		c.j -= c.i
		c.k -= c.i
		c.i = 0
	}
	if c.j < 0 {
		c.i -= c.j
		c.k -= c.j
		c.j = 0
	}
	if c.k < 0 {
		c.i -= c.k
		c.j -= c.k
		c.k = 0
	}
	m := min(c.i, c.j, c.k)
	if m > 0 {
		c.i -= m
		c.j -= m
		c.k -= m
	}
	return c
}

// digit maps a unit vector to its child digit, invalidDigit otherwise.
func (c coordIJK) digit() int {
	n := c.normalize()
	for d, u := range unitVecs {
		if n == u {
			return d
		}
	}
	return invalidDigit
}

// upAp7 finds the parent position, Class III counter clockwise aperture 7.
func (c coordIJK) upAp7() coordIJK {
	i := c.i - c.k
	j := c.j - c.k
	return coordIJK{
		int(math.Round(float64(3*i-j) / 7.0)),
		int(math.Round(float64(i+2*j) / 7.0)),
		0,
	}.normalize()
}

// upAp7r finds the parent position, Class II clockwise aperture 7.
func (c coordIJK) upAp7r() coordIJK {
	i := c.i - c.k
	j := c.j - c.k
	return coordIJK{
		int(math.Round(float64(2*i+j) / 7.0)),
		int(math.Round(float64(3*j-i) / 7.0)),
		0,
	}.normalize()
}

// downAp7 finds the center of the child grid, Class III.
func (c coordIJK) downAp7() coordIJK {
	iv := coordIJK{3, 0, 1}.scale(c.i)
	jv := coordIJK{1, 3, 0}.scale(c.j)
	kv := coordIJK{0, 1, 3}.scale(c.k)
	return iv.add(jv).add(kv).normalize()
}

// downAp7r finds the center of the child grid, Class II.
func (c coordIJK) downAp7r() coordIJK {
	iv := coordIJK{3, 1, 0}.scale(c.i)
	jv := coordIJK{0, 3, 1}.scale(c.j)
	kv := coordIJK{1, 0, 3}.scale(c.k)
	return iv.add(jv).add(kv).normalize()
}

// hex2dToIJK quantizes a point of the planar hex grid to the lattice
// position containing it.
func hex2dToIJK(x, y float64) coordIJK {
	var h coordIJK

	a1 := math.Abs(x)
	a2 := math.Abs(y)

	// reverse the conversion to hex2d coordinates
	x2 := a2 / sin60
	x1 := a1 + x2/2.0

	m1 := int(x1)
	m2 := int(x2)

	r1 := x1 - float64(m1)
	r2 := x2 - float64(m2)

	if r1 < 0.5 {
		if r1 < 1.0/3.0 {
			if r2 < (1.0+r1)/2.0 {
				h.i = m1
				h.j = m2
			} else {
				h.i = m1
				h.j = m2 + 1
			}
		} else {
			if r2 < (1.0 - r1) {
				h.j = m2
			} else {
				h.j = m2 + 1
			}
			if (1.0-r1) <= r2 && r2 < (2.0*r1) {
				h.i = m1 + 1
			} else {
				h.i = m1
			}
		}
	} else {
		if r1 < 2.0/3.0 {
			if r2 < (1.0 - r1) {
				h.j = m2
			} else {
				h.j = m2 + 1
			}
			if (2.0*r1-1.0) < r2 && r2 < (1.0-r1) {
				h.i = m1
			} else {
				h.i = m1 + 1
			}
		} else {
			if r2 < (r1 / 2.0) {
				h.i = m1 + 1
				h.j = m2
			} else {
				h.i = m1 + 1
				h.j = m2 + 1
			}
		}
	}

	// fold across the axes if necessary
	if x < 0.0 {
		if h.j%2 == 0 {
			axisi := h.j / 2
			diff := h.i - axisi
			h.i = h.i - 2*diff
		} else {
			axisi := (h.j + 1) / 2
			diff := h.i - axisi
			h.i = h.i - (2*diff + 1)
		}
	}

	if y < 0.0 {
		h.i = h.i - (2*h.j+1)/2
		h.j = -h.j
	}

	return h.normalize()
}

package tzh3

import (
	"math"
)

const (
	numFaces = 20

	// scaling from gnomonic distance to the resolution 0 hex grid
	res0UGnomonic = 0.38196601125010500003
	// rotation between Class II and Class III grids
	ap7RotRads = 0.333473172251832115336090755351601070065900389
	sqrt7      = 2.6457513110645905905016157536392604257102

	epsilon = 1e-16
)

type latLng struct {
	lat, lng float64
}

type vec3 struct {
	x, y, z float64
}

func (p latLng) toVec3() vec3 {
	r := math.Cos(p.lat)
	return vec3{math.Cos(p.lng) * r, math.Sin(p.lng) * r, math.Sin(p.lat)}
}

func (v vec3) squareDist(o vec3) float64 {
	dx, dy, dz := v.x-o.x, v.y-o.y, v.z-o.z
	return dx*dx + dy*dy + dz*dz
}

// posAngle normalizes an angle in radians to [0, 2pi).
func posAngle(rads float64) float64 {
	tmp := math.Mod(rads, 2*math.Pi)
	if tmp < 0.0 {
		return tmp + 2*math.Pi
	}
	return tmp
}

// azimuth returns the great circle azimuth from p1 to p2 in radians.
func azimuth(p1, p2 latLng) float64 {
	return math.Atan2(
		math.Cos(p2.lat)*math.Sin(p2.lng-p1.lng),
		math.Cos(p1.lat)*math.Sin(p2.lat)-math.Sin(p1.lat)*math.Cos(p2.lat)*math.Cos(p2.lng-p1.lng),
	)
}

// closestFace returns the icosahedron face whose center is nearest to p,
// and the squared euclidean distance between the two on the unit sphere.
func closestFace(p latLng) (int, float64) {
	v := p.toVec3()
	face := 0
	sqd := 5.0
	for f := 0; f < numFaces; f++ {
		d := faceCenterPoint[f].squareDist(v)
		if d < sqd {
			face = f
			sqd = d
		}
	}
	return face, sqd
}

// geoToHex2d projects p onto the gnomonic plane of its closest face at
// resolution res.
func geoToHex2d(p latLng, res int) (int, float64, float64) {
	face, sqd := closestFace(p)

	r := math.Acos(1 - sqd/2)
	if r < epsilon {
		return face, 0, 0
	}

	theta := posAngle(faceAxisAzimuth[face] - posAngle(azimuth(faceCenterGeo[face], p)))
	if res%2 == 1 {
		theta = posAngle(theta - ap7RotRads)
	}

	r = math.Tan(r) / res0UGnomonic
	for i := 0; i < res; i++ {
		r *= sqrt7
	}
	return face, r * math.Cos(theta), r * math.Sin(theta)
}

// ValidLatLng checks the coordinate domain in degrees, poles and the
// antimeridian included.
func ValidLatLng(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// LatLngToCell returns the cell containing a point given in degrees at
// resolution res. It returns the zero Cell for coordinates or resolutions
// out of range.
func LatLngToCell(lat, lon float64, res int) Cell {
	if res < 0 || res > MaxResolution || !ValidLatLng(lat, lon) {
		return 0
	}
	p := latLng{lat * math.Pi / 180, lon * math.Pi / 180}
	face, x, y := geoToHex2d(p, res)
	return faceIJKToCell(face, hex2dToIJK(x, y), res)
}

func faceIJKToCell(face int, ijk coordIJK, res int) Cell {
	if res == 0 {
		if ijk.i > 2 || ijk.j > 2 || ijk.k > 2 {
			return 0
		}
		bc := faceIJKBaseCells[face][ijk.i][ijk.j][ijk.k]
		return newCell(0, bc.baseCell)
	}

	c := newCell(res, 0)

	// walk up to resolution 0, recording the child digit at each level
	for r := res - 1; r >= 0; r-- {
		last := ijk
		var lastCenter coordIJK
		if isResClassIII(r + 1) {
			ijk = ijk.upAp7()
			lastCenter = ijk.downAp7()
		} else {
			ijk = ijk.upAp7r()
			lastCenter = ijk.downAp7r()
		}
		c = c.setDigit(r+1, last.sub(lastCenter).digit())
	}

	if ijk.i > 2 || ijk.j > 2 || ijk.k > 2 {
		return 0
	}

	bc := faceIJKBaseCells[face][ijk.i][ijk.j][ijk.k]
	c = Cell((uint64(c) &^ baseCellMask) | uint64(bc.baseCell)<<baseCellOffset)

	if isBaseCellPentagon(bc.baseCell) {
		// force rotation out of the missing k-axes subsequence
		if c.leadingNonZeroDigit() == kAxesDigit {
			if baseCellIsCwOffset(bc.baseCell, face) {
				c = c.rotate60cw()
			} else {
				c = c.rotate60ccw()
			}
		}
		for i := 0; i < bc.ccwRot60; i++ {
			c = c.rotatePent60ccw()
		}
	} else {
		for i := 0; i < bc.ccwRot60; i++ {
			c = c.rotate60ccw()
		}
	}
	return c
}

func isResClassIII(res int) bool {
	return res%2 == 1
}

type baseCellRotation struct {
	baseCell int
	ccwRot60 int
}

package tzh3

import (
	"time"
)

// Index is an immutable sparse hierarchical mapping from grid cells to
// timezone names. Fine cells are stored only near zone borders, coarse
// cells cover uniform interiors.
type Index struct {
	BaseResolution int
	MaxResolution  int
	Zones          []string
	// Cells is strictly ascending, ZoneIDs is parallel to it.
	Cells   []Cell
	ZoneIDs []uint32
}

func findCell(cells []Cell, cell Cell) (int, bool) {
	m := 0
	n := len(cells) - 1
	for m <= n {
		k := (n + m) >> 1
		if cell > cells[k] {
			m = k + 1
		} else if cell < cells[k] {
			n = k - 1
		} else {
			return k, true
		}
	}
	return 0, false
}

// LookupCell resolves a point and returns the stored cell that matched
// along with the zone name.
func (ix *Index) LookupCell(lat, lon float64) (Cell, string, bool) {
	if ix == nil || !ValidLatLng(lat, lon) {
		return 0, "", false
	}
	cell := LatLngToCell(lat, lon, ix.MaxResolution)
	if cell == 0 {
		return 0, "", false
	}
	for res := ix.MaxResolution; res >= ix.BaseResolution; res-- {
		if k, ok := findCell(ix.Cells, cell); ok {
			return cell, ix.Zones[ix.ZoneIDs[k]], true
		}
		if res == ix.BaseResolution {
			break
		}
		cell = cell.Parent(res - 1)
	}
	return 0, "", false
}

// Lookup returns the timezone name at the given latitude and longitude in
// degrees, for example "Europe/Paris".
func (ix *Index) Lookup(lat, lon float64) (string, bool) {
	_, zone, ok := ix.LookupCell(lat, lon)
	return zone, ok
}

// LookupLocation resolves the zone at a point to a time.Location. The
// error is ErrNotFound when no zone covers the point.
func (ix *Index) LookupLocation(lat, lon float64) (*time.Location, error) {
	zone, ok := ix.Lookup(lat, lon)
	if !ok {
		return nil, ErrNotFound
	}
	return time.LoadLocation(zone)
}

// ResolutionCounts returns the number of stored cells per resolution.
func (ix *Index) ResolutionCounts() [MaxResolution + 1]int {
	var counts [MaxResolution + 1]int
	for _, c := range ix.Cells {
		counts[c.Resolution()]++
	}
	return counts
}

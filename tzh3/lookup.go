package tzh3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"
)

// PrintLookup resolves one point against a local or remote index and
// prints the zone, the stored cell that matched and the local time there.
func PrintLookup(_ *log.Logger, output io.Writer, bucketURL string, file string, lat, lon float64, jsonOutput bool) error {
	if !ValidLatLng(lat, lon) {
		return fmt.Errorf("coordinates %f,%f out of range", lat, lon)
	}
	ix, _, err := ReadIndexFile(context.Background(), bucketURL, file)
	if err != nil {
		return err
	}
	cell, zone, ok := ix.LookupCell(lat, lon)
	if !ok {
		return fmt.Errorf("%w at %f,%f", ErrNotFound, lat, lon)
	}

	if jsonOutput {
		b, err := json.Marshal(LookupResponse{Zone: zone, Cell: cell.String(), Resolution: cell.Resolution()})
		if err != nil {
			return err
		}
		fmt.Fprintln(output, string(b))
		return nil
	}

	fmt.Fprintf(output, "zone: %s\n", zone)
	fmt.Fprintf(output, "cell: %s (resolution %d)\n", cell, cell.Resolution())
	if loc, err := time.LoadLocation(zone); err == nil {
		fmt.Fprintf(output, "local time: %s\n", time.Now().In(loc).Format(time.RFC3339))
	}
	return nil
}

// PrintCell prints the cell containing a point at a resolution.
func PrintCell(output io.Writer, lat, lon float64, res int, jsonOutput bool) error {
	if !ValidLatLng(lat, lon) {
		return fmt.Errorf("coordinates %f,%f out of range", lat, lon)
	}
	if res < 0 || res > MaxResolution {
		return fmt.Errorf("resolution %d out of range 0-%d", res, MaxResolution)
	}
	cell := LatLngToCell(lat, lon, res)
	if jsonOutput {
		b, err := json.Marshal(CellResponse{Cell: cell.String(), Resolution: res, BaseCell: cell.BaseCell(), Pentagon: cell.IsPentagon()})
		if err != nil {
			return err
		}
		fmt.Fprintln(output, string(b))
		return nil
	}
	fmt.Fprintln(output, cell)
	return nil
}

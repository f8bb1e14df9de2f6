package tzh3

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// TimezoneColumn is the column appended to annotated CSV files.
const TimezoneColumn = "Timezone"

type lookupTask struct {
	start, end int
}

// lookupPoints resolves points concurrently. zones[i] is empty when no
// zone covers points[i]. Progress is reported from a single goroutine.
func lookupPoints(ctx context.Context, ix *Index, points []orb.Point, workers int) ([]string, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	zones := make([]string, len(points))
	bar := getProgressWriter().NewCountProgress(int64(len(points)), "looking up points")
	defer bar.Close()

	tasks := make(chan lookupTask, workers)
	done := make(chan int, workers)
	reported := make(chan struct{})
	errs, ctx := errgroup.WithContext(ctx)

	// Progress implementations need not be safe for concurrent use, so only
	// this goroutine touches bar.
	go func() {
		defer close(reported)
		for n := range done {
			bar.Add(n)
		}
	}()

	errs.Go(func() error {
		defer close(tasks)
		const chunk = 1024
		for start := 0; start < len(points); start += chunk {
			end := min(start+chunk, len(points))
			select {
			case tasks <- lookupTask{start, end}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		errs.Go(func() error {
			for task := range tasks {
				for j := task.start; j < task.end; j++ {
					if zone, ok := ix.Lookup(points[j].Lat(), points[j].Lon()); ok {
						zones[j] = zone
					}
				}
				done <- task.end - task.start
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := errs.Wait()
	close(done)
	<-reported
	if err != nil {
		return nil, err
	}
	return zones, nil
}

// AnnotateGeoJSON sets property on every feature of a FeatureCollection to
// the zone at its point, or the center of its bound for other geometries.
// Features no zone covers are left untouched. It returns the number of
// annotated features.
func AnnotateGeoJSON(ctx context.Context, ix *Index, r io.Reader, w io.Writer, property string, workers int) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse GeoJSON, %w", err)
	}

	points := make([]orb.Point, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			// an out of range point never resolves
			points[i] = orb.Point{999, 999}
			continue
		}
		points[i] = f.Geometry.Bound().Center()
	}

	zones, err := lookupPoints(ctx, ix, points, workers)
	if err != nil {
		return 0, err
	}

	annotated := 0
	for i, f := range fc.Features {
		if zones[i] == "" {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties[property] = zones[i]
		annotated++
	}

	out, err := fc.MarshalJSON()
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(out); err != nil {
		return 0, err
	}
	return annotated, nil
}

func findColumn(header []string, names ...string) int {
	for i, h := range header {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(h), n) {
				return i
			}
		}
	}
	return -1
}

// AnnotateCSV appends a Timezone column to a CSV with Latitude and
// Longitude columns, like a Name,Country,Continent,Latitude,Longitude city
// list. Rows whose coordinates do not parse or resolve get an empty value.
func AnnotateCSV(ctx context.Context, ix *Index, r io.Reader, w io.Writer, workers int) (int, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to parse CSV, %w", err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("empty CSV")
	}

	header := records[0]
	latCol := findColumn(header, "latitude", "lat")
	lonCol := findColumn(header, "longitude", "lon", "lng")
	if latCol < 0 || lonCol < 0 {
		return 0, fmt.Errorf("CSV header needs Latitude and Longitude columns, got %v", header)
	}

	rows := records[1:]
	points := make([]orb.Point, len(rows))
	for i, row := range rows {
		points[i] = orb.Point{999, 999}
		if latCol >= len(row) || lonCol >= len(row) {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if err1 == nil && err2 == nil {
			points[i] = orb.Point{lon, lat}
		}
	}

	zones, err := lookupPoints(ctx, ix, points, workers)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append(header, TimezoneColumn)); err != nil {
		return 0, err
	}
	annotated := 0
	for i, row := range rows {
		if zones[i] != "" {
			annotated++
		}
		if err := cw.Write(append(row, zones[i])); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return annotated, cw.Error()
}

// Annotate reads a GeoJSON or CSV file, chosen by extension, and writes it
// back out with the zone of every point. An output of "-" is stdout.
func Annotate(logger *log.Logger, bucketURL string, indexFile string, input string, output string, property string, workers int) error {
	ctx := context.Background()
	ix, _, err := ReadIndexFile(ctx, bucketURL, indexFile)
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open input %s, %w", input, err)
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output %s, %w", output, err)
		}
		defer f.Close()
		out = f
	}

	var annotated int
	if strings.EqualFold(filepath.Ext(input), ".csv") {
		annotated, err = AnnotateCSV(ctx, ix, in, out, workers)
	} else {
		annotated, err = AnnotateGeoJSON(ctx, ix, in, out, property, workers)
	}
	if err != nil {
		return err
	}
	logger.Printf("annotated %d records from %s", annotated, input)
	return nil
}

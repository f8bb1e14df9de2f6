package tzh3

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/RoaringBitmap/roaring/roaring64"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLite layout read by Convert and written by Export. Cells are stored as
// H3 style hex strings.
const sqliteSchema = `
CREATE TABLE metadata (name TEXT PRIMARY KEY, value TEXT);
CREATE TABLE zones (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE cells (cell TEXT PRIMARY KEY, zone_id INTEGER NOT NULL);
`

func readSqliteMetadata(conn *sqlite.Conn) (map[string]string, error) {
	metadata := make(map[string]string)
	stmt, _, err := conn.PrepareTransient("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()

	for {
		row, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !row {
			break
		}
		metadata[stmt.ColumnText(0)] = stmt.ColumnText(1)
	}
	return metadata, nil
}

func metadataResolution(metadata map[string]string, name string, fallback int) (int, error) {
	v, ok := metadata[name]
	if !ok {
		return fallback, nil
	}
	res, err := strconv.Atoi(v)
	if err != nil || res < 0 || res > MaxResolution {
		return 0, fmt.Errorf("invalid %s %q in metadata", name, v)
	}
	return res, nil
}

// Convert builds a TZH3 index from a SQLite database with zones, cells
// and metadata tables.
func Convert(logger *log.Logger, input string, output string, compress bool) error {
	start := time.Now()
	conn, err := sqlite.OpenConn(input, sqlite.OpenReadOnly)
	if err != nil {
		return fmt.Errorf("failed to open %s, %w", input, err)
	}
	defer conn.Close()

	metadata, err := readSqliteMetadata(conn)
	if err != nil {
		return fmt.Errorf("failed to read metadata, %w", err)
	}

	zones := make([]string, 0)
	zoneIndex := make(map[int64]uint32)
	{
		stmt, _, err := conn.PrepareTransient("SELECT id, name FROM zones ORDER BY id")
		if err != nil {
			return err
		}
		defer stmt.Finalize()
		for {
			row, err := stmt.Step()
			if err != nil {
				return err
			}
			if !row {
				break
			}
			zoneIndex[stmt.ColumnInt64(0)] = uint32(len(zones))
			zones = append(zones, stmt.ColumnText(1))
		}
	}

	logger.Println("Querying total cell count...")
	var totalCells int64
	{
		stmt, _, err := conn.PrepareTransient("SELECT count(*) FROM cells")
		if err != nil {
			return err
		}
		defer stmt.Finalize()
		row, err := stmt.Step()
		if err != nil || !row {
			return fmt.Errorf("failed to count cells, %w", err)
		}
		totalCells = stmt.ColumnInt64(0)
	}

	logger.Println("Pass 1: Assembling cell set")
	cellset := roaring64.New()
	cellZones := make(map[Cell]uint32, totalCells)
	minRes, maxRes := MaxResolution, 0
	{
		bar := getProgressWriter().NewCountProgress(totalCells, "reading cells")
		stmt, _, err := conn.PrepareTransient("SELECT cell, zone_id FROM cells")
		if err != nil {
			return err
		}
		defer stmt.Finalize()
		for {
			row, err := stmt.Step()
			if err != nil {
				return err
			}
			if !row {
				break
			}
			cell, err := ParseCell(stmt.ColumnText(0))
			if err != nil {
				return err
			}
			zoneID, ok := zoneIndex[stmt.ColumnInt64(1)]
			if !ok {
				return fmt.Errorf("cell %s references unknown zone %d", cell, stmt.ColumnInt64(1))
			}
			if !cellset.CheckedAdd(uint64(cell)) {
				return fmt.Errorf("duplicate cell %s", cell)
			}
			cellZones[cell] = zoneID
			minRes = min(minRes, cell.Resolution())
			maxRes = max(maxRes, cell.Resolution())
			bar.Add(1)
		}
		bar.Close()
	}
	if cellset.IsEmpty() {
		minRes = 0
	}

	baseRes, err := metadataResolution(metadata, "base_resolution", minRes)
	if err != nil {
		return err
	}
	maxResolution, err := metadataResolution(metadata, "max_resolution", maxRes)
	if err != nil {
		return err
	}
	if baseRes > maxResolution {
		return fmt.Errorf("base_resolution %d is above max_resolution %d", baseRes, maxResolution)
	}
	if !cellset.IsEmpty() && (baseRes > minRes || maxResolution < maxRes) {
		return fmt.Errorf("cells span resolutions %d-%d, outside of metadata range %d-%d", minRes, maxRes, baseRes, maxResolution)
	}

	logger.Println("Pass 2: Writing index")
	ix := &Index{
		BaseResolution: baseRes,
		MaxResolution:  maxResolution,
		Zones:          zones,
		Cells:          make([]Cell, 0, cellset.GetCardinality()),
		ZoneIDs:        make([]uint32, 0, cellset.GetCardinality()),
	}
	it := cellset.Iterator()
	for it.HasNext() {
		cell := Cell(it.Next())
		ix.Cells = append(ix.Cells, cell)
		ix.ZoneIDs = append(ix.ZoneIDs, cellZones[cell])
	}

	data, err := Encode(ix, compress)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s, %w", output, err)
	}

	logger.Printf("Finished in %s: %d zones, %d cells", time.Since(start), len(ix.Zones), len(ix.Cells))
	return nil
}

// Export writes a local or remote index into a new SQLite database in the
// layout Convert reads.
func Export(logger *log.Logger, bucketURL string, input string, output string) (err error) {
	ix, _, err := ReadIndexFile(context.Background(), bucketURL, input)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(output); statErr == nil {
		return fmt.Errorf("%s already exists", output)
	}

	conn, err := sqlite.OpenConn(output, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("failed to create %s, %w", output, err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("failed to create tables, %w", err)
	}

	defer sqlitex.Save(conn)(&err)

	insertMetadata := conn.Prep("INSERT INTO metadata (name, value) VALUES (?, ?)")
	for _, kv := range [][2]string{
		{"version", strconv.Itoa(FormatVersion)},
		{"base_resolution", strconv.Itoa(ix.BaseResolution)},
		{"max_resolution", strconv.Itoa(ix.MaxResolution)},
	} {
		insertMetadata.BindText(1, kv[0])
		insertMetadata.BindText(2, kv[1])
		if _, err := insertMetadata.Step(); err != nil {
			return err
		}
		if err := insertMetadata.Reset(); err != nil {
			return err
		}
	}

	insertZone := conn.Prep("INSERT INTO zones (id, name) VALUES (?, ?)")
	for i, z := range ix.Zones {
		insertZone.BindInt64(1, int64(i))
		insertZone.BindText(2, z)
		if _, err := insertZone.Step(); err != nil {
			return err
		}
		if err := insertZone.Reset(); err != nil {
			return err
		}
	}

	bar := getProgressWriter().NewCountProgress(int64(len(ix.Cells)), "writing cells")
	defer bar.Close()
	insertCell := conn.Prep("INSERT INTO cells (cell, zone_id) VALUES (?, ?)")
	for i, c := range ix.Cells {
		insertCell.BindText(1, c.String())
		insertCell.BindInt64(2, int64(ix.ZoneIDs[i]))
		if _, err := insertCell.Step(); err != nil {
			return err
		}
		if err := insertCell.Reset(); err != nil {
			return err
		}
		bar.Add(1)
	}

	logger.Printf("Exported %d zones, %d cells to %s", len(ix.Zones), len(ix.Cells), output)
	return nil
}

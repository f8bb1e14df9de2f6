package tzh3

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/RoaringBitmap/roaring/roaring64"
)

// VerifyIndex checks the invariants a decoded index does not enforce by
// itself and returns one message per problem found.
func VerifyIndex(ix *Index) []string {
	var problems []string

	stored := roaring64.New()
	for _, c := range ix.Cells {
		stored.Add(uint64(c))
	}

	bar := getProgressWriter().NewCountProgress(int64(len(ix.Cells)), "verifying cells")
	defer bar.Close()

	usedZones := roaring.New()
	maxUsed := -1
	for i, c := range ix.Cells {
		bar.Add(1)
		usedZones.Add(ix.ZoneIDs[i])

		if !c.Valid() {
			problems = append(problems, fmt.Sprintf("Invalid: cell %s at position %d is not a well formed cell", c, i))
			continue
		}
		res := c.Resolution()
		if res < ix.BaseResolution || res > ix.MaxResolution {
			problems = append(problems, fmt.Sprintf("Invalid: cell %s has resolution %d outside of %d-%d", c, res, ix.BaseResolution, ix.MaxResolution))
			continue
		}
		if res > maxUsed {
			maxUsed = res
		}
		for r := res - 1; r >= ix.BaseResolution; r-- {
			if p := c.Parent(r); stored.Contains(uint64(p)) {
				problems = append(problems, fmt.Sprintf("Invalid: cell %s is shadowed by stored ancestor %s", c, p))
				break
			}
		}
	}

	if len(ix.Cells) > 0 && maxUsed >= 0 && maxUsed != ix.MaxResolution {
		problems = append(problems, fmt.Sprintf("Invalid: header max resolution %d but finest stored cell is %d", ix.MaxResolution, maxUsed))
	}

	if uint64(len(ix.Zones)) != usedZones.GetCardinality() {
		for i := range ix.Zones {
			if !usedZones.Contains(uint32(i)) {
				problems = append(problems, fmt.Sprintf("Unused: zone %d %q has no cells", i, ix.Zones[i]))
			}
		}
	}

	return problems
}

// Verify decodes a local or remote index and reports every problem.
func Verify(logger *log.Logger, bucketURL string, file string) error {
	start := time.Now()
	ix, _, err := ReadIndexFile(context.Background(), bucketURL, file)
	if err != nil {
		return err
	}

	problems := VerifyIndex(ix)
	for _, p := range problems {
		logger.Println(p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problems found in %s", len(problems), file)
	}

	logger.Printf("Completed verify of %d cells in %v.", len(ix.Cells), time.Since(start))
	return nil
}

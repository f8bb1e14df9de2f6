package tzh3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/dustin/go-humanize"
)

// Summary describes an index for show and its JSON output.
type Summary struct {
	Version        int
	BaseResolution int
	MaxResolution  int
	Zones          int
	Cells          int
	SizeBytes      int64
	Resolutions    map[int]int
}

func summarize(ix *Index, size int64) Summary {
	counts := ix.ResolutionCounts()
	resolutions := make(map[int]int)
	for res, n := range counts {
		if n > 0 {
			resolutions[res] = n
		}
	}
	return Summary{
		Version:        FormatVersion,
		BaseResolution: ix.BaseResolution,
		MaxResolution:  ix.MaxResolution,
		Zones:          len(ix.Zones),
		Cells:          len(ix.Cells),
		SizeBytes:      size,
		Resolutions:    resolutions,
	}
}

// Show prints the header and cell statistics of a local or remote index.
func Show(_ *log.Logger, output io.Writer, bucketURL string, file string, jsonOutput bool, zones bool) error {
	ix, size, err := ReadIndexFile(context.Background(), bucketURL, file)
	if err != nil {
		return err
	}

	if zones {
		for i, z := range ix.Zones {
			fmt.Fprintf(output, "%d\t%s\n", i, z)
		}
		return nil
	}

	summary := summarize(ix, size)
	if jsonOutput {
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(output, string(b))
		return nil
	}

	fmt.Fprintf(output, "tzh3 format version: %d\n", summary.Version)
	fmt.Fprintf(output, "total size: %s\n", humanize.Bytes(uint64(summary.SizeBytes)))
	fmt.Fprintf(output, "base resolution: %d\n", summary.BaseResolution)
	fmt.Fprintf(output, "max resolution: %d\n", summary.MaxResolution)
	fmt.Fprintf(output, "zones count: %s\n", humanize.Comma(int64(summary.Zones)))
	fmt.Fprintf(output, "cells count: %s\n", humanize.Comma(int64(summary.Cells)))
	for res := 0; res <= MaxResolution; res++ {
		if n, ok := summary.Resolutions[res]; ok {
			fmt.Fprintf(output, "  resolution %d: %s cells\n", res, humanize.Comma(int64(n)))
		}
	}
	return nil
}

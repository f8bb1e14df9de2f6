package tzh3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gocloud.dev/blob"
)

// Upload validates a local index and copies it to key in a gocloud bucket.
func Upload(logger *log.Logger, input string, bucketURL string, key string, maxConcurrency int) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	ix, err := Decode(data)
	if err != nil {
		return fmt.Errorf("refusing to upload %s, %w", input, err)
	}

	logger.Println(input, bucketURL, key)
	ctx := context.Background()
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("failed to setup bucket: %w", err)
	}
	defer b.Close()

	opts := &blob.WriterOptions{
		BufferSize:     partSizeBytes(int64(len(data))),
		MaxConcurrency: maxConcurrency,
		ContentType:    "application/octet-stream",
		Metadata: map[string]string{
			"tzh3-zones": fmt.Sprint(len(ix.Zones)),
			"tzh3-cells": fmt.Sprint(len(ix.Cells)),
		},
	}

	w, err := b.NewWriter(ctx, key, opts)
	if err != nil {
		return fmt.Errorf("failed to obtain writer: %w", err)
	}

	bar := getProgressWriter().NewBytesProgress(int64(len(data)), "uploading")
	if _, err := io.Copy(io.MultiWriter(w, bar), bytes.NewReader(data)); err != nil {
		bar.Close()
		w.Close()
		return fmt.Errorf("failed to write to bucket: %w", err)
	}
	bar.Close()

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	return nil
}

// partSizeBytes keeps multipart uploads under the 10,000 part limit of S3
// with a 5 MiB floor.
func partSizeBytes(totalSize int64) int {
	minPartSize := int64(5 * 1024 * 1024)
	partSize := (totalSize + 9999) / 10000
	if partSize < minPartSize {
		return int(minPartSize)
	}
	return int(partSize)
}

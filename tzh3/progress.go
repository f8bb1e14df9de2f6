package tzh3

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressWriter creates progress trackers for long running commands such as
// verify, annotate, convert and upload.
type ProgressWriter interface {
	// NewCountProgress tracks a number of items, like cells or rows
	NewCountProgress(total int64, description string) Progress
	// NewBytesProgress tracks a number of bytes
	NewBytesProgress(total int64, description string) Progress
}

// Progress is an active tracker. Writing to it counts the written bytes.
// Commands use each Progress from one goroutine at a time, so
// implementations need no locking.
type Progress interface {
	io.Writer
	Add(num int)
	Close() error
}

var (
	progressWriterMu sync.RWMutex
	progressWriter   ProgressWriter = &barProgressWriter{out: os.Stderr}
	quietMode        bool
)

// SetProgressWriter replaces the progress reporting of every command. nil
// turns reporting off.
func SetProgressWriter(pw ProgressWriter) {
	progressWriterMu.Lock()
	defer progressWriterMu.Unlock()
	if pw == nil {
		pw = quietProgressWriter{}
	}
	progressWriter = pw
}

// SetQuietMode switches between terminal progress bars and no reporting.
func SetQuietMode(quiet bool) {
	progressWriterMu.Lock()
	defer progressWriterMu.Unlock()
	quietMode = quiet
	if quiet {
		progressWriter = quietProgressWriter{}
	} else {
		progressWriter = &barProgressWriter{out: os.Stderr}
	}
}

// IsQuietMode returns the current quiet mode setting.
func IsQuietMode() bool {
	progressWriterMu.RLock()
	defer progressWriterMu.RUnlock()
	return quietMode
}

func getProgressWriter() ProgressWriter {
	progressWriterMu.RLock()
	defer progressWriterMu.RUnlock()
	return progressWriter
}

// barProgressWriter draws schollz/progressbar bars on out. Bars go to
// stderr so commands can stream results on stdout.
type barProgressWriter struct {
	out io.Writer
}

func (d *barProgressWriter) newBar(total int64, description string, bytes bool) Progress {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(d.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(bytes),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(d.out, "\n")
		}),
		progressbar.OptionFullWidth(),
	)
	return &barProgress{bar: bar}
}

func (d *barProgressWriter) NewCountProgress(total int64, description string) Progress {
	return d.newBar(total, description, false)
}

func (d *barProgressWriter) NewBytesProgress(total int64, description string) Progress {
	return d.newBar(total, description, true)
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Write(data []byte) (int, error) {
	return p.bar.Write(data)
}

func (p *barProgress) Add(num int) {
	p.bar.Add(num)
}

func (p *barProgress) Close() error {
	return p.bar.Close()
}

type quietProgressWriter struct{}

func (quietProgressWriter) NewCountProgress(int64, string) Progress {
	return quietProgress{}
}

func (quietProgressWriter) NewBytesProgress(int64, string) Progress {
	return quietProgress{}
}

type quietProgress struct{}

func (quietProgress) Write(data []byte) (int, error) {
	return len(data), nil
}

func (quietProgress) Add(int) {}

func (quietProgress) Close() error {
	return nil
}

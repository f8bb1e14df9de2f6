package tzh3

import (
	"errors"
	"fmt"
)

// FormatError reports a malformed TZH3 index. Reason names the check that
// failed, Offset is the byte position in the (decompressed) buffer.
type FormatError struct {
	Reason string
	Offset int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("tzh3: invalid index: %s at offset %d", e.Reason, e.Offset)
}

// ErrNotFound is returned by LookupLocation when no timezone covers a point.
var ErrNotFound = errors.New("tzh3: the timezone wasn't found")

// ErrNotLoaded is returned by the package level LookupLocation before Load
// has succeeded.
var ErrNotLoaded = errors.New("tzh3: index not loaded")

package tzh3

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	loadMu       sync.Mutex
	defaultIndex atomic.Pointer[Index]
)

// Load decodes data and installs it as the process wide index. Once an
// index is installed further calls return nil without parsing. A failed
// load leaves nothing installed.
func Load(data []byte) error {
	if defaultIndex.Load() != nil {
		return nil
	}
	loadMu.Lock()
	defer loadMu.Unlock()
	if defaultIndex.Load() != nil {
		return nil
	}
	ix, err := Decode(data)
	if err != nil {
		return err
	}
	defaultIndex.Store(ix)
	return nil
}

// Loaded reports whether Load has succeeded.
func Loaded() bool {
	return defaultIndex.Load() != nil
}

// Default returns the process wide index, nil before Load succeeds.
func Default() *Index {
	return defaultIndex.Load()
}

// Lookup resolves a point against the process wide index. It reports false
// before Load succeeds, for coordinates out of range and for points no
// zone covers.
func Lookup(lat, lon float64) (string, bool) {
	return defaultIndex.Load().Lookup(lat, lon)
}

// LookupLocation resolves a point against the process wide index to a
// time.Location.
func LookupLocation(lat, lon float64) (*time.Location, error) {
	ix := defaultIndex.Load()
	if ix == nil {
		return nil, ErrNotLoaded
	}
	return ix.LookupLocation(lat, lon)
}

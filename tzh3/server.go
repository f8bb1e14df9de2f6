package tzh3

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Server answers timezone lookups over HTTP from an index held in a
// bucket, optionally refetching it when the object changes.
type Server struct {
	bucket  Bucket
	key     string
	logger  *log.Logger
	refresh time.Duration
	index   atomic.Pointer[Index]
	// reloadMu guards etag and orders index swaps
	reloadMu sync.Mutex
	etag     string
	metrics  *metrics
}

// LookupResponse is the JSON body of /lookup.
type LookupResponse struct {
	Zone       string `json:"zone"`
	Cell       string `json:"cell"`
	Resolution int    `json:"resolution"`
}

// CellResponse is the JSON body of /cell.
type CellResponse struct {
	Cell       string `json:"cell"`
	Resolution int    `json:"resolution"`
	BaseCell   int    `json:"base_cell"`
	Pentagon   bool   `json:"pentagon"`
}

// NewServer opens the bucket holding key. An empty bucketURL treats key as
// a local path or an http(s) URL.
func NewServer(bucketURL string, key string, logger *log.Logger, refresh time.Duration) (*Server, error) {
	ctx := context.Background()

	bucketURL, key, err := NormalizeBucketKey(bucketURL, "", key)
	if err != nil {
		return nil, err
	}

	bucket, err := OpenBucket(ctx, bucketURL, "")
	if err != nil {
		return nil, err
	}

	return NewServerWithBucket(bucket, key, logger, refresh)
}

func NewServerWithBucket(bucket Bucket, key string, logger *log.Logger, refresh time.Duration) (*Server, error) {
	if key == "" {
		return nil, errors.New("no index key")
	}
	return &Server{
		bucket:  bucket,
		key:     key,
		logger:  logger,
		refresh: refresh,
		metrics: createMetrics("", logger),
	}, nil
}

// Reload fetches the index unless the bucket reports it unchanged and
// reports whether a new index was installed. Concurrent calls, including
// the refresh loop of Start, run one at a time.
func (server *Server) Reload(ctx context.Context) (bool, error) {
	server.reloadMu.Lock()
	defer server.reloadMu.Unlock()

	tracker := server.metrics.startBucketRequest()
	ix, etag, err := FetchIndex(ctx, server.bucket, server.key, server.etag)
	if err != nil {
		var nm *NotModifiedError
		if errors.As(err, &nm) {
			tracker.finish(ctx, "304")
			return false, nil
		}
		tracker.finish(ctx, "error")
		return false, err
	}
	tracker.finish(ctx, "200")

	reload := server.index.Load() != nil
	server.index.Store(ix)
	server.etag = etag
	server.metrics.indexLoaded(ix, reload)
	server.logger.Printf("loaded %s: %d zones, %d cells, resolutions %d-%d", server.key, len(ix.Zones), len(ix.Cells), ix.BaseResolution, ix.MaxResolution)
	return true, nil
}

// Start loads the index in the background and, with a refresh interval
// set, checks for a new version until ctx is done.
func (server *Server) Start(ctx context.Context) {
	go func() {
		if _, err := server.Reload(ctx); err != nil {
			server.logger.Printf("failed to load %s, %v", server.key, err)
		}
		if server.refresh <= 0 {
			return
		}
		ticker := time.NewTicker(server.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := server.Reload(ctx); err != nil {
					server.logger.Printf("failed to refresh %s, keeping the current index, %v", server.key, err)
				}
			}
		}
	}()
}

// Index returns the index currently served, nil before the first load.
func (server *Server) Index() *Index {
	return server.index.Load()
}

func jsonBody(httpHeaders map[string]string, v interface{}) (int, map[string]string, []byte) {
	b, err := json.Marshal(v)
	if err != nil {
		return 500, httpHeaders, []byte("Error encoding response")
	}
	httpHeaders["Content-Type"] = "application/json"
	return 200, httpHeaders, b
}

func (server *Server) getLookup(httpHeaders map[string]string, ix *Index, lat, lon float64) (int, map[string]string, []byte) {
	if !ValidLatLng(lat, lon) {
		return 400, httpHeaders, []byte("Coordinates out of range")
	}
	cell, zone, ok := ix.LookupCell(lat, lon)
	if ok {
		server.metrics.lookup(true, cell.Resolution())
	} else {
		server.metrics.lookup(false, 0)
		return 404, httpHeaders, []byte("Zone not found")
	}
	return jsonBody(httpHeaders, LookupResponse{Zone: zone, Cell: cell.String(), Resolution: cell.Resolution()})
}

func getCell(httpHeaders map[string]string, lat, lon float64, res int) (int, map[string]string, []byte) {
	if !ValidLatLng(lat, lon) {
		return 400, httpHeaders, []byte("Coordinates out of range")
	}
	if res < 0 || res > MaxResolution {
		return 400, httpHeaders, []byte("Resolution out of range")
	}
	cell := LatLngToCell(lat, lon, res)
	return jsonBody(httpHeaders, CellResponse{
		Cell:       cell.String(),
		Resolution: res,
		BaseCell:   cell.BaseCell(),
		Pentagon:   cell.IsPentagon(),
	})
}

const numberPattern = `(-?[0-9]+(?:\.[0-9]+)?)`

var lookupPattern = regexp.MustCompile(`^\/lookup\/` + numberPattern + `\/` + numberPattern + `$`)
var cellPattern = regexp.MustCompile(`^\/cell\/` + numberPattern + `\/` + numberPattern + `\/(\d+)$`)

func parseLookupPath(path string) (bool, float64, float64) {
	if res := lookupPattern.FindStringSubmatch(path); res != nil {
		lat, _ := strconv.ParseFloat(res[1], 64)
		lon, _ := strconv.ParseFloat(res[2], 64)
		return true, lat, lon
	}
	return false, 0, 0
}

func parseCellPath(path string) (bool, float64, float64, int) {
	if res := cellPattern.FindStringSubmatch(path); res != nil {
		lat, _ := strconv.ParseFloat(res[1], 64)
		lon, _ := strconv.ParseFloat(res[2], 64)
		r, err := strconv.Atoi(res[3])
		if err != nil {
			r = -1
		}
		return true, lat, lon, r
	}
	return false, 0, 0, 0
}

// Get answers a request path with a status code, headers and body.
func (server *Server) Get(ctx context.Context, path string) (int, map[string]string, []byte) {
	tracker := server.metrics.startRequest()
	handler, status, headers, body := server.get(path)
	tracker.finish(ctx, handler, status, len(body))
	return status, headers, body
}

func (server *Server) get(path string) (string, int, map[string]string, []byte) {
	httpHeaders := make(map[string]string)

	if ok, lat, lon, res := parseCellPath(path); ok {
		status, headers, body := getCell(httpHeaders, lat, lon, res)
		return "cell", status, headers, body
	}

	ix := server.index.Load()
	if ok, lat, lon := parseLookupPath(path); ok {
		if ix == nil {
			return "lookup", 503, httpHeaders, []byte("Index not loaded")
		}
		status, headers, body := server.getLookup(httpHeaders, ix, lat, lon)
		return "lookup", status, headers, body
	}
	if path == "/zones" {
		if ix == nil {
			return "zones", 503, httpHeaders, []byte("Index not loaded")
		}
		status, headers, body := jsonBody(httpHeaders, ix.Zones)
		return "zones", status, headers, body
	}

	if path == "/" {
		return "root", 204, httpHeaders, []byte{}
	}

	return "404", 404, httpHeaders, []byte("Path not found")
}

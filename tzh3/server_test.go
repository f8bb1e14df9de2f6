package tzh3

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, items map[string][]byte) *Server {
	logger := log.New(io.Discard, "", log.Ldate)
	server, err := NewServerWithBucket(mockBucket{items: items}, "zones.tzh3", logger, 0)
	require.Nil(t, err)
	return server
}

func TestRegex(t *testing.T) {
	ok, lat, lon := parseLookupPath("/lookup/35.6762/139.6503")
	assert.True(t, ok)
	assert.Equal(t, 35.6762, lat)
	assert.Equal(t, 139.6503, lon)

	ok, lat, lon = parseLookupPath("/lookup/-33/151")
	assert.True(t, ok)
	assert.Equal(t, -33.0, lat)
	assert.Equal(t, 151.0, lon)

	ok, _, _ = parseLookupPath("/lookup/35.6762")
	assert.False(t, ok)
	ok, _, _ = parseLookupPath("/lookup/abc/1")
	assert.False(t, ok)
	ok, _, _ = parseLookupPath("/lookup/1e5/1")
	assert.False(t, ok)

	ok, lat, lon, res := parseCellPath("/cell/0/0/5")
	assert.True(t, ok)
	assert.Equal(t, 0.0, lat)
	assert.Equal(t, 0.0, lon)
	assert.Equal(t, 5, res)

	ok, _, _, _ = parseCellPath("/cell/0/0/-1")
	assert.False(t, ok)
}

func TestServerNotLoaded(t *testing.T) {
	server := newTestServer(t, map[string][]byte{})
	status, _, _ := server.Get(context.Background(), "/lookup/0/0")
	assert.Equal(t, 503, status)
	status, _, _ = server.Get(context.Background(), "/zones")
	assert.Equal(t, 503, status)

	_, err := server.Reload(context.Background())
	assert.NotNil(t, err)
	assert.Nil(t, server.Index())
}

func TestServerLookup(t *testing.T) {
	data, _ := Encode(fixtureIndex(), true)
	server := newTestServer(t, map[string][]byte{"zones.tzh3": data})
	changed, err := server.Reload(context.Background())
	require.Nil(t, err)
	assert.True(t, changed)

	status, headers, body := server.Get(context.Background(), "/lookup/35.6762/139.6503")
	assert.Equal(t, 200, status)
	assert.Equal(t, "application/json", headers["Content-Type"])
	var resp LookupResponse
	require.Nil(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "Asia/Tokyo", resp.Zone)
	assert.Equal(t, "842f5a3ffffffff", resp.Cell)
	assert.Equal(t, 4, resp.Resolution)

	status, _, body = server.Get(context.Background(), "/lookup/51.5074/-0.1278")
	assert.Equal(t, 404, status)
	assert.Equal(t, "Zone not found", string(body))

	status, _, _ = server.Get(context.Background(), "/lookup/95/0")
	assert.Equal(t, 400, status)
}

func TestServerCell(t *testing.T) {
	server := newTestServer(t, map[string][]byte{})
	status, _, body := server.Get(context.Background(), "/cell/37.3615593/-122.0553238/5")
	assert.Equal(t, 200, status)
	var resp CellResponse
	require.Nil(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "85283473fffffff", resp.Cell)
	assert.Equal(t, 5, resp.Resolution)
	assert.Equal(t, 20, resp.BaseCell)
	assert.False(t, resp.Pentagon)

	status, _, _ = server.Get(context.Background(), "/cell/0/0/16")
	assert.Equal(t, 400, status)
	status, _, _ = server.Get(context.Background(), "/cell/0/181/3")
	assert.Equal(t, 400, status)
}

func TestServerZonesAndRoot(t *testing.T) {
	data, _ := Encode(fixtureIndex(), false)
	server := newTestServer(t, map[string][]byte{"zones.tzh3": data})
	_, err := server.Reload(context.Background())
	require.Nil(t, err)

	status, _, body := server.Get(context.Background(), "/zones")
	assert.Equal(t, 200, status)
	var zones []string
	require.Nil(t, json.Unmarshal(body, &zones))
	assert.Equal(t, []string{"Asia/Tokyo", "Australia/Sydney", "America/New_York"}, zones)

	status, _, _ = server.Get(context.Background(), "/")
	assert.Equal(t, 204, status)

	status, _, _ = server.Get(context.Background(), "/tiles/0/0/0.mvt")
	assert.Equal(t, 404, status)
}

func TestServerReload(t *testing.T) {
	data, _ := Encode(fixtureIndex(), false)
	items := map[string][]byte{"zones.tzh3": data}
	server := newTestServer(t, items)

	changed, err := server.Reload(context.Background())
	require.Nil(t, err)
	assert.True(t, changed)
	first := server.Index()

	changed, err = server.Reload(context.Background())
	require.Nil(t, err)
	assert.False(t, changed)
	assert.Same(t, first, server.Index())

	// a broken upload keeps the previous index
	items["zones.tzh3"] = []byte("TZH3\x02\x00\x00")
	_, err = server.Reload(context.Background())
	assert.NotNil(t, err)
	assert.Same(t, first, server.Index())

	data, _ = Encode(utcIndex(), false)
	items["zones.tzh3"] = data
	changed, err = server.Reload(context.Background())
	require.Nil(t, err)
	assert.True(t, changed)
	status, _, body := server.Get(context.Background(), "/zones")
	assert.Equal(t, 200, status)
	assert.Equal(t, `["UTC"]`, string(body))
}

func TestServerStart(t *testing.T) {
	data, _ := Encode(utcIndex(), false)
	server := newTestServer(t, map[string][]byte{"zones.tzh3": data})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.Start(ctx)
	assert.Eventually(t, func() bool { return server.Index() != nil }, time.Second, 5*time.Millisecond)
}

func TestServerConcurrentReload(t *testing.T) {
	data, _ := Encode(utcIndex(), false)
	logger := log.New(io.Discard, "", log.Ldate)
	server, err := NewServerWithBucket(mockBucket{items: map[string][]byte{"zones.tzh3": data}}, "zones.tzh3", logger, time.Millisecond)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.Start(ctx)

	var wg sync.WaitGroup
	installed := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := server.Reload(ctx)
			assert.Nil(t, err)
			installed <- changed
		}()
	}
	wg.Wait()
	close(installed)

	// the first load, from Start or from one of the calls, is the only change
	count := 0
	for changed := range installed {
		if changed {
			count++
		}
	}
	assert.LessOrEqual(t, count, 1)
	assert.NotNil(t, server.Index())
}

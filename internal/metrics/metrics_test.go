package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Cache(t *testing.T) {
	t.Parallel()
	m := New()

	assert.InDelta(t, 0.0, m.Snapshot().CacheHitRate(), 0.001)

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.CacheHits)
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.InDelta(t, 75.0, snap.CacheHitRate(), 0.001)
}

func TestMetrics_AddressRequests(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordAddressRequest("OPEN", 100*time.Millisecond, false)
	m.RecordAddressRequest("OPEN", 50*time.Millisecond, true)
	m.RecordStaleCompletion()
	m.RecordResolution("resolved")
	m.RecordResolution("resolved")
	m.RecordResolution("error")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.AddressRequests["OPEN"])
	assert.Equal(t, int64(1), snap.RequestFailures)
	assert.Equal(t, int64(1), snap.StaleCompletions)
	assert.Equal(t, int64(2), snap.Resolutions["resolved"])
	assert.Equal(t, int64(1), snap.Resolutions["error"])
}

func TestMetrics_HTTPRequests(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordHTTPRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)
	m.RecordHTTPRequest(http.MethodPost, "/v1/deposit", http.StatusBadRequest, 2*time.Millisecond)

	assert.Equal(t, int64(2), m.Snapshot().HTTPRequests)
}

func TestMetrics_Isolated(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	a.RecordCacheHit()
	assert.Equal(t, int64(0), b.Snapshot().CacheHits)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordAddressRequest("OPEN", time.Millisecond, false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // test server
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `depositor_address_requests_total{gateway="OPEN",outcome="success"} 1`)
}

func TestMetrics_Concurrent(t *testing.T) {
	t.Parallel()
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordCacheMiss()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.Snapshot().CacheMisses)
}

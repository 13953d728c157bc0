package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/depositor/internal/cache"
	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/gatewayapi"
	"github.com/mrz1836/depositor/internal/metrics"
	"github.com/mrz1836/depositor/internal/resolver"
)

type fixture struct {
	handler http.Handler
	metrics *metrics.Metrics
	cache   *cache.AddressCache
	trades  *atomic.Int32
}

// newFixture wires the server to a fake OpenLedger API answering every
// initiate-trade request with a fixed address.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	trades := &atomic.Int32{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trades.Add(1)
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"inputAddress":   "1BtcAddrFor" + req["outputAddress"],
			"outputCoinType": req["outputCoinType"],
		})
	}))
	t.Cleanup(api.Close)

	reg := gateway.DefaultRegistry()
	cat := catalog.Defaults(reg)
	store := cache.NewAddressCache()
	m := metrics.New()

	client := gatewayapi.NewClient(&gatewayapi.ClientOptions{BaseURL: api.URL, Timeout: 5 * time.Second})
	router := gatewayapi.NewRouter()
	router.Route(gateway.OPEN, gatewayapi.NewAsync(client, 5*time.Second))

	srv := New(Options{
		Registry: reg,
		Catalog:  cat,
		Metrics:  m,
		Version:  "test",
		NewResolver: func(ctx context.Context, account string, opts ...resolver.Option) (*resolver.Resolver, error) {
			base := []resolver.Option{resolver.WithAutoSelect(true), resolver.WithMetrics(m), resolver.WithContext(ctx)}
			return resolver.New(account, resolver.Deps{
				Registry:  reg,
				Catalog:   cat,
				Cache:     store,
				Requester: router,
			}, append(base, opts...)...)
		},
	})
	return &fixture{handler: srv.Handler(), metrics: m, cache: store, trades: trades}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(gatewayapi.RequestIDHeader))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.InDelta(t, 7, body["assets"], 0)
}

func TestRequestIDPropagated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(gatewayapi.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(gatewayapi.RequestIDHeader))
}

func TestGateways(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/gateways?asset=eos", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Asset    string                `json:"asset"`
		Gateways []gatewayAvailability `json:"gateways"`
	}](t, rec)
	assert.Equal(t, "EOS", body.Asset)
	require.Len(t, body.Gateways, 2)
	for _, g := range body.Gateways {
		require.NotNil(t, g.Available)
		assert.True(t, *g.Available, g.ID)
	}

	rec = f.do(t, http.MethodGet, "/v1/gateways?asset=GOLOS", nil)
	body = decode[struct {
		Asset    string                `json:"asset"`
		Gateways []gatewayAvailability `json:"gateways"`
	}](t, rec)
	for _, g := range body.Gateways {
		assert.Equal(t, g.ID == gateway.RUDEX, *g.Available, g.ID)
	}
}

func TestAssets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]string](t, rec)
	assert.Contains(t, body["assets"], "BTC")
	assert.Contains(t, body["assets"], "GOLOS")
}

func TestDeposit(t *testing.T) {
	t.Parallel()

	t.Run("open address is fetched then cached", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "alice", Asset: "BTC"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[depositResponse](t, rec)
		assert.Equal(t, "resolved", body.State.Phase)
		require.NotNil(t, body.State.Target)
		assert.Equal(t, "1BtcAddrForalice", body.State.Target.Address)
		assert.Equal(t, "OPEN", body.View.Gateway)
		assert.Equal(t, "OPEN.BTC", body.View.OutputAsset)
		assert.True(t, body.View.ShowQR)

		target, ok := f.cache.Get(gateway.OPEN, "alice", "BTC")
		require.True(t, ok)
		assert.Equal(t, "1BtcAddrForalice", target.Address)

		rec = f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "alice", Asset: "OPEN.BTC"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int32(1), f.trades.Load())
		assert.Equal(t, int64(1), f.metrics.Snapshot().CacheHits)
	})

	t.Run("named gateway issues one request", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "alice", Asset: "BTC", Gateway: "OPEN"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[depositResponse](t, rec)
		assert.Equal(t, "resolved", body.State.Phase)
		assert.Equal(t, int32(1), f.trades.Load())
		assert.Equal(t, int64(0), f.metrics.Snapshot().StaleCompletions)
	})

	t.Run("rudex memo", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "bob", Asset: "EOS", Gateway: "rudex"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[depositResponse](t, rec)
		require.NotNil(t, body.State.Target)
		assert.Equal(t, "rudex-gateway", body.State.Target.Address)
		assert.Equal(t, "dex:bob", body.State.Target.Memo)
		assert.False(t, body.View.ShowQR)
		assert.Equal(t, int32(0), f.trades.Load())
	})

	t.Run("multiple gateways wait for a choice", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "bob", Asset: "EOS"})
		body := decode[depositResponse](t, rec)
		assert.Equal(t, "selecting_gateway", body.State.Phase)
		assert.Equal(t, []gateway.ID{gateway.OPEN, gateway.RUDEX}, body.State.Gateways)
		assert.Nil(t, body.State.Target)
	})

	t.Run("native asset", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "carol", Asset: "BTS"})
		body := decode[depositResponse](t, rec)
		assert.Equal(t, "resolved", body.State.Phase)
		assert.Equal(t, "carol", body.State.Target.Address)
		assert.False(t, body.View.UsingGateway)
	})

	t.Run("unsupported pair", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: "carol", Asset: "BTC", Gateway: "RUDEX"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[depositResponse](t, rec)
		assert.Equal(t, "error", body.State.Phase)
		require.NotNil(t, body.State.Error)
		assert.Equal(t, "UNSUPPORTED_ASSET_FOR_GATEWAY", body.State.Error.Code)
		assert.Nil(t, body.State.Target)
	})

	t.Run("bad input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/v1/deposit", map[string]string{"account": "alice"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "INVALID_INPUT", body.Error.Code)

		rec = f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Account: " ", Asset: "BTC"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body = decode[errorBody](t, rec)
		assert.Equal(t, "INVALID_ACCOUNT", body.Error.Code)
	})
}

func TestQR(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/qr?data=1BtcAddr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = f.do(t, http.MethodGet, "/v1/qr", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.do(t, http.MethodGet, "/healthz", nil)
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `depositor_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestRun_shutdown(t *testing.T) {
	t.Parallel()
	srv := New(Options{Registry: gateway.DefaultRegistry(), Catalog: catalog.Defaults(gateway.DefaultRegistry())})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

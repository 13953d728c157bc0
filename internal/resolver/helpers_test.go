package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/depositor/internal/cache"
	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/metrics"
)

// fakeRequester records requests and holds their callbacks until completed.
// With respond set it answers synchronously inside RequestDepositAddress.
type fakeRequester struct {
	mu        sync.Mutex
	requests  []deposit.AddressRequest
	callbacks []func(deposit.Target)
	respond   *deposit.Target
}

func (f *fakeRequester) RequestDepositAddress(_ context.Context, req deposit.AddressRequest, onComplete func(deposit.Target)) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.callbacks = append(f.callbacks, onComplete)
	resp := f.respond
	f.mu.Unlock()

	if resp != nil {
		onComplete(*resp)
	}
}

func (f *fakeRequester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRequester) request(i int) deposit.AddressRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func (f *fakeRequester) complete(i int, t deposit.Target) {
	f.mu.Lock()
	cb := f.callbacks[i]
	f.mu.Unlock()
	cb(t)
}

// countingCache wraps an AddressCache and counts calls.
type countingCache struct {
	*cache.AddressCache

	mu    sync.Mutex
	gets  int
	puts  int
	onPut func()
}

func newCountingCache() *countingCache {
	return &countingCache{AddressCache: cache.NewAddressCache()}
}

func (c *countingCache) Get(id gateway.ID, account, asset string) (deposit.Target, bool) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.AddressCache.Get(id, account, asset)
}

func (c *countingCache) Put(id gateway.ID, account, asset string, t deposit.Target) {
	c.mu.Lock()
	c.puts++
	hook := c.onPut
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	c.AddressCache.Put(id, account, asset, t)
}

func (c *countingCache) calls() (gets, puts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.puts
}

// recordingLogger keeps every formatted message.
type recordingLogger struct {
	mu     sync.Mutex
	debug  []string
	errors []string
}

func (l *recordingLogger) Debug(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = append(l.debug, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

type fixture struct {
	resolver  *Resolver
	registry  *gateway.Registry
	catalog   *catalog.Catalog
	cache     *countingCache
	requester *fakeRequester
	logger    *recordingLogger
	metrics   *metrics.Metrics
}

// newFixture builds a resolver over the default gateways and a small catalog:
// BTC on OPEN, EOS on OPEN and RUDEX.
func newFixture(t *testing.T, account string, opts ...Option) *fixture {
	t.Helper()

	reg := gateway.DefaultRegistry()
	cat := catalog.New(reg)
	cat.Set(gateway.OPEN, []catalog.BackingAsset{
		{Symbol: "OPEN.BTC", BackingCoinType: "BTC", GateFee: "0.0005", Precision: 8},
		{Symbol: "OPEN.EOS", BackingCoinType: "EOS", GateFee: "0.5", Precision: 6},
	})
	cat.Set(gateway.RUDEX, []catalog.BackingAsset{
		{Symbol: "RUDEX.EOS", BackingCoin: "EOS", GatewayWallet: "rudexwallet1", MinAmount: 10000, Precision: 4},
	})

	f := &fixture{
		registry:  reg,
		catalog:   cat,
		cache:     newCountingCache(),
		requester: &fakeRequester{},
		logger:    &recordingLogger{},
		metrics:   metrics.New(),
	}

	opts = append([]Option{WithLogger(f.logger), WithMetrics(f.metrics)}, opts...)
	r, err := New(account, Deps{
		Registry:  reg,
		Catalog:   cat,
		Cache:     f.cache,
		Requester: f.requester,
	}, opts...)
	require.NoError(t, err)
	f.resolver = r
	return f
}

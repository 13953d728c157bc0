package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

func TestNew(t *testing.T) {
	t.Parallel()
	deps := Deps{
		Catalog:   catalog.New(nil),
		Cache:     newCountingCache(),
		Requester: &fakeRequester{},
	}

	t.Run("blank account", func(t *testing.T) {
		t.Parallel()
		_, err := New("  ", deps)
		require.ErrorIs(t, err, deperr.ErrInvalidAccount)
	})

	t.Run("missing collaborator", func(t *testing.T) {
		t.Parallel()
		_, err := New("alice", Deps{Catalog: deps.Catalog})
		require.ErrorIs(t, err, deperr.ErrInvalidInput)
	})

	t.Run("starts idle", func(t *testing.T) {
		t.Parallel()
		r, err := New(" alice ", deps)
		require.NoError(t, err)
		s := r.State()
		assert.Equal(t, PhaseIdle, s.Phase)
		assert.Equal(t, "alice", s.Account)
		assert.Equal(t, "alice", r.Account())
		assert.Nil(t, s.Target)
	})
}

func TestSelectAsset_NativeResolvesDirectly(t *testing.T) {
	t.Parallel()
	for _, symbol := range []string{"BTS", "bts", "CNY", "FOO.BAR"} {
		t.Run(symbol, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, "acct1")

			f.resolver.SelectAsset(symbol)

			s := f.resolver.State()
			assert.Equal(t, PhaseResolved, s.Phase)
			assert.True(t, s.Direct())
			require.NotNil(t, s.Target)
			assert.Equal(t, deposit.Target{Address: "acct1"}, *s.Target)
			assert.Equal(t, 0, s.AvailableGatewayCount())
			assert.Equal(t, 0, f.requester.count())
		})
	}
}

func TestSelectAsset_BackedAssetWaitsForGateway(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")

	f.resolver.SelectAsset("eos")

	s := f.resolver.State()
	assert.Equal(t, PhaseSelectingGateway, s.Phase)
	assert.Equal(t, "EOS", s.Asset)
	assert.Nil(t, s.Target)
	assert.Equal(t, 2, f.resolver.AvailableGatewayCount())
	assert.Equal(t, []gateway.ID{gateway.OPEN, gateway.RUDEX}, s.EnabledGateways())

	f.resolver.SelectAsset("BTC")
	s = f.resolver.State()
	assert.Equal(t, map[gateway.ID]bool{gateway.OPEN: true, gateway.RUDEX: false}, s.Availability)
	assert.Equal(t, PhaseSelectingGateway, s.Phase, "auto-select is off by default")
	assert.Equal(t, 0, f.requester.count())
}

func TestSelectAsset_AutoSelectsSoleGateway(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1", WithAutoSelect(true))

	f.resolver.SelectAsset("BTC")
	s := f.resolver.State()
	assert.Equal(t, PhaseFetching, s.Phase)
	assert.Equal(t, gateway.OPEN, s.Gateway)
	assert.Equal(t, 1, f.requester.count())

	f.resolver.SelectAsset("EOS")
	assert.Equal(t, PhaseSelectingGateway, f.resolver.State().Phase, "two gateways need a choice")
}

func TestSelectAsset_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.resolver.SelectAsset("BTS")
	f.resolver.SelectAsset("")

	s := f.resolver.State()
	assert.Equal(t, PhaseSelectingAsset, s.Phase)
	assert.Empty(t, s.Asset)
	assert.Nil(t, s.Target)
}

func TestSelectGateway_UnsupportedAsset(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")

	f.resolver.SelectAsset("BTC")
	f.resolver.SelectGateway(gateway.RUDEX)

	s := f.resolver.State()
	assert.Equal(t, PhaseError, s.Phase)
	assert.Nil(t, s.Target)
	assert.Equal(t, gateway.RUDEX, s.Gateway, "selection is still recorded")
	assert.Equal(t, "BTC", s.Asset)
	require.ErrorIs(t, s.Err, deperr.ErrUnsupportedAssetForGateway)

	// The user can pick another gateway afterwards.
	f.resolver.SelectGateway(gateway.OPEN)
	assert.Equal(t, PhaseFetching, f.resolver.State().Phase)
}

func TestSelectGateway_UnknownGateway(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.resolver.SelectAsset("BTC")

	f.resolver.SelectGateway("NOPE")

	s := f.resolver.State()
	assert.Equal(t, PhaseError, s.Phase)
	assert.Nil(t, s.Target)
	assert.Equal(t, gateway.ID("NOPE"), s.Gateway)
	require.ErrorIs(t, s.Err, deperr.ErrUnknownGateway)
	assert.Equal(t, 1, f.logger.errorCount())
}

func TestSelectGateway_NoStrategy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.registry.Register(gateway.Gateway{ID: "BRIDGE", Strategy: gateway.StrategyNone})
	f.catalog.Set("BRIDGE", []catalog.BackingAsset{{BackingCoinType: "BTC"}})

	f.resolver.SelectAsset("BTC")
	f.resolver.SelectGateway("BRIDGE")

	s := f.resolver.State()
	assert.Equal(t, PhaseError, s.Phase)
	require.ErrorIs(t, s.Err, deperr.ErrUnknownGateway)
	assert.Nil(t, s.Target)
	assert.Equal(t, 1, f.logger.errorCount())
	assert.Equal(t, 0, f.requester.count())
}

func TestSelectGateway_ClearSelection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.resolver.SelectAsset("BTC")
	f.resolver.SelectGateway(gateway.OPEN)
	f.resolver.SelectGateway("")

	s := f.resolver.State()
	assert.Equal(t, PhaseSelectingGateway, s.Phase)
	assert.True(t, s.Direct())
	assert.Nil(t, s.Target)
	assert.False(t, s.Fetching)
}

func TestCacheThenRequest_CacheHit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.cache.AddressCache.Put(gateway.OPEN, "acct1", "btc", deposit.Target{Address: "cached-addr"})

	f.resolver.SelectAsset("OPEN.BTC")

	s := f.resolver.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	require.NotNil(t, s.Target)
	assert.Equal(t, "cached-addr", s.Target.Address)
	assert.Equal(t, 0, f.requester.count(), "a cache hit never reaches the gateway")
	assert.Equal(t, int64(1), f.metrics.Snapshot().CacheHits)
}

func TestCacheThenRequest_OpenBTCScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")

	f.resolver.SelectAsset("OPEN.BTC")

	s := f.resolver.State()
	assert.Equal(t, PhaseFetching, s.Phase)
	assert.True(t, s.Fetching)
	assert.Nil(t, s.Target)
	assert.Equal(t, gateway.OPEN, s.Gateway)
	assert.Equal(t, "BTC", s.Asset)

	require.Equal(t, 1, f.requester.count())
	assert.Equal(t, deposit.AddressRequest{
		InputCoinType:  "btc",
		OutputCoinType: "open.btc",
		OutputAddress:  "acct1",
	}, f.requester.request(0))

	f.requester.complete(0, deposit.Target{Address: "1A2b3C"})

	s = f.resolver.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	assert.False(t, s.Fetching)
	require.NotNil(t, s.Target)
	assert.Equal(t, deposit.Target{Address: "1A2b3C"}, *s.Target)

	cached, ok := f.cache.AddressCache.Get(gateway.OPEN, "acct1", "BTC")
	require.True(t, ok)
	assert.Equal(t, "1A2b3C", cached.Address)
	assert.Equal(t, 1, f.requester.count())
}

func TestCacheThenRequest_PutsBeforeResolving(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")

	var phaseAtPut Phase
	f.cache.onPut = func() { phaseAtPut = f.resolver.State().Phase }

	f.resolver.SelectAsset("OPEN.BTC")
	f.requester.complete(0, deposit.Target{Address: "addr"})

	_, puts := f.cache.calls()
	assert.Equal(t, 1, puts)
	assert.Equal(t, PhaseFetching, phaseAtPut)
	assert.Equal(t, PhaseResolved, f.resolver.State().Phase)
}

func TestCacheThenRequest_SynchronousCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.requester.respond = &deposit.Target{Address: "sync-addr", Memo: "m1"}

	done := make(chan struct{})
	go func() {
		f.resolver.SelectAsset("OPEN.EOS")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("synchronous completion deadlocked")
	}

	s := f.resolver.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	assert.Equal(t, deposit.Target{Address: "sync-addr", Memo: "m1"}, *s.Target)
}

func TestCacheThenRequest_GatewayFailure(t *testing.T) {
	t.Parallel()

	for name, target := range map[string]deposit.Target{
		"error target":  deposit.Failed("coin is disabled"),
		"empty address": {},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, "acct1")

			f.resolver.SelectAsset("OPEN.BTC")
			f.requester.complete(0, target)

			s := f.resolver.State()
			assert.Equal(t, PhaseError, s.Phase)
			assert.False(t, s.Fetching)
			require.NotNil(t, s.Target)
			assert.True(t, s.Target.IsError())
			require.ErrorIs(t, s.Err, deperr.ErrAddressGenerationFailure)

			_, puts := f.cache.calls()
			assert.Equal(t, 0, puts, "failures are never cached")
			assert.Equal(t, 1, f.requester.count(), "failures are not retried")
			assert.Equal(t, int64(1), f.metrics.Snapshot().RequestFailures)
		})
	}
}

func TestCacheThenRequest_CallbackAppliedOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")

	f.resolver.SelectAsset("OPEN.BTC")
	f.requester.complete(0, deposit.Target{Address: "first"})
	f.requester.complete(0, deposit.Target{Address: "second"})

	assert.Equal(t, "first", f.resolver.State().Target.Address)
	_, puts := f.cache.calls()
	assert.Equal(t, 1, puts)
}

func TestStaticWallet_RudexEOSScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct2")

	f.resolver.SelectAsset("RUDEX.EOS")

	s := f.resolver.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	assert.Equal(t, gateway.RUDEX, s.Gateway)
	require.NotNil(t, s.Target)
	assert.Equal(t, deposit.Target{Address: "rudexwallet1", Memo: "dex:acct2"}, *s.Target)
	require.NotNil(t, s.Backing)
	assert.Equal(t, int64(10000), s.Backing.MinAmount)

	gets, puts := f.cache.calls()
	assert.Equal(t, 0, gets)
	assert.Equal(t, 0, puts)
	assert.Equal(t, 0, f.requester.count())
}

func TestStaticWallet_MemoAlwaysCarriesAccount(t *testing.T) {
	t.Parallel()
	for _, account := range []string{"a", "acct-2", "some.account"} {
		f := newFixture(t, account)
		f.resolver.SelectAsset("EOS")
		f.resolver.SelectGateway(gateway.RUDEX)

		s := f.resolver.State()
		require.NotNil(t, s.Target)
		assert.Equal(t, "dex:"+account, s.Target.Memo)
	}
}

func TestSupersedingSelection(t *testing.T) {
	t.Parallel()

	t.Run("slow request then static gateway", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")

		f.resolver.SelectAsset("EOS")
		f.resolver.SelectGateway(gateway.OPEN)
		require.Equal(t, 1, f.requester.count())

		f.resolver.SelectGateway(gateway.RUDEX)
		want := f.resolver.State()
		require.Equal(t, PhaseResolved, want.Phase)

		f.requester.complete(0, deposit.Target{Address: "late-open-addr"})

		s := f.resolver.State()
		assert.Equal(t, PhaseResolved, s.Phase)
		assert.Equal(t, gateway.RUDEX, s.Gateway)
		assert.Equal(t, *want.Target, *s.Target)
		assert.Equal(t, int64(1), f.metrics.Snapshot().StaleCompletions)

		cached, ok := f.cache.AddressCache.Get(gateway.OPEN, "acct1", "EOS")
		require.True(t, ok, "a stale success is still cached under its own key")
		assert.Equal(t, "late-open-addr", cached.Address)
	})

	t.Run("out of order completions", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")

		f.resolver.SelectAsset("OPEN.BTC")
		f.resolver.SelectAsset("OPEN.EOS")
		require.Equal(t, 2, f.requester.count())

		f.requester.complete(1, deposit.Target{Address: "eos-addr"})
		f.requester.complete(0, deposit.Target{Address: "btc-addr"})

		s := f.resolver.State()
		assert.Equal(t, "EOS", s.Asset)
		assert.Equal(t, "eos-addr", s.Target.Address)
	})

	t.Run("stale failure is dropped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")

		f.resolver.SelectAsset("OPEN.BTC")
		f.resolver.SelectAsset("BTS")
		f.requester.complete(0, deposit.Failed("boom"))

		s := f.resolver.State()
		assert.Equal(t, PhaseResolved, s.Phase)
		assert.NoError(t, s.Err)
		assert.Equal(t, "acct1", s.Target.Address)
	})

	t.Run("same selection twice uses the newest request", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")

		f.resolver.SelectAsset("OPEN.BTC")
		f.resolver.SelectAsset("OPEN.BTC")
		require.Equal(t, 2, f.requester.count())

		f.requester.complete(0, deposit.Target{Address: "old"})
		assert.Equal(t, PhaseFetching, f.resolver.State().Phase)

		f.requester.complete(1, deposit.Target{Address: "new"})
		assert.Equal(t, "new", f.resolver.State().Target.Address)
	})
}

func TestState_IsACopy(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.resolver.SelectAsset("RUDEX.EOS")

	s := f.resolver.State()
	s.Target.Address = "mutated"
	s.Availability[gateway.OPEN] = false

	fresh := f.resolver.State()
	assert.Equal(t, "rudexwallet1", fresh.Target.Address)
	assert.True(t, fresh.Availability[gateway.OPEN])
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")

	ch, cancel := f.resolver.Subscribe()
	first := <-ch
	assert.Equal(t, PhaseIdle, first.Phase)

	f.resolver.SelectAsset("OPEN.BTC")
	assert.Equal(t, PhaseFetching, (<-ch).Phase)

	f.requester.complete(0, deposit.Target{Address: "addr"})
	got := <-ch
	assert.Equal(t, PhaseResolved, got.Phase)
	assert.Equal(t, "addr", got.Target.Address)

	// Latest wins for slow readers.
	f.resolver.SelectAsset("EOS")
	f.resolver.SelectAsset("BTS")
	assert.Equal(t, "BTS", (<-ch).Asset)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestAwait(t *testing.T) {
	t.Parallel()

	t.Run("returns once the request completes", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")
		f.resolver.SelectAsset("OPEN.BTC")

		go func() {
			time.Sleep(20 * time.Millisecond)
			f.requester.complete(0, deposit.Target{Address: "addr"})
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s, err := f.resolver.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, PhaseResolved, s.Phase)
	})

	t.Run("returns immediately when not fetching", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")
		s, err := f.resolver.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PhaseIdle, s.Phase)
	})

	t.Run("honors context", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "acct1")
		f.resolver.SelectAsset("OPEN.BTC")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		s, err := f.resolver.Await(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, PhaseFetching, s.Phase)
	})
}

func TestConcurrentSelections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "acct1")
	f.requester.respond = &deposit.Target{Address: "addr"}

	symbols := []string{"OPEN.BTC", "RUDEX.EOS", "BTS", "EOS", "OPEN.EOS"}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.resolver.SelectAsset(symbols[i%len(symbols)])
			_ = f.resolver.State()
		}(i)
	}
	wg.Wait()

	s := f.resolver.State()
	assert.NotEqual(t, PhaseFetching, s.Phase)
	assert.Equal(t, uint64(50), s.Generation)
}

func TestPhase_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "selecting_asset", PhaseSelectingAsset.String())
	assert.Equal(t, "selecting_gateway", PhaseSelectingGateway.String())
	assert.Equal(t, "fetching", PhaseFetching.String())
	assert.Equal(t, "resolved", PhaseResolved.String())
	assert.Equal(t, "error", PhaseError.String())
	assert.Equal(t, "unknown", Phase(99).String())
	assert.True(t, PhaseError.Terminal())
	assert.False(t, PhaseFetching.Terminal())
}

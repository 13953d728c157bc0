package gatewayapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
)

type stubRequester struct {
	got chan deposit.AddressRequest
}

func (s *stubRequester) RequestDepositAddress(_ context.Context, req deposit.AddressRequest, onComplete func(deposit.Target)) {
	s.got <- req
	onComplete(deposit.Target{Address: "1BtcAddr"})
}

func TestRouter(t *testing.T) {
	t.Parallel()

	stub := &stubRequester{got: make(chan deposit.AddressRequest, 1)}
	r := NewRouter()
	r.Route(gateway.OPEN, stub)
	assert.Equal(t, 1, r.Routes())

	t.Run("routes by output coin prefix", func(t *testing.T) {
		done := make(chan deposit.Target, 1)
		r.RequestDepositAddress(context.Background(), deposit.NewAddressRequest("OPEN", "BTC", "alice"), func(tg deposit.Target) {
			done <- tg
		})
		req := <-stub.got
		assert.Equal(t, "open.btc", req.OutputCoinType)
		assert.Equal(t, "1BtcAddr", (<-done).Address)
	})

	t.Run("unrouted gateway fails", func(t *testing.T) {
		done := make(chan deposit.Target, 1)
		r.RequestDepositAddress(context.Background(), deposit.NewAddressRequest("RUDEX", "EOS", "alice"), func(tg deposit.Target) {
			done <- tg
		})
		select {
		case tg := <-done:
			require.True(t, tg.IsError())
			assert.Contains(t, tg.Error, "RUDEX")
		case <-time.After(time.Second):
			t.Fatal("no completion")
		}
	})
}

package gatewayapi

import (
	"context"
	"time"

	"github.com/mrz1836/depositor/internal/deposit"
)

// TradeInitiator performs a blocking deposit-address request.
type TradeInitiator interface {
	InitiateTrade(ctx context.Context, req deposit.AddressRequest) (deposit.Target, error)
}

// Async adapts a blocking TradeInitiator to the fire-and-forget callback
// contract: the callback runs exactly once on a separate goroutine, and any
// failure is delivered as an error-shaped target.
type Async struct {
	client  TradeInitiator
	timeout time.Duration
}

// NewAsync wraps client. A positive timeout bounds each request.
func NewAsync(client TradeInitiator, timeout time.Duration) *Async {
	return &Async{client: client, timeout: timeout}
}

// RequestDepositAddress starts the request and returns immediately.
func (a *Async) RequestDepositAddress(ctx context.Context, req deposit.AddressRequest, onComplete func(deposit.Target)) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		reqCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}

		target, err := a.client.InitiateTrade(reqCtx, req)
		if err != nil {
			target = deposit.Failed(err.Error())
		}
		onComplete(target)
	}()
}

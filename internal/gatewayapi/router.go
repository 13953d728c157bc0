package gatewayapi

import (
	"context"
	"strings"
	"sync"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
)

// AddressRequester is the callback-style deposit address contract.
type AddressRequester interface {
	RequestDepositAddress(ctx context.Context, req deposit.AddressRequest, onComplete func(deposit.Target))
}

// Router dispatches address requests to the requester of the gateway that
// issues the output coin, e.g. "open.btc" goes to OPEN.
type Router struct {
	mu     sync.RWMutex
	routes map[gateway.ID]AddressRequester
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[gateway.ID]AddressRequester)}
}

// Route registers the requester for gateway id.
func (r *Router) Route(id gateway.ID, requester AddressRequester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[id] = requester
}

// Routes returns the number of registered gateways.
func (r *Router) Routes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// RequestDepositAddress forwards req. Requests for gateways without a route
// complete immediately with an error target.
func (r *Router) RequestDepositAddress(ctx context.Context, req deposit.AddressRequest, onComplete func(deposit.Target)) {
	prefix, _ := deposit.SplitSymbol(req.OutputCoinType)
	id := gateway.ParseID(prefix)

	r.mu.RLock()
	requester, ok := r.routes[id]
	r.mu.RUnlock()

	if !ok {
		go onComplete(deposit.Failed("no api configured for gateway " + strings.ToUpper(prefix)))
		return
	}
	requester.RequestDepositAddress(ctx, req, onComplete)
}

// Package resolver turns asset and gateway selections into a deposit target.
//
// A Resolver is a small state machine. Selections are applied synchronously;
// the only asynchronous step is a gateway address request on a cache miss.
// Every selection bumps a generation counter and completions carrying an
// older generation are dropped, so a slow request can never overwrite the
// result of a newer selection.
package resolver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithAutoSelect selects the gateway automatically when exactly one backs
// the chosen asset.
func WithAutoSelect(enabled bool) Option {
	return func(r *Resolver) { r.autoSelect = enabled }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithContext sets the context handed to address requests.
func WithContext(ctx context.Context) Option {
	return func(r *Resolver) {
		if ctx != nil {
			r.ctx = ctx
		}
	}
}

// pendingRequest is an address request issued for one generation.
type pendingRequest struct {
	generation uint64
	gateway    gateway.ID
	account    string
	asset      string
	req        deposit.AddressRequest
}

// Resolver resolves deposit targets for a single account.
type Resolver struct {
	registry  *gateway.Registry
	catalog   Catalog
	cache     Cache
	requester AddressRequester
	account   string

	log        Logger
	metrics    Metrics
	ctx        context.Context //nolint:containedctx // request context for fire-and-forget calls
	autoSelect bool

	mu          sync.Mutex
	state       State
	changed     chan struct{}
	subscribers map[int]chan State
	nextSub     int
}

// New creates a Resolver for account.
func New(account string, deps Deps, opts ...Option) (*Resolver, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, deperr.WithSuggestion(deperr.ErrInvalidAccount, "provide the account that should receive the deposit")
	}
	if deps.Catalog == nil || deps.Cache == nil || deps.Requester == nil {
		return nil, deperr.Wrap(deperr.ErrInvalidInput, "resolver requires a catalog, a cache and an address requester")
	}
	if deps.Registry == nil {
		deps.Registry = gateway.DefaultRegistry()
	}

	r := &Resolver{
		registry:    deps.Registry,
		catalog:     deps.Catalog,
		cache:       deps.Cache,
		requester:   deps.Requester,
		account:     account,
		log:         nopLogger{},
		metrics:     nopMetrics{},
		ctx:         context.Background(),
		changed:     make(chan struct{}),
		subscribers: make(map[int]chan State),
		state: State{
			Phase:   PhaseIdle,
			Account: account,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Account returns the account deposits resolve to.
func (r *Resolver) Account() string {
	return r.account
}

// State returns a snapshot of the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// AvailableGatewayCount returns how many gateways back the selected asset.
func (r *Resolver) AvailableGatewayCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.AvailableGatewayCount()
}

// SelectAsset selects an asset symbol. A symbol prefixed with a registered
// gateway ("OPEN.BTC") selects that gateway too. An asset no gateway backs is
// native and resolves synchronously to the account itself. An empty symbol
// clears the selection.
func (r *Resolver) SelectAsset(symbol string) {
	r.mu.Lock()
	pending := r.selectAssetLocked(symbol)
	r.publishLocked()
	r.mu.Unlock()

	r.dispatch(pending)
}

// SelectGateway selects a gateway for the current asset. An empty id
// clears the gateway selection.
func (r *Resolver) SelectGateway(id gateway.ID) {
	r.mu.Lock()
	r.state.Generation++
	pending := r.selectGatewayLocked(id)
	r.publishLocked()
	r.mu.Unlock()

	r.dispatch(pending)
}

func (r *Resolver) selectAssetLocked(symbol string) *pendingRequest {
	r.state.Generation++

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		r.resetLocked(PhaseSelectingAsset, "", nil)
		return nil
	}

	prefix, base := deposit.SplitSymbol(symbol)
	if prefix != "" {
		if id := gateway.ParseID(prefix); r.registry.Has(id) {
			r.resetLocked(PhaseSelectingGateway, strings.ToUpper(base), r.availability(base))
			return r.selectGatewayLocked(id)
		}
	}

	asset := strings.ToUpper(symbol)
	avail := r.availability(asset)
	r.resetLocked(PhaseSelectingGateway, asset, avail)

	enabled := r.state.EnabledGateways()
	switch {
	case len(enabled) == 0:
		target := deposit.Direct(r.state.Account)
		r.state.Target = &target
		r.enterLocked(PhaseResolved)
		r.log.Debug("resolver: %s is native, depositing directly to %s", asset, r.state.Account)
	case len(enabled) == 1 && r.autoSelect:
		return r.selectGatewayLocked(enabled[0])
	}
	return nil
}

func (r *Resolver) selectGatewayLocked(id gateway.ID) *pendingRequest {
	id = gateway.ParseID(id.String())
	asset := r.state.Asset

	r.state.Gateway = id
	r.state.Target = nil
	r.state.Backing = nil
	r.state.Err = nil
	r.state.Fetching = false

	if id == "" {
		if r.state.AvailableGatewayCount() == 0 && asset != "" {
			target := deposit.Direct(r.state.Account)
			r.state.Target = &target
			r.enterLocked(PhaseResolved)
			return nil
		}
		r.state.Phase = PhaseSelectingGateway
		return nil
	}

	details := map[string]string{"gateway": id.String(), "asset": asset}

	if !r.registry.Has(id) {
		r.log.Error("resolver: unknown gateway %s for asset %s", id, asset)
		r.failLocked(deperr.WithDetails(deperr.ErrUnknownGateway, details))
		return nil
	}

	backing, ok := r.catalog.BackingAsset(id, asset)
	if !ok {
		r.log.Debug("resolver: gateway %s does not support %s", id, asset)
		r.failLocked(deperr.WithDetails(deperr.ErrUnsupportedAssetForGateway, details))
		return nil
	}
	r.state.Backing = &backing

	switch r.registry.StrategyFor(id) {
	case gateway.StrategyCacheThenRequest:
		return r.cacheThenRequestLocked(id, asset)

	case gateway.StrategyStaticWallet:
		target := deposit.Target{
			Address: backing.GatewayWallet,
			Memo:    gateway.MemoPrefix + r.state.Account,
		}
		r.state.Target = &target
		r.enterLocked(PhaseResolved)
		return nil

	default:
		r.log.Error("resolver: no resolution strategy for gateway %s (asset %s)", id, asset)
		r.failLocked(deperr.WithDetails(deperr.ErrUnknownGateway, details))
		return nil
	}
}

func (r *Resolver) cacheThenRequestLocked(id gateway.ID, asset string) *pendingRequest {
	account := r.state.Account
	if target, ok := r.cache.Get(id, account, asset); ok {
		r.metrics.RecordCacheHit()
		r.state.Target = &target
		r.enterLocked(PhaseResolved)
		return nil
	}
	r.metrics.RecordCacheMiss()

	r.state.Phase = PhaseFetching
	r.state.Fetching = true
	return &pendingRequest{
		generation: r.state.Generation,
		gateway:    id,
		account:    account,
		asset:      asset,
		req:        deposit.NewAddressRequest(id.String(), asset, account),
	}
}

// dispatch issues a pending request. It must be called without r.mu held:
// requesters are allowed to complete synchronously.
func (r *Resolver) dispatch(p *pendingRequest) {
	if p == nil {
		return
	}
	r.log.Debug("resolver: requesting %s deposit address for %s (generation %d)", p.req.OutputCoinType, p.account, p.generation)

	started := time.Now()
	var once sync.Once
	r.requester.RequestDepositAddress(r.ctx, p.req, func(target deposit.Target) {
		once.Do(func() { r.complete(p, target, time.Since(started)) })
	})
}

func (r *Resolver) complete(p *pendingRequest, target deposit.Target, took time.Duration) {
	if !target.Valid() && !target.IsError() {
		target = deposit.Failed("gateway returned no deposit address")
	}
	r.metrics.RecordAddressRequest(p.gateway.String(), took, target.IsError())

	// A successful address is valid for its own key whether or not the
	// selection moved on.
	if target.Valid() {
		r.cache.Put(p.gateway, p.account, p.asset, target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p.generation != r.state.Generation {
		r.metrics.RecordStaleCompletion()
		r.log.Debug("resolver: dropping stale %s completion (generation %d, current %d)",
			p.req.OutputCoinType, p.generation, r.state.Generation)
		return
	}

	r.state.Fetching = false
	r.state.Target = &target
	if target.IsError() {
		r.log.Error("resolver: %s address generation failed: %s", p.req.OutputCoinType, target.Error)
		r.state.Err = deperr.WithDetails(deperr.ErrAddressGenerationFailure, map[string]string{
			"gateway": p.gateway.String(),
			"asset":   p.asset,
			"reason":  target.Error,
		})
		r.enterLocked(PhaseError)
	} else {
		r.enterLocked(PhaseResolved)
	}
	r.publishLocked()
}

// availability maps every registered gateway to whether it backs asset.
func (r *Resolver) availability(asset string) map[gateway.ID]bool {
	avail := make(map[gateway.ID]bool)
	for _, g := range r.registry.All() {
		avail[g.ID] = false
	}
	for _, g := range r.catalog.GatewaysFor(asset) {
		if r.registry.Has(g.ID) {
			avail[g.ID] = true
		}
	}
	return avail
}

func (r *Resolver) resetLocked(phase Phase, asset string, avail map[gateway.ID]bool) {
	r.state = State{
		Phase:        phase,
		Account:      r.state.Account,
		Asset:        asset,
		Availability: avail,
		Generation:   r.state.Generation,
	}
}

func (r *Resolver) failLocked(err error) {
	r.state.Target = nil
	r.state.Err = err
	r.enterLocked(PhaseError)
}

func (r *Resolver) enterLocked(phase Phase) {
	r.state.Phase = phase
	r.state.Fetching = false
	if phase.Terminal() {
		r.metrics.RecordResolution(phase.String())
	}
}

// Subscribe returns a channel of state snapshots, starting with the current
// one. Delivery is latest-wins: a slow reader sees the newest state, not
// every intermediate one. cancel closes the channel.
func (r *Resolver) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = ch
	ch <- r.state.clone()
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Await blocks until the resolver is not fetching and returns that state.
func (r *Resolver) Await(ctx context.Context) (State, error) {
	for {
		r.mu.Lock()
		if r.state.Phase != PhaseFetching {
			s := r.state.clone()
			r.mu.Unlock()
			return s, nil
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return r.State(), ctx.Err()
		case <-changed:
		}
	}
}

func (r *Resolver) publishLocked() {
	snapshot := r.state.clone()
	for _, ch := range r.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
	close(r.changed)
	r.changed = make(chan struct{})
}

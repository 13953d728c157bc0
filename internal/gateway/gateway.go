// Package gateway defines deposit gateway identifiers, descriptors, and the
// per-gateway resolution strategy registry.
package gateway

import (
	"sort"
	"strings"
	"sync"
)

// ID identifies a gateway (bridge) service.
type ID string

// Known gateway identifiers.
const (
	OPEN  ID = "OPEN"
	RUDEX ID = "RUDEX"
)

// String returns the gateway identifier string.
func (id ID) String() string {
	return string(id)
}

// ParseID normalizes a gateway identifier. Gateway IDs are upper-case.
func ParseID(s string) ID {
	return ID(strings.ToUpper(strings.TrimSpace(s)))
}

// Strategy selects how a gateway's deposit target is produced.
type Strategy int

// Resolution strategies.
const (
	// StrategyNone means the gateway has no registered strategy.
	StrategyNone Strategy = iota
	// StrategyCacheThenRequest looks in the address cache, then asks the gateway API.
	StrategyCacheThenRequest
	// StrategyStaticWallet deposits to the gateway wallet with an account memo.
	StrategyStaticWallet
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyCacheThenRequest:
		return "cache_then_request"
	case StrategyStaticWallet:
		return "static_wallet"
	case StrategyNone:
		return "none"
	default:
		return "none"
	}
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cache_then_request", "request":
		return StrategyCacheThenRequest, true
	case "static_wallet", "static":
		return StrategyStaticWallet, true
	default:
		return StrategyNone, false
	}
}

// MemoPrefix is prepended to the account in static-wallet memos.
const MemoPrefix = "dex:"

// Gateway describes a gateway service.
type Gateway struct {
	ID         ID       `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	SupportURL string   `json:"support_url" yaml:"support_url"`
	Strategy   Strategy `json:"-" yaml:"-"`
}

// Defaults returns the built-in gateway descriptors.
func Defaults() []Gateway {
	return []Gateway{
		{
			ID:         OPEN,
			Name:       "OPENLEDGER",
			SupportURL: "https://wallet.bitshares.org/#/help/gateways/openledger",
			Strategy:   StrategyCacheThenRequest,
		},
		{
			ID:         RUDEX,
			Name:       "RUDEX",
			SupportURL: "https://wallet.bitshares.org/#/help/gateways/rudex",
			Strategy:   StrategyStaticWallet,
		},
	}
}

// Registry holds the gateways known to the application.
// New gateways register a descriptor with their strategy.
type Registry struct {
	mu       sync.RWMutex
	gateways map[ID]Gateway
}

// NewRegistry creates a registry holding the given gateways.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[ID]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// DefaultRegistry returns a registry with the built-in gateways.
func DefaultRegistry() *Registry {
	return NewRegistry(Defaults()...)
}

// Register adds or replaces a gateway.
func (r *Registry) Register(g Gateway) {
	g.ID = ParseID(g.ID.String())
	if g.Name == "" {
		g.Name = g.ID.String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.ID] = g
}

// Get returns the gateway for id.
func (r *Registry) Get(id ID) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[ParseID(id.String())]
	return g, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	_, ok := r.Get(id)
	return ok
}

// StrategyFor returns the strategy registered for id.
func (r *Registry) StrategyFor(id ID) Strategy {
	g, ok := r.Get(id)
	if !ok {
		return StrategyNone
	}
	return g.Strategy
}

// All returns every registered gateway sorted by ID.
func (r *Registry) All() []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Gateway, 0, len(r.gateways))
	for _, g := range r.gateways {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every registered gateway identifier as strings, sorted.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, len(all))
	for i, g := range all {
		ids[i] = g.ID.String()
	}
	return ids
}

// Package catalog maps assets to the gateways that back them and to the
// per-gateway backing-asset metadata.
package catalog

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/mrz1836/depositor/internal/gateway"
)

// maxSuggestionDistance bounds how different a suggestion may be from the
// input. Symbols of shortSymbolLen runes or fewer allow one edit only, since
// short tickers sit within two edits of each other.
const (
	maxSuggestionDistance = 2
	shortSymbolLen        = 3
)

// DefaultNativeAssets are the chain's own assets.
var DefaultNativeAssets = []string{"BTS"} //nolint:gochecknoglobals // read-only default

// Catalog is an in-memory backing-asset table keyed by gateway.
type Catalog struct {
	mu       sync.RWMutex
	registry *gateway.Registry
	entries  map[gateway.ID][]BackingAsset
	native   map[string]struct{}
}

// New creates an empty catalog over the given gateway registry.
func New(registry *gateway.Registry) *Catalog {
	if registry == nil {
		registry = gateway.DefaultRegistry()
	}
	return &Catalog{
		registry: registry,
		entries:  make(map[gateway.ID][]BackingAsset),
		native:   make(map[string]struct{}),
	}
}

// Registry returns the gateway registry the catalog was built over.
func (c *Catalog) Registry() *gateway.Registry {
	return c.registry
}

// Set replaces the backing table of a gateway.
func (c *Catalog) Set(id gateway.ID, assets []BackingAsset) {
	id = gateway.ParseID(id.String())
	cp := make([]BackingAsset, len(assets))
	for i, a := range assets {
		a.Gateway = id
		cp[i] = a
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cp
}

// BackingAsset returns the record of gateway id that backs asset.
func (c *Catalog) BackingAsset(id gateway.ID, asset string) (BackingAsset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, a := range c.entries[gateway.ParseID(id.String())] {
		if a.Matches(asset) {
			return a, true
		}
	}
	return BackingAsset{}, false
}

// GatewaysFor returns the registered gateways whose backing table lists asset.
func (c *Catalog) GatewaysFor(asset string) []gateway.Gateway {
	var out []gateway.Gateway
	for _, g := range c.registry.All() {
		if _, ok := c.BackingAsset(g.ID, asset); ok {
			out = append(out, g)
		}
	}
	return out
}

// Entries returns a copy of the backing table of gateway id.
func (c *Catalog) Entries(id gateway.ID) []BackingAsset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	src := c.entries[gateway.ParseID(id.String())]
	out := make([]BackingAsset, len(src))
	copy(out, src)
	return out
}

// Assets returns every backing coin known to the catalog, sorted and de-duplicated.
func (c *Catalog) Assets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, list := range c.entries {
		for _, a := range list {
			if coin := a.Coin(); coin != "" {
				seen[coin] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for coin := range seen {
		out = append(out, coin)
	}
	sort.Strings(out)
	return out
}

// Size returns the total number of backing records.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, list := range c.entries {
		n += len(list)
	}
	return n
}

// SetNative replaces the set of native asset symbols.
func (c *Catalog) SetNative(symbols ...string) {
	native := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			native[s] = struct{}{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.native = native
}

// IsNative reports whether symbol is a native asset of the chain.
func (c *Catalog) IsNative(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.native[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// Suggest returns the closest known gateway asset to symbol. Native assets
// and exact matches get no suggestion.
func (c *Catalog) Suggest(symbol string) (string, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || c.IsNative(symbol) {
		return "", false
	}

	maxDist := maxSuggestionDistance
	if utf8.RuneCountInString(symbol) <= shortSymbolLen {
		maxDist = 1
	}

	best := ""
	bestDist := maxDist + 1
	for _, asset := range c.Assets() {
		if asset == symbol {
			return "", false
		}
		if d := levenshtein.ComputeDistance(symbol, asset); d < bestDist {
			best, bestDist = asset, d
		}
	}
	return best, best != ""
}

// SuggestGateway returns the closest registered gateway ID to s.
func (c *Catalog) SuggestGateway(s string) (gateway.ID, bool) {
	s = gateway.ParseID(s).String()
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, id := range c.registry.IDs() {
		if d := levenshtein.ComputeDistance(s, id); d < bestDist {
			best, bestDist = id, d
		}
	}
	return gateway.ID(best), best != ""
}

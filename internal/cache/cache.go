// Package cache memoizes deposit targets by (gateway, account, asset).
package cache

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
)

// Store defines the deposit address cache operations.
type Store interface {
	// Get retrieves a cached target.
	Get(gatewayID gateway.ID, account, asset string) (deposit.Target, bool)

	// Put stores a target. Error targets are ignored.
	Put(gatewayID gateway.ID, account, asset string, target deposit.Target)

	// Delete removes a cached target.
	Delete(gatewayID gateway.ID, account, asset string)

	// Clear removes all entries.
	Clear()

	// Size returns the number of entries.
	Size() int

	// All returns every entry sorted by key.
	All() []Entry
}

// Compile-time interface check
var _ Store = (*AddressCache)(nil)

// Entry is a single cached deposit target.
type Entry struct {
	Gateway        gateway.ID `json:"gateway"`
	Account        string     `json:"account"`
	Asset          string     `json:"asset"`
	OutputCoinType string     `json:"output_coin_type"`
	Address        string     `json:"address"`
	Memo           string     `json:"memo,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Target returns the cached deposit target.
func (e Entry) Target() deposit.Target {
	return deposit.Target{Address: e.Address, Memo: e.Memo}
}

// Key returns the cache key. Gateway IDs are upper-cased and assets
// lower-cased so "OPEN.BTC" and "open.btc" share one entry. Every part is
// query-escaped, so none can contain the ":" separator.
func Key(gatewayID gateway.ID, account, asset string) string {
	return url.QueryEscape(gateway.ParseID(gatewayID.String()).String()) +
		":" + url.QueryEscape(strings.TrimSpace(account)) +
		":" + url.QueryEscape(deposit.NormalizeSymbol(asset))
}

// NewEntry builds the entry stored for target.
func NewEntry(gatewayID gateway.ID, account, asset string, target deposit.Target) Entry {
	gw := gateway.ParseID(gatewayID.String())
	return Entry{
		Gateway:        gw,
		Account:        strings.TrimSpace(account),
		Asset:          deposit.NormalizeSymbol(asset),
		OutputCoinType: deposit.OutputCoinType(gw.String(), asset),
		Address:        target.Address,
		Memo:           target.Memo,
		UpdatedAt:      time.Now().UTC(),
	}
}

// AddressCache is an in-memory Store. Entries never expire.
type AddressCache struct {
	mu      sync.RWMutex     `json:"-"`
	Entries map[string]Entry `json:"entries"`
}

// NewAddressCache creates an empty cache.
func NewAddressCache() *AddressCache {
	return &AddressCache{Entries: make(map[string]Entry)}
}

// Get retrieves a cached target.
func (c *AddressCache) Get(gatewayID gateway.ID, account, asset string) (deposit.Target, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.Entries[Key(gatewayID, account, asset)]
	if !ok {
		return deposit.Target{}, false
	}
	return entry.Target(), true
}

// Put stores a target. Error targets and targets without an address are ignored.
func (c *AddressCache) Put(gatewayID gateway.ID, account, asset string, target deposit.Target) {
	if !target.Valid() {
		return
	}
	c.putEntry(NewEntry(gatewayID, account, asset, target))
}

func (c *AddressCache) putEntry(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries[Key(e.Gateway, e.Account, e.Asset)] = e
}

// Delete removes a cached target.
func (c *AddressCache) Delete(gatewayID gateway.ID, account, asset string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Entries, Key(gatewayID, account, asset))
}

// Clear removes all entries.
func (c *AddressCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries = make(map[string]Entry)
}

// Size returns the number of entries.
func (c *AddressCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Entries)
}

// All returns every entry sorted by key.
func (c *AddressCache) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.Entries))
	for k := range c.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Entries[k])
	}
	return out
}

// ForAccount returns the entries cached for account.
func ForAccount(s Store, account string) []Entry {
	var out []Entry
	for _, e := range s.All() {
		if e.Account == account {
			out = append(out, e)
		}
	}
	return out
}

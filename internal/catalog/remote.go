package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mrz1836/depositor/internal/gatewayapi"
	"github.com/mrz1836/depositor/internal/gateway"
)

// DefaultRefreshTTL is how long a fetched coin list is trusted.
const DefaultRefreshTTL = 10 * time.Minute

// walletTypeBitshares marks coins issued on the exchange chain.
const walletTypeBitshares = "bitshares2"

// CoinLister fetches a gateway's coin list.
type CoinLister interface {
	ListCoins(ctx context.Context) ([]gatewayapi.Coin, error)
}

// RemoteLoader refreshes catalog tables from gateway coin lists, skipping
// gateways refreshed within the TTL.
type RemoteLoader struct {
	catalog *Catalog
	sources map[gateway.ID]CoinLister
	fresh   *gocache.Cache
}

// NewRemoteLoader creates a loader writing into c.
func NewRemoteLoader(c *Catalog, ttl time.Duration) *RemoteLoader {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RemoteLoader{
		catalog: c,
		sources: make(map[gateway.ID]CoinLister),
		fresh:   gocache.New(ttl, 2*ttl),
	}
}

// AddSource registers the coin list of gateway id.
func (l *RemoteLoader) AddSource(id gateway.ID, src CoinLister) {
	l.sources[gateway.ParseID(id.String())] = src
}

// Refresh reloads gateway id unless it was refreshed within the TTL.
func (l *RemoteLoader) Refresh(ctx context.Context, id gateway.ID) error {
	id = gateway.ParseID(id.String())
	if _, ok := l.fresh.Get(id.String()); ok {
		return nil
	}

	src, ok := l.sources[id]
	if !ok {
		return fmt.Errorf("no coin source for gateway %s", id)
	}

	coins, err := src.ListCoins(ctx)
	if err != nil {
		return fmt.Errorf("listing %s coins: %w", id, err)
	}

	assets := FromCoins(id, coins)
	l.catalog.Set(id, assets)
	l.fresh.SetDefault(id.String(), len(assets))
	return nil
}

// RefreshAll refreshes every registered source and joins their errors.
func (l *RemoteLoader) RefreshAll(ctx context.Context) error {
	var errs []error
	for id := range l.sources {
		if err := l.Refresh(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate forces the next Refresh of id to fetch.
func (l *RemoteLoader) Invalidate(id gateway.ID) {
	l.fresh.Delete(gateway.ParseID(id.String()).String())
}

// FromCoins converts a gateway coin list into backing records. Only coins
// issued on the exchange chain with a known backing coin are kept.
func FromCoins(id gateway.ID, coins []gatewayapi.Coin) []BackingAsset {
	byType := make(map[string]gatewayapi.Coin, len(coins))
	for _, c := range coins {
		byType[strings.ToLower(c.CoinType)] = c
	}

	var out []BackingAsset
	for _, c := range coins {
		if c.WalletType != walletTypeBitshares || c.BackingCoinType == "" {
			continue
		}
		backing, ok := byType[strings.ToLower(c.BackingCoinType)]
		if !ok {
			continue
		}
		out = append(out, BackingAsset{
			Gateway:         id,
			Symbol:          c.WalletSymbol,
			BackingCoinType: strings.ToUpper(backing.WalletSymbol),
			GatewayWallet:   c.IntermediateAccount,
			GateFee:         c.GateFee,
			Precision:       precisionDigits(c.Precision),
			SupportsMemos:   c.SupportsOutputMemos,
		})
	}
	return out
}

// precisionDigits accepts either a digit count (8) or a multiplier (1e8).
func precisionDigits(p float64) int32 {
	if p <= 0 {
		return 0
	}
	if p < 20 {
		return int32(p)
	}
	return int32(math.Round(math.Log10(p)))
}

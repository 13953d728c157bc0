package resolver

import (
	"context"
	"time"

	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
)

// Catalog answers which gateways back an asset and with what metadata.
type Catalog interface {
	GatewaysFor(asset string) []gateway.Gateway
	BackingAsset(id gateway.ID, asset string) (catalog.BackingAsset, bool)
}

// Cache memoizes deposit targets by (gateway, account, asset).
type Cache interface {
	Get(id gateway.ID, account, asset string) (deposit.Target, bool)
	Put(id gateway.ID, account, asset string, target deposit.Target)
}

// AddressRequester asks a gateway for a fresh deposit address. It returns
// immediately and calls onComplete exactly once, possibly from another
// goroutine. Failures arrive as a target with Error set.
type AddressRequester interface {
	RequestDepositAddress(ctx context.Context, req deposit.AddressRequest, onComplete func(deposit.Target))
}

// Logger is the logging surface the resolver writes to.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Metrics receives resolver activity.
type Metrics interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordAddressRequest(gateway string, duration time.Duration, failed bool)
	RecordStaleCompletion()
	RecordResolution(phase string)
}

// Deps are the collaborators a Resolver needs. Registry defaults to the
// built-in gateways.
type Deps struct {
	Registry  *gateway.Registry
	Catalog   Catalog
	Cache     Cache
	Requester AddressRequester
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

type nopMetrics struct{}

func (nopMetrics) RecordCacheHit()                                  {}
func (nopMetrics) RecordCacheMiss()                                 {}
func (nopMetrics) RecordAddressRequest(string, time.Duration, bool) {}
func (nopMetrics) RecordStaleCompletion()                           {}
func (nopMetrics) RecordResolution(string)                          {}

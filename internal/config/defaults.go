package config

import (
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/gatewayapi"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	gateways := make(map[string]GatewayConfig)
	for _, g := range gateway.Defaults() {
		gc := GatewayConfig{
			Enabled:    true,
			Name:       g.Name,
			SupportURL: g.SupportURL,
			Strategy:   g.Strategy.String(),
		}
		if g.Strategy == gateway.StrategyCacheThenRequest {
			gc.API = gatewayapi.DefaultOpenLedgerURL
		}
		gateways[g.ID.String()] = gc
	}

	return &Config{
		Version:  1,
		Home:     "~/.depositor",
		Gateways: gateways,
		Catalog: CatalogConfig{
			File:           "catalog.yaml",
			Remote:         false,
			RefreshMinutes: 10,
			NativeAssets:   []string{"BTS"},
		},
		Cache: CacheConfig{
			Backend: CacheBackendFile,
			File:    "addresses.json",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				DB:     0,
				Prefix: "depositor:address:",
			},
		},
		API: APIConfig{
			TimeoutSeconds: 30,
			RatePerSecond:  2,
			Burst:          4,
			RetryAttempts:  3,
		},
		Resolver: ResolverConfig{
			AutoSelect: true,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8080",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
			QR:            true,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "depositor.log",
		},
	}
}

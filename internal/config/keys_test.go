package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deperr "github.com/mrz1836/depositor/pkg/errors"
)

func TestConfig_GetSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path  string
		value string
	}{
		{"account", "alice"},
		{"cache.backend", "redis"},
		{"cache.redis.addr", "redis:6379"},
		{"cache.redis.db", "2"},
		{"api.rate_per_second", "0.5"},
		{"api.retry_attempts", "5"},
		{"resolver.auto_select", "false"},
		{"output.default_format", "json"},
		{"output.qr", "false"},
		{"logging.level", "debug"},
		{"server.listen", ":9000"},
		{"gateways.open.api", "https://gw.example.com/api"},
		{"gateways.rudex.enabled", "false"},
		{"gateways.RUDEX.strategy", "static_wallet"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			require.NoError(t, cfg.Set(tc.path, tc.value))

			got, err := cfg.Get(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.value, got)
		})
	}
}

func TestConfig_SetInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		value string
		want  error
	}{
		{"unknown key", "nope", "x", deperr.ErrUnknownConfigKey},
		{"unknown nested key", "cache.nope", "x", deperr.ErrUnknownConfigKey},
		{"unknown gateway", "gateways.foo.api", "x", deperr.ErrUnknownConfigKey},
		{"unknown gateway key", "gateways.open.color", "x", deperr.ErrUnknownConfigKey},
		{"bad backend", "cache.backend", "tape", deperr.ErrInvalidValue},
		{"bad format", "output.default_format", "xml", deperr.ErrInvalidValue},
		{"bad level", "logging.level", "trace", deperr.ErrInvalidValue},
		{"bad bool", "output.qr", "maybe", deperr.ErrInvalidValue},
		{"negative int", "api.burst", "-1", deperr.ErrInvalidValue},
		{"zero rate", "api.rate_per_second", "0", deperr.ErrInvalidValue},
		{"bad strategy", "gateways.open.strategy", "teleport", deperr.ErrInvalidValue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			require.ErrorIs(t, cfg.Set(tc.path, tc.value), tc.want)
		})
	}
}

func TestConfig_SetInvalidKeepsValue(t *testing.T) {
	t.Parallel()
	cfg := Defaults()
	require.Error(t, cfg.Set("api.burst", "lots"))
	assert.Equal(t, 4, cfg.API.Burst)
}

func TestConfig_GetUnknown(t *testing.T) {
	t.Parallel()
	_, err := Defaults().Get("networks.eth.rpc")
	require.ErrorIs(t, err, deperr.ErrUnknownConfigKey)
}

func TestConfig_RedisPasswordMasked(t *testing.T) {
	t.Parallel()
	cfg := Defaults()

	v, err := cfg.Get("cache.redis.password")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, cfg.Set("cache.redis.password", "secret"))
	assert.Equal(t, "secret", cfg.Cache.Redis.Password)

	v, err = cfg.Get("cache.redis.password")
	require.NoError(t, err)
	assert.Equal(t, "********", v)
}

func TestConfig_NativeAssets(t *testing.T) {
	t.Parallel()
	c := Defaults()

	got, err := c.Get("catalog.native_assets")
	require.NoError(t, err)
	assert.Equal(t, "BTS", got)

	require.NoError(t, c.Set("catalog.native_assets", "bts, golos,,"))
	assert.Equal(t, []string{"BTS", "GOLOS"}, c.Catalog.NativeAssets)
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/mrz1836/go-sanitize"

	"github.com/mrz1836/depositor/internal/gateway"
)

// Environment variable names.
const (
	EnvHome         = "DEPOSITOR_HOME"
	EnvAccount      = "DEPOSITOR_ACCOUNT"
	EnvOpenAPI      = "DEPOSITOR_OPEN_API"
	EnvCacheBackend = "DEPOSITOR_CACHE_BACKEND"
	EnvRedisAddr    = "DEPOSITOR_REDIS_ADDR"
	EnvOutputFormat = "DEPOSITOR_OUTPUT_FORMAT"
	EnvVerbose      = "DEPOSITOR_VERBOSE"
	EnvLogLevel     = "DEPOSITOR_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvAccount); v != "" {
		cfg.Account = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvOpenAPI); v != "" {
		if cfg.Gateways == nil {
			cfg.Gateways = make(map[string]GatewayConfig)
		}
		gc := cfg.Gateways[gateway.OPEN.String()]
		gc.API = SanitizeURL(v)
		cfg.Gateways[gateway.OPEN.String()] = gc
	}

	if v := os.Getenv(EnvCacheBackend); v != "" {
		cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Cache.Redis.Addr = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL cleans a URL string by removing invalid characters and trimming whitespace.
// This is useful for cleaning user-provided API URLs that may contain copy-paste artifacts.
func SanitizeURL(url string) string {
	return sanitize.URL(strings.TrimSpace(url))
}

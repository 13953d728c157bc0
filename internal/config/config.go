// Package config provides configuration management for depositor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/depositor/internal/fileutil"
	"github.com/mrz1836/depositor/internal/gateway"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// configFilePermissions is the permission mode for the config file.
const configFilePermissions = 0o600

// Cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	Version  int                      `yaml:"version"`
	Home     string                   `yaml:"home"`
	Account  string                   `yaml:"account"`
	Gateways map[string]GatewayConfig `yaml:"gateways"`
	Catalog  CatalogConfig            `yaml:"catalog"`
	Cache    CacheConfig              `yaml:"cache"`
	API      APIConfig                `yaml:"api"`
	Resolver ResolverConfig           `yaml:"resolver"`
	Server   ServerConfig             `yaml:"server"`
	Output   OutputConfig             `yaml:"output"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// GatewayConfig defines one deposit gateway.
type GatewayConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Name       string `yaml:"name"`
	SupportURL string `yaml:"support_url,omitempty"`
	Strategy   string `yaml:"strategy"`
	API        string `yaml:"api,omitempty"`
}

// CatalogConfig defines where backing-asset tables come from.
type CatalogConfig struct {
	File           string `yaml:"file"`
	Remote         bool   `yaml:"remote"`
	RefreshMinutes int    `yaml:"refresh_minutes"`

	// NativeAssets are deposited straight to the account and never get a
	// "did you mean" gateway suggestion.
	NativeAssets []string `yaml:"native_assets"`
}

// CacheConfig defines the deposit address cache backend.
type CacheConfig struct {
	Backend string      `yaml:"backend"`
	File    string      `yaml:"file"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig defines the Redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// APIConfig defines gateway API client behavior.
type APIConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	RetryAttempts  int     `yaml:"retry_attempts"`
}

// ResolverConfig defines resolver behavior.
type ResolverConfig struct {
	AutoSelect bool `yaml:"auto_select"`
}

// ServerConfig defines the HTTP server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
	QR            bool   `yaml:"qr"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, deperr.Wrap(deperr.ErrConfigNotFound, "%s", path)
	}
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, deperr.Wrap(deperr.ErrConfigInvalid, "%s: %s", path, err.Error())
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := fileutil.EnsureDir(path); err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, configFilePermissions)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default depositor home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".depositor"
	}
	return filepath.Join(home, ".depositor")
}

// Registry builds the gateway registry from the enabled gateways.
func (c *Config) Registry() (*gateway.Registry, error) {
	reg := gateway.NewRegistry()
	for _, id := range c.GatewayIDs() {
		gc := c.Gateways[id]
		if !gc.Enabled {
			continue
		}
		strategy, ok := gateway.ParseStrategy(gc.Strategy)
		if !ok {
			return nil, deperr.WithDetails(deperr.ErrConfigInvalid, map[string]string{
				"gateway":  id,
				"strategy": gc.Strategy,
			})
		}
		reg.Register(gateway.Gateway{
			ID:         gateway.ParseID(id),
			Name:       gc.Name,
			SupportURL: gc.SupportURL,
			Strategy:   strategy,
		})
	}
	return reg, nil
}

// GatewayIDs returns the configured gateway IDs, sorted.
func (c *Config) GatewayIDs() []string {
	ids := make([]string, 0, len(c.Gateways))
	for id := range c.Gateways {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Gateway returns the configuration of gateway id.
func (c *Config) Gateway(id string) (GatewayConfig, bool) {
	gc, ok := c.Gateways[strings.ToUpper(strings.TrimSpace(id))]
	return gc, ok
}

// APITimeout returns the per-request gateway timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CatalogRefresh returns how long a fetched remote catalog is trusted.
func (c *Config) CatalogRefresh() time.Duration {
	return time.Duration(c.Catalog.RefreshMinutes) * time.Minute
}

// ExpandPath resolves "~/" and paths relative to Home.
func (c *Config) ExpandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	p, err := fileutil.ExpandHome(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	home, err := fileutil.ExpandHome(c.Home)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p), nil
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendRedis, CacheBackendMemory:
	default:
		return deperr.WithDetails(deperr.ErrConfigInvalid, map[string]string{
			"cache.backend": c.Cache.Backend,
		})
	}
	if c.Cache.Backend == CacheBackendRedis && c.Cache.Redis.Addr == "" {
		return deperr.WithSuggestion(
			deperr.WithDetails(deperr.ErrConfigInvalid, map[string]string{"cache.redis.addr": ""}),
			"set cache.redis.addr or DEPOSITOR_REDIS_ADDR",
		)
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	if c.API.TimeoutSeconds < 0 || c.API.Burst < 0 || c.API.RetryAttempts < 0 {
		return fmt.Errorf("%w: api values must not be negative", deperr.ErrConfigInvalid)
	}
	return nil
}

// GetHome returns the depositor home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

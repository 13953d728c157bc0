package config

import (
	"strconv"
	"strings"

	"github.com/mrz1836/depositor/internal/gateway"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// Get returns a configuration value by its dot path, e.g. "cache.backend"
// or "gateways.open.api".
//
//nolint:gocyclo // flat switch over the supported keys
func (c *Config) Get(path string) (string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(path)), ".")

	switch strings.Join(parts, ".") {
	case "home":
		return c.Home, nil
	case "account":
		return c.Account, nil
	case "catalog.file":
		return c.Catalog.File, nil
	case "catalog.remote":
		return strconv.FormatBool(c.Catalog.Remote), nil
	case "catalog.refresh_minutes":
		return strconv.Itoa(c.Catalog.RefreshMinutes), nil
	case "catalog.native_assets":
		return strings.Join(c.Catalog.NativeAssets, ","), nil
	case "cache.backend":
		return c.Cache.Backend, nil
	case "cache.file":
		return c.Cache.File, nil
	case "cache.redis.addr":
		return c.Cache.Redis.Addr, nil
	case "cache.redis.password":
		if c.Cache.Redis.Password == "" {
			return "", nil
		}
		return "********", nil
	case "cache.redis.db":
		return strconv.Itoa(c.Cache.Redis.DB), nil
	case "cache.redis.prefix":
		return c.Cache.Redis.Prefix, nil
	case "api.timeout_seconds":
		return strconv.Itoa(c.API.TimeoutSeconds), nil
	case "api.rate_per_second":
		return strconv.FormatFloat(c.API.RatePerSecond, 'f', -1, 64), nil
	case "api.burst":
		return strconv.Itoa(c.API.Burst), nil
	case "api.retry_attempts":
		return strconv.Itoa(c.API.RetryAttempts), nil
	case "resolver.auto_select":
		return strconv.FormatBool(c.Resolver.AutoSelect), nil
	case "server.listen":
		return c.Server.Listen, nil
	case "output.default_format":
		return c.Output.DefaultFormat, nil
	case "output.color":
		return c.Output.Color, nil
	case "output.verbose":
		return strconv.FormatBool(c.Output.Verbose), nil
	case "output.qr":
		return strconv.FormatBool(c.Output.QR), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.file":
		return c.Logging.File, nil
	}

	if len(parts) == 3 && parts[0] == "gateways" {
		return c.getGatewayValue(parts[1], parts[2])
	}
	return "", unknownKey(path)
}

func (c *Config) getGatewayValue(id, key string) (string, error) {
	gc, ok := c.Gateway(id)
	if !ok {
		return "", deperr.WithDetails(deperr.ErrUnknownConfigKey, map[string]string{"gateway": id})
	}
	switch key {
	case "enabled":
		return strconv.FormatBool(gc.Enabled), nil
	case "name":
		return gc.Name, nil
	case "support_url":
		return gc.SupportURL, nil
	case "strategy":
		return gc.Strategy, nil
	case "api":
		return gc.API, nil
	default:
		return "", unknownKey("gateways." + id + "." + key)
	}
}

// Set updates a configuration value by its dot path. Values are validated
// against the key's type and allowed choices.
//
//nolint:gocyclo // flat switch over the supported keys
func (c *Config) Set(path, value string) error {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(path)), ".")
	value = strings.TrimSpace(value)

	var err error
	switch strings.Join(parts, ".") {
	case "home":
		c.Home = value
	case "account":
		c.Account = value
	case "catalog.file":
		c.Catalog.File = value
	case "catalog.remote":
		err = setBool(&c.Catalog.Remote, value)
	case "catalog.refresh_minutes":
		err = setNonNegative(&c.Catalog.RefreshMinutes, value)
	case "catalog.native_assets":
		c.Catalog.NativeAssets = splitSymbols(value)
	case "cache.backend":
		err = oneOf(value, CacheBackendFile, CacheBackendRedis, CacheBackendMemory)
		if err == nil {
			c.Cache.Backend = value
		}
	case "cache.file":
		c.Cache.File = value
	case "cache.redis.addr":
		c.Cache.Redis.Addr = value
	case "cache.redis.password":
		c.Cache.Redis.Password = value
	case "cache.redis.db":
		err = setNonNegative(&c.Cache.Redis.DB, value)
	case "cache.redis.prefix":
		c.Cache.Redis.Prefix = value
	case "api.timeout_seconds":
		err = setNonNegative(&c.API.TimeoutSeconds, value)
	case "api.rate_per_second":
		rate, parseErr := strconv.ParseFloat(value, 64)
		if parseErr != nil || rate <= 0 {
			return invalidValue(value, "a positive number")
		}
		c.API.RatePerSecond = rate
	case "api.burst":
		err = setNonNegative(&c.API.Burst, value)
	case "api.retry_attempts":
		err = setNonNegative(&c.API.RetryAttempts, value)
	case "resolver.auto_select":
		err = setBool(&c.Resolver.AutoSelect, value)
	case "server.listen":
		c.Server.Listen = value
	case "output.default_format":
		err = oneOf(value, "text", "json", "auto")
		if err == nil {
			c.Output.DefaultFormat = value
		}
	case "output.color":
		err = oneOf(value, "auto", "always", "never")
		if err == nil {
			c.Output.Color = value
		}
	case "output.verbose":
		err = setBool(&c.Output.Verbose, value)
	case "output.qr":
		err = setBool(&c.Output.QR, value)
	case "logging.level":
		err = oneOf(value, "off", "error", "debug")
		if err == nil {
			c.Logging.Level = value
		}
	case "logging.file":
		c.Logging.File = value
	default:
		if len(parts) == 3 && parts[0] == "gateways" {
			return c.setGatewayValue(parts[1], parts[2], value)
		}
		return unknownKey(path)
	}
	return err
}

func (c *Config) setGatewayValue(id, key, value string) error {
	id = gateway.ParseID(id).String()
	gc, ok := c.Gateways[id]
	if !ok {
		return deperr.WithDetails(deperr.ErrUnknownConfigKey, map[string]string{"gateway": id})
	}

	switch key {
	case "enabled":
		b, err := parseBoolStrict(value)
		if err != nil {
			return err
		}
		gc.Enabled = b
	case "name":
		gc.Name = value
	case "support_url":
		gc.SupportURL = SanitizeURL(value)
	case "strategy":
		s, ok := gateway.ParseStrategy(value)
		if !ok {
			return invalidValue(value, "cache_then_request, static_wallet, or none")
		}
		gc.Strategy = s.String()
	case "api":
		gc.API = SanitizeURL(value)
	default:
		return unknownKey("gateways." + id + "." + key)
	}

	c.Gateways[id] = gc
	return nil
}

func unknownKey(path string) error {
	return deperr.WithDetails(deperr.ErrUnknownConfigKey, map[string]string{"path": path})
}

func invalidValue(value, valid string) error {
	return deperr.WithDetails(deperr.ErrInvalidValue, map[string]string{"value": value, "valid": valid})
}

func oneOf(value string, valid ...string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return invalidValue(value, strings.Join(valid, ", "))
}

func parseBoolStrict(value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, invalidValue(value, "true or false")
	}
	return b, nil
}

func parseNonNegative(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, invalidValue(value, "a non-negative integer")
	}
	return n, nil
}

func setBool(dst *bool, value string) error {
	b, err := parseBoolStrict(value)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setNonNegative(dst *int, value string) error {
	n, err := parseNonNegative(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// splitSymbols parses a comma-separated symbol list, upper-cased with blanks dropped.
func splitSymbols(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mrz1836/depositor/internal/cache"
	"github.com/mrz1836/depositor/internal/catalog"
	"github.com/mrz1836/depositor/internal/config"
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/gatewayapi"
	"github.com/mrz1836/depositor/internal/metrics"
	"github.com/mrz1836/depositor/internal/output"
	"github.com/mrz1836/depositor/internal/resolver"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter

	Registry  *gateway.Registry
	Catalog   *catalog.Catalog
	Remote    *catalog.RemoteLoader
	Store     cache.Store
	Requester resolver.AddressRequester
	Metrics   *metrics.Metrics

	closers []func() error
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(
	cfg *config.Config,
	logger *config.Logger,
	formatter *output.Formatter,
) *CommandContext {
	return &CommandContext{
		Config:    cfg,
		Logger:    logger,
		Formatter: formatter,
	}
}

// WithCache sets the address cache.
func (c *CommandContext) WithCache(store cache.Store) *CommandContext {
	c.Store = store
	return c
}

// WithRequester sets the deposit address requester.
func (c *CommandContext) WithRequester(r resolver.AddressRequester) *CommandContext {
	c.Requester = r
	return c
}

// Open builds every collaborator not already set.
func (c *CommandContext) Open(ctx context.Context) error {
	if c.Logger == nil {
		c.Logger = config.NullLogger()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}

	if c.Registry == nil {
		reg, err := c.Config.Registry()
		if err != nil {
			return err
		}
		c.Registry = reg
	}

	clients := c.clients()

	if c.Catalog == nil {
		if err := c.openCatalog(ctx, clients); err != nil {
			return err
		}
	}

	if c.Store == nil {
		store, err := c.openCache(ctx)
		if err != nil {
			return err
		}
		c.Store = store
	}

	if c.Requester == nil {
		router := gatewayapi.NewRouter()
		for id, client := range clients {
			router.Route(id, gatewayapi.NewAsync(client, c.Config.APITimeout()))
		}
		c.Requester = router
	}
	return nil
}

// clients creates an API client for every enabled gateway with an API URL.
func (c *CommandContext) clients() map[gateway.ID]*gatewayapi.Client {
	out := make(map[gateway.ID]*gatewayapi.Client)
	for _, g := range c.Registry.All() {
		gc, ok := c.Config.Gateway(g.ID.String())
		if !ok || gc.API == "" {
			continue
		}
		retry := gatewayapi.DefaultRetryConfig()
		if c.Config.API.RetryAttempts > 0 {
			retry.MaxAttempts = c.Config.API.RetryAttempts
		}
		var limiter *gatewayapi.RateLimiter
		if c.Config.API.RatePerSecond > 0 {
			limiter = gatewayapi.NewRateLimiter(c.Config.API.RatePerSecond, c.Config.API.Burst)
		}
		out[g.ID] = gatewayapi.NewClient(&gatewayapi.ClientOptions{
			BaseURL:     gc.API,
			Timeout:     c.Config.APITimeout(),
			RateLimiter: limiter,
			Retry:       retry,
		})
	}
	return out
}

func (c *CommandContext) openCatalog(ctx context.Context, clients map[gateway.ID]*gatewayapi.Client) error {
	cat := catalog.Defaults(c.Registry)
	if native := c.Config.Catalog.NativeAssets; native != nil {
		cat.SetNative(native...)
	}

	path, err := c.Config.ExpandPath(c.Config.Catalog.File)
	if err != nil {
		return err
	}
	if path != "" {
		switch err := cat.LoadFile(path); {
		case err == nil:
			c.Logger.Debug("catalog loaded from %s", path)
		case errors.Is(err, os.ErrNotExist):
		default:
			return deperr.Wrap(deperr.ErrConfigInvalid, "catalog %s: %s", path, err.Error())
		}
	}

	if c.Config.Catalog.Remote && len(clients) > 0 {
		c.Remote = catalog.NewRemoteLoader(cat, c.Config.CatalogRefresh())
		for id, client := range clients {
			c.Remote.AddSource(id, client)
		}
		if err := c.Remote.RefreshAll(ctx); err != nil {
			c.Logger.Error("remote catalog refresh: %v", err)
		}
	}

	c.Catalog = cat
	return nil
}

func (c *CommandContext) openCache(ctx context.Context) (cache.Store, error) {
	switch c.Config.Cache.Backend {
	case config.CacheBackendMemory:
		return cache.NewAddressCache(), nil

	case config.CacheBackendRedis:
		rc := c.Config.Cache.Redis
		store, err := cache.ConnectRedis(ctx, cache.RedisOptions{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
			OnError:  func(err error) { c.Logger.Error("redis cache: %v", err) },
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil

	default:
		path, err := c.Config.ExpandPath(c.Config.Cache.File)
		if err != nil {
			return nil, err
		}
		return cache.OpenPersistent(path, func(err error) {
			c.Logger.Error("address cache: %v", err)
		})
	}
}

// NewResolver creates a resolver for account wired to the context's collaborators.
func (c *CommandContext) NewResolver(ctx context.Context, account string, opts ...resolver.Option) (*resolver.Resolver, error) {
	if account == "" {
		account = c.Config.Account
	}
	base := []resolver.Option{
		resolver.WithAutoSelect(c.Config.Resolver.AutoSelect),
		resolver.WithLogger(c.Logger),
		resolver.WithMetrics(c.Metrics),
		resolver.WithContext(ctx),
	}
	return resolver.New(account, resolver.Deps{
		Registry:  c.Registry,
		Catalog:   c.Catalog,
		Cache:     c.Store,
		Requester: c.Requester,
	}, append(base, opts...)...)
}

// Close releases backend connections.
func (c *CommandContext) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("closing command context: %w", errors.Join(errs...))
	}
	return nil
}

// openContext builds the command context from the globals.
func openContext(ctx context.Context) (*CommandContext, error) {
	cc := NewCommandContext(cfg, logger, formatter)
	if err := cc.Open(ctx); err != nil {
		return nil, err
	}
	return cc, nil
}

// Package gatewayapi provides the HTTP client for gateway deposit-address services.
package gatewayapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/depositor/internal/deposit"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

const (
	// DefaultOpenLedgerURL is the OpenLedger gateway API base URL.
	DefaultOpenLedgerURL = "https://ol-api1.openledger.info/api/v0/ol/support"

	// defaultTimeout is the default HTTP request timeout.
	defaultTimeout = 30 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20

	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-ID"

	initiateTradePath = "/simple-api/initiate-trade"
	coinsPath         = "/coins"
)

// ClientOptions contains optional configuration for the gateway client.
type ClientOptions struct {
	// BaseURL overrides the default gateway API URL.
	BaseURL string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration

	// RateLimiter throttles requests per endpoint. Nil uses DefaultRateLimiter.
	RateLimiter *RateLimiter

	// Retry configures retries of retryable failures. Zero value uses DefaultRetryConfig.
	Retry RetryConfig

	// HTTPClient replaces the underlying HTTP client.
	HTTPClient *http.Client
}

// Client talks to one gateway's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	retry      RetryConfig
}

// NewClient creates a new gateway client.
func NewClient(opts *ClientOptions) *Client {
	c := &Client{
		baseURL:    DefaultOpenLedgerURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    DefaultRateLimiter(),
		retry:      DefaultRetryConfig(),
	}

	if opts != nil {
		c.applyOptions(opts)
	}

	return c
}

func (c *Client) applyOptions(opts *ClientOptions) {
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
	}
	if opts.Timeout > 0 {
		c.httpClient.Timeout = opts.Timeout
	}
	if opts.RateLimiter != nil {
		c.limiter = opts.RateLimiter
	}
	if opts.Retry.MaxAttempts > 0 {
		c.retry = opts.Retry
	}
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InitiateTrade asks the gateway for a deposit address converting
// req.InputCoinType into req.OutputCoinType credited to req.OutputAddress.
// A gateway-reported failure is returned as an error-shaped target with a nil error;
// transport failures return an error.
func (c *Client) InitiateTrade(ctx context.Context, req deposit.AddressRequest) (deposit.Target, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return deposit.Target{}, fmt.Errorf("encoding request: %w", err)
	}

	// Each accepted request may create a new address, so only requests the
	// gateway rejected outright are repeated.
	var resp tradeResponse
	err = c.do(ctx, http.MethodPost, initiateTradePath, body, &resp, IsRateLimited)
	if err != nil {
		return deposit.Target{}, err
	}

	if msg := resp.errorMessage(); msg != "" {
		return deposit.Failed(msg), nil
	}
	if resp.InputAddress == "" {
		return deposit.Failed("gateway returned no deposit address"), nil
	}

	return deposit.Target{Address: resp.InputAddress, Memo: resp.InputMemo}, nil
}

// ListCoins returns the gateway's coin list.
func (c *Client) ListCoins(ctx context.Context) ([]Coin, error) {
	var coins []Coin
	if err := c.do(ctx, http.MethodGet, coinsPath, nil, &coins, IsRetryable); err != nil {
		return nil, err
	}
	return coins, nil
}

// do performs a rate-limited JSON round trip, repeating failures that
// retryable accepts.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, retryable func(error) bool) error {
	endpoint := c.baseURL + path
	requestID := uuid.NewString()

	_, err := RetryWhen(ctx, c.retry, retryable, func() (struct{}, error) {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.roundTrip(ctx, method, endpoint, requestID, body, out)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint, requestID string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return WrapRetryable(fmt.Errorf("%w: %w", deperr.ErrNetworkError, err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		if wait := ParseRetryAfter(resp.Header.Get("Retry-After")); wait > 0 {
			return fmt.Errorf("%w: retry after %s", ErrRateLimited, wait)
		}
		return ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		_, _ = io.Copy(io.Discard, resp.Body)
		return WrapRetryable(fmt.Errorf("%w: status %d", deperr.ErrNetworkError, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", deperr.ErrInvalidResponse, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", deperr.ErrInvalidResponse, err)
	}
	return nil
}

// Package rest provides the shared HTTP client marketplace adapters
// are built on: rate limited per platform, no internal retries. Retry
// policy lives in the engine so every adapter fails the same way.
package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const userAgent = "flipstack-sync-service/1.0"

// Config holds per-platform HTTP client configuration.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// DefaultConfig returns the default client configuration for a base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		RequestsPerSecond: 2,
		Burst:             1,
		Timeout:           10 * time.Second,
	}
}

// Client is a rate-limited JSON HTTP client for one marketplace API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a client for one marketplace API.
func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Result carries the status of one completed HTTP exchange.
type Result struct {
	Status int
}

// Get performs a GET request, decoding a 2xx JSON body into out.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, out any) (Result, error) {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if out != nil {
		req.SetResult(out)
	}
	return c.execute(req, resty.MethodGet, path)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (Result, error) {
	req := c.http.R().SetContext(ctx).SetBody(body)
	return c.execute(req, resty.MethodPut, path)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (Result, error) {
	req := c.http.R().SetContext(ctx).SetBody(body)
	return c.execute(req, resty.MethodPost, path)
}

func (c *Client) execute(req *resty.Request, method, path string) (Result, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return Result{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: resp.StatusCode()}, nil
}

// IsRetryableStatus checks if an HTTP status code is retryable.
// Retryable: 429, 500-599.
func IsRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}

// IsSuccessStatus checks if an HTTP status code is a success.
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

// Package clients provides the HTTP plumbing used to talk to the Graph API:
// a pooled HTTP/2 client with OAuth bearer auth, rate limiting and a
// circuit breaker.
package clients

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
)

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
	EnableHTTP2         bool

	// AccessToken is sent as an OAuth bearer token when set
	AccessToken string
	UserAgent   string
	// Accept is sent on every request when set
	Accept string

	// RateLimit is requests per second; 0 disables the token bucket
	RateLimit float64
	RateBurst int

	CircuitBreakerEnabled bool
	FailureThreshold      int
	SuccessThreshold      int
	Timeout               time.Duration
}

// DefaultHTTPConfig returns defaults suited to the Graph API
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		RequestTimeout:        60 * time.Second,
		EnableHTTP2:           true,
		UserAgent:             "nebula-fbmarketing/1.0",
		Accept:                "application/json",
		RateBurst:             10,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		Timeout:               30 * time.Second,
	}
}

// HTTPClient wraps http.Client with throttling and failure isolation
type HTTPClient struct {
	config         *HTTPConfig
	logger         *zap.Logger
	httpClient     *http.Client
	transport      *http.Transport
	rateLimiter    RateLimiter
	circuitBreaker *CircuitBreaker

	totalRequests  int64
	failedRequests int64
}

// NewHTTPClient builds a client from config. A nil config uses the defaults.
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	c.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(c.transport); err != nil {
			c.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	var rt http.RoundTripper = c.transport
	if config.AccessToken != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.AccessToken}),
			Base:   c.transport,
		}
	}
	c.httpClient = &http.Client{Transport: rt, Timeout: config.RequestTimeout}

	c.rateLimiter = NewRateLimiter(config.RateLimit, config.RateBurst)
	if config.CircuitBreakerEnabled {
		c.circuitBreaker = NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: config.FailureThreshold,
			SuccessThreshold: config.SuccessThreshold,
			Timeout:          config.Timeout,
		}, logger)
	}
	return c
}

// RateLimiter returns the limiter shared by all requests of this client
func (c *HTTPClient) RateLimiter() RateLimiter {
	return c.rateLimiter
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostForm performs a form-encoded POST request
func (c *HTTPClient) PostForm(ctx context.Context, url string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// Do sends req through the rate limiter and circuit breaker. Server errors
// (5xx) count as breaker failures; the response is still returned.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "rate limiter wait aborted")
	}
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, ErrCircuitOpen
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewTimer()
	resp, err := c.httpClient.Do(req)
	timer.ObserveTo(metrics.HTTPLatency.WithLabelValues(req.Method))

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		metrics.HTTPRequests.WithLabelValues(req.Method, "error").Inc()
		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordFailure()
		}
		if req.Context().Err() != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request canceled")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed").
			WithDetail("method", req.Method)
	}

	metrics.HTTPRequests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode/100)+"xx").Inc()
	if c.circuitBreaker != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			c.circuitBreaker.RecordFailure()
		} else {
			c.circuitBreaker.RecordSuccess()
		}
	}
	return resp, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid request")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.Accept != "" {
		req.Header.Set("Accept", c.config.Accept)
	}
	return req, nil
}

// HTTPStats summarizes client activity
type HTTPStats struct {
	TotalRequests  int64  `json:"total_requests"`
	FailedRequests int64  `json:"failed_requests"`
	CircuitState   string `json:"circuit_state"`
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	stats := HTTPStats{
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		FailedRequests: atomic.LoadInt64(&c.failedRequests),
		CircuitState:   StateClosed.String(),
	}
	if c.circuitBreaker != nil {
		stats.CircuitState = c.circuitBreaker.State().String()
	}
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

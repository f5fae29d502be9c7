// Package base provides BaseConnector, the shared plumbing embedded by
// connectors: configuration, an authenticated HTTP client with rate limiting
// and a circuit breaker, retry policy, state storage and metrics.
//
//	type MySource struct {
//	    *base.BaseConnector
//	}
//
//	func NewMySource() *MySource {
//	    return &MySource{BaseConnector: base.NewBaseConnector("my_source", core.ConnectorTypeSource, "1.0.0")}
//	}
package base

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/clients"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/logger"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
)

// BaseConnector holds the state and resources common to all connectors
type BaseConnector struct {
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	state      core.State
	stateMutex sync.RWMutex

	closed     bool
	closeMutex sync.Mutex

	httpClient       *clients.HTTPClient
	retryPolicy      *RetryPolicy
	metricsCollector *metrics.Collector
}

// NewBaseConnector creates a base connector. Initialize must be called before use.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:             name,
		connectorType:    connectorType,
		version:          version,
		state:            make(core.State),
		logger:           logger.Get().With(zap.String("connector", name)),
		retryPolicy:      DefaultRetryPolicy(),
		metricsCollector: metrics.NewCollector(name),
	}
}

// Initialize applies cfg: retry policy, HTTP client and logging level.
// accessToken, when non-empty, is attached to every HTTP request.
func (bc *BaseConnector) Initialize(ctx context.Context, cfg *config.BaseConfig, accessToken string) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	bc.config = cfg

	bc.retryPolicy = NewRetryPolicy(cfg.Reliability.RetryAttempts+1, cfg.Reliability.RetryDelay)
	if cfg.Reliability.RetryMultiplier > 0 {
		bc.retryPolicy.Multiplier = cfg.Reliability.RetryMultiplier
	}
	if cfg.Reliability.MaxRetryDelay > 0 {
		bc.retryPolicy.MaxDelay = cfg.Reliability.MaxRetryDelay
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.AccessToken = accessToken
	if cfg.Timeouts.Request > 0 {
		httpCfg.RequestTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		httpCfg.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		httpCfg.IdleConnTimeout = cfg.Timeouts.Idle
	}
	httpCfg.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	if cfg.Reliability.IsRateLimited() {
		httpCfg.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
		httpCfg.RateBurst = cfg.Reliability.RateLimitPerSec * 2
	}
	bc.httpClient = clients.NewHTTPClient(httpCfg, bc.logger)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version),
		zap.Int("retry_attempts", cfg.Reliability.RetryAttempts),
		zap.Int("rate_limit_per_sec", cfg.Reliability.RateLimitPerSec))
	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a shallow copy of the connector state
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	out := make(core.State, len(bc.state))
	for k, v := range bc.state {
		out[k] = v
	}
	return out
}

// SetState replaces the connector state
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.state = make(core.State, len(state))
	for k, v := range state {
		bc.state[k] = v
	}
	return nil
}

// PutState sets one key of the connector state
func (bc *BaseConnector) PutState(key string, value interface{}) {
	bc.stateMutex.Lock()
	bc.state[key] = value
	bc.stateMutex.Unlock()
}

// Health reports an error when the connector is closed or its circuit is open
func (bc *BaseConnector) Health(ctx context.Context) error {
	bc.closeMutex.Lock()
	closed := bc.closed
	bc.closeMutex.Unlock()
	if closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}
	if bc.httpClient != nil && bc.httpClient.GetStats().CircuitState == clients.StateOpen.String() {
		return errors.New(errors.ErrorTypeConnection, "circuit breaker is open")
	}
	return ctx.Err()
}

// Metrics returns collector counters and HTTP client statistics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	m := bc.metricsCollector.Snapshot()
	m["connector"] = bc.name
	m["version"] = bc.version
	if bc.httpClient != nil {
		stats := bc.httpClient.GetStats()
		m["http_requests"] = stats.TotalRequests
		m["http_failures"] = stats.FailedRequests
		m["circuit_state"] = stats.CircuitState
	}
	return m
}

// Close releases the HTTP client. It is safe to call more than once.
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()
	if bc.closed {
		return nil
	}
	bc.closed = true

	if bc.httpClient != nil {
		if err := bc.httpClient.Close(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close http client")
		}
	}
	bc.logger.Info("connector closed")
	return nil
}

// ExecuteWithRetry runs fn under the configured retry policy
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.Execute(ctx, fn)
}

// NewProgressReporter returns a progress reporter for stream
func (bc *BaseConnector) NewProgressReporter(stream string) *ProgressReporter {
	return NewProgressReporter(bc.logger, bc.metricsCollector, stream)
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// SetLogger replaces the connector logger
func (bc *BaseConnector) SetLogger(l *zap.Logger) {
	if l != nil {
		bc.logger = l.With(zap.String("connector", bc.name))
	}
}

// GetConfig returns the configuration passed to Initialize
func (bc *BaseConnector) GetConfig() *config.BaseConfig {
	return bc.config
}

// HTTPClient returns the authenticated HTTP client
func (bc *BaseConnector) HTTPClient() *clients.HTTPClient {
	return bc.httpClient
}

// RetryPolicy returns the retry policy
func (bc *BaseConnector) RetryPolicy() *RetryPolicy {
	return bc.retryPolicy
}

// MetricsCollector returns the connector's collector
func (bc *BaseConnector) MetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

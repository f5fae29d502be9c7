package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

// BaseConfig is the configuration every connector instance is built from
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type selects the registered connector (e.g. "facebook_marketing")
	Type    string `yaml:"type" json:"type"`
	Version string `yaml:"version" json:"version"`

	Performance   PerformanceConfig   `yaml:"performance" json:"performance"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Advanced      AdvancedConfig      `yaml:"advanced" json:"advanced"`
}

// PerformanceConfig controls throughput
type PerformanceConfig struct {
	// BatchSize is the Graph API page size
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// BufferSize is the capacity of the record channel handed to consumers
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// TimeoutConfig bounds network operations
type TimeoutConfig struct {
	Request    time.Duration `yaml:"request" json:"request"`
	Connection time.Duration `yaml:"connection" json:"connection"`
	Idle       time.Duration `yaml:"idle" json:"idle"`
}

// ReliabilityConfig contains retry and throttling settings
type ReliabilityConfig struct {
	RetryAttempts   int           `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RetryMultiplier float64       `yaml:"retry_multiplier" json:"retry_multiplier"`
	MaxRetryDelay   time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	CircuitBreaker  bool          `yaml:"circuit_breaker" json:"circuit_breaker"`
	// RateLimitPerSec limits Graph API calls per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// SecurityConfig carries credentials and connector options. Values are
// strings so they can be supplied through ${ENV} substitution.
type SecurityConfig struct {
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig controls logging and tracing
type ObservabilityConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing" json:"enable_tracing"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
}

// AdvancedConfig contains optional output features
type AdvancedConfig struct {
	EnableCompression bool `yaml:"enable_compression" json:"enable_compression"`
	// CompressionAlgorithm selects gzip, snappy, s2, lz4 or zstd
	CompressionAlgorithm string `yaml:"compression_algorithm" json:"compression_algorithm"`
	CompressionLevel     int    `yaml:"compression_level" json:"compression_level"`
}

// NewBaseConfig returns a configuration with production defaults
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Performance: PerformanceConfig{
			BatchSize:  100,
			BufferSize: 1000,
		},
		Timeouts: TimeoutConfig{
			Request:    60 * time.Second,
			Connection: 10 * time.Second,
			Idle:       90 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   5,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
		},
		Security: SecurityConfig{
			Credentials: make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			LogLevel:      "info",
		},
		Advanced: AdvancedConfig{
			CompressionAlgorithm: "gzip",
			CompressionLevel:     6,
		},
	}
}

// Validate checks required fields and value ranges
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if bc.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "type is required")
	}
	if bc.Performance.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size must be positive")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return errors.New(errors.ErrorTypeConfig, "retry_attempts cannot be negative")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "rate_limit_per_sec cannot be negative")
	}
	return nil
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}

// HasCredentials returns true if credentials are configured
func (s *SecurityConfig) HasCredentials() bool {
	return len(s.Credentials) > 0
}

// Credential returns a trimmed credential value
func (s *SecurityConfig) Credential(key string) string {
	return strings.TrimSpace(s.Credentials[key])
}

// CredentialBool parses a boolean credential, returning def when unset
func (s *SecurityConfig) CredentialBool(key string, def bool) (bool, error) {
	raw := s.Credential(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, errors.Wrap(err, errors.ErrorTypeConfig, "invalid boolean for "+key)
	}
	return v, nil
}

// IsCompressionEnabled returns true if output compression should be used
func (a *AdvancedConfig) IsCompressionEnabled() bool {
	return a.EnableCompression && a.CompressionAlgorithm != ""
}

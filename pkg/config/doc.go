// Package config loads connector configuration from YAML.
//
// BaseConfig is organized into sections:
//   - Performance: page size and output buffering
//   - Timeouts: HTTP request and connection timeouts
//   - Reliability: retries, circuit breaker and rate limiting
//   - Security: access token, account and stream options
//   - Observability: log level and tracing
//   - Advanced: output compression
//
// A typical source configuration:
//
//	name: fb-prod
//	type: facebook_marketing
//	performance:
//	  batch_size: 100
//	reliability:
//	  retry_attempts: 5
//	  rate_limit_per_sec: 20
//	security:
//	  credentials:
//	    account_id: "1234567890"
//	    access_token: ${FB_ACCESS_TOKEN}
//	    start_date: "2021-01-01T00:00:00Z"
//	    include_deleted: "true"
//
// ${VAR} references are resolved from the process environment before the
// YAML is parsed.
package config

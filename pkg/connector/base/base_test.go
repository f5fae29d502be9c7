package base

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
)

func TestRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "succeeds first time",
			wantCalls: 1,
		},
		{
			name: "retries retryable errors",
			failures: []error{
				errors.New(errors.ErrorTypeRateLimit, "throttled"),
				errors.New(errors.ErrorTypeConnection, "reset"),
			},
			wantCalls: 3,
		},
		{
			name:      "stops on permanent error",
			failures:  []error{errors.New(errors.ErrorTypeAuthentication, "bad token")},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name: "gives up after max attempts",
			failures: []error{
				errors.New(errors.ErrorTypeTimeout, "1"),
				errors.New(errors.ErrorTypeTimeout, "2"),
				errors.New(errors.ErrorTypeTimeout, "3"),
				errors.New(errors.ErrorTypeTimeout, "4"),
			},
			wantCalls: 3,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := NewRetryPolicy(3, time.Millisecond)
			calls := 0
			err := rp.Execute(context.Background(), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicyCanceled(t *testing.T) {
	rp := NewRetryPolicy(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rp.Execute(ctx, func() error {
		return errors.New(errors.ErrorTypeConnection, "down")
	})
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestRetryPolicyDelayBounds(t *testing.T) {
	rp := NewRetryPolicy(10, 100*time.Millisecond)
	rp.RandomizeFactor = 0
	rp.MaxDelay = 300 * time.Millisecond

	assert.Equal(t, 100*time.Millisecond, rp.GetDelay(0))
	assert.Equal(t, 200*time.Millisecond, rp.GetDelay(1))
	assert.Equal(t, 300*time.Millisecond, rp.GetDelay(5))
}

func TestBaseConnectorLifecycle(t *testing.T) {
	bc := NewBaseConnector("facebook_marketing", core.ConnectorTypeSource, "1.0.0")

	err := bc.Initialize(context.Background(), nil, "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg := config.NewBaseConfig("fb", "facebook_marketing")
	cfg.Reliability.RetryAttempts = 2
	require.NoError(t, bc.Initialize(context.Background(), cfg, "token"))
	assert.Equal(t, 3, bc.RetryPolicy().MaxAttempts)
	assert.NotNil(t, bc.HTTPClient())

	require.NoError(t, bc.SetState(core.State{"campaigns": map[string]interface{}{"updated_time": "x"}}))
	bc.PutState("ads", map[string]interface{}{})
	state := bc.GetState()
	assert.Len(t, state, 2)

	require.NoError(t, bc.Health(context.Background()))
	require.NoError(t, bc.Close(context.Background()))
	require.NoError(t, bc.Close(context.Background()))
	assert.Error(t, bc.Health(context.Background()))
}

func TestProgressReporter(t *testing.T) {
	zc, logs := observer.New(zapcore.InfoLevel)
	collector := metrics.NewCollector("test")
	pr := NewProgressReporter(zap.New(zc), collector, "ads")

	now := time.Now()
	pr.now = func() time.Time { return now }
	pr.Increment(5)
	assert.Equal(t, 0, logs.FilterMessage("stream progress").Len())

	now = now.Add(11 * time.Second)
	pr.Increment(5)
	assert.Equal(t, 1, logs.FilterMessage("stream progress").Len())

	pr.Finish()
	assert.Equal(t, int64(10), pr.Processed())
	assert.Equal(t, int64(10), collector.Get("records.ads"))
	assert.Equal(t, 1, logs.FilterMessage("stream completed").Len())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BaseConfig)
		wantErr bool
	}{
		{"defaults", func(*BaseConfig) {}, false},
		{"missing name", func(c *BaseConfig) { c.Name = "" }, true},
		{"missing type", func(c *BaseConfig) { c.Type = "" }, true},
		{"zero page size", func(c *BaseConfig) { c.Performance.BatchSize = 0 }, true},
		{"negative retries", func(c *BaseConfig) { c.Reliability.RetryAttempts = -1 }, true},
		{"negative rate", func(c *BaseConfig) { c.Reliability.RateLimitPerSec = -5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewBaseConfig("fb", "facebook_marketing")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentialBool(t *testing.T) {
	sec := SecurityConfig{Credentials: map[string]string{
		"include_deleted": " true ",
		"broken":          "maybe",
	}}

	v, err := sec.CredentialBool("include_deleted", false)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = sec.CredentialBool("missing", true)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = sec.CredentialBool("broken", false)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoadUnsetVariableBecomesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: ${NEBULA_TEST_UNSET_VAR}x\ntype: t\n"), 0o600))

	cfg := NewBaseConfig("", "")
	require.NoError(t, Load(path, cfg))
	assert.Equal(t, "x", cfg.Name)
}

func TestLoadMissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &BaseConfig{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewBaseConfig("fb", "facebook_marketing")
	cfg.Security.Credentials["account_id"] = "42"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadBase(path)
	require.NoError(t, err)
	assert.Equal(t, "42", loaded.Security.Credential("account_id"))
	assert.Equal(t, cfg.Timeouts, loaded.Timeouts)
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(*config.BaseConfig) (core.Source, error) { return nil, nil }

	require.NoError(t, r.RegisterSource("b_source", factory))
	require.NoError(t, r.RegisterSource("a_source", factory))

	err := r.RegisterSource("a_source", factory)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, []string{"a_source", "b_source"}, r.ListSources())

	_, err = r.CreateSource("missing", config.NewBaseConfig("x", "missing"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestCreateSourceWrapsFactoryError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource("broken", func(*config.BaseConfig) (core.Source, error) {
		return nil, errors.New(errors.ErrorTypeValidation, "nope")
	}))

	_, err := r.CreateSource("broken", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

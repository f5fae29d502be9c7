package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeData, "ignored"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeRateLimit, "throttled")
	outer := Wrap(inner, ErrorTypeConnection, "listing failed")

	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestIsType(t *testing.T) {
	inner := New(ErrorTypeRateLimit, "throttled")
	outer := Wrap(inner, ErrorTypeConnection, "listing failed")
	foreign := fmt.Errorf("stream ads: %w", outer)

	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{"outer type", outer, ErrorTypeConnection, true},
		{"inner type through chain", outer, ErrorTypeRateLimit, true},
		{"through fmt wrapping", foreign, ErrorTypeRateLimit, true},
		{"absent type", outer, ErrorTypeConfig, false},
		{"untyped", stderrors.New("plain"), ErrorTypeData, false},
		{"nil", nil, ErrorTypeData, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.errType))
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeConfig, TypeOf(Newf(ErrorTypeConfig, "bad %s", "start_date")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeData, "missing cursor").WithDetail("stream", "ads")
	assert.Equal(t, "ads", err.Details["stream"])
	assert.Equal(t, "data: missing cursor", err.Error())
}

package json

import (
	"bytes"
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineEncoder(t *testing.T) {
	var out bytes.Buffer
	enc := NewLineEncoder(&out)
	defer enc.Close()

	require.NoError(t, enc.Encode(map[string]interface{}{"url": "https://x/?a=1&b=2"}))
	require.NoError(t, enc.Encode(map[string]interface{}{"id": "2"}))

	assert.Equal(t, "{\"url\":\"https://x/?a=1&b=2\"}\n{\"id\":\"2\"}\n", out.String())
}

func TestUnmarshalNumbersKeepsPrecision(t *testing.T) {
	var v map[string]interface{}
	require.NoError(t, UnmarshalNumbers([]byte(`{"id":23851234567890123}`), &v))

	n, ok := v["id"].(stdjson.Number)
	require.True(t, ok, "expected json.Number, got %T", v["id"])
	assert.Equal(t, "23851234567890123", n.String())
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("data")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len())
	PutBuffer(nil)
}

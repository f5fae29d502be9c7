package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"type":"RECORD","record":{"stream":"ads","data":{"id":"1"}}}`+"\n", 200))

	for _, alg := range []Algorithm{None, Gzip, Snappy, S2, LZ4, Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg, Default)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if alg != None {
				assert.Less(t, buf.Len(), len(payload))
			}

			r, err := NewReader(&buf, alg)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	assert.Equal(t, ".zst", a.Extension())

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)
	assert.Empty(t, a.Extension())

	_, err = ParseAlgorithm("brotli")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLevelFromInt(t *testing.T) {
	assert.Equal(t, Default, LevelFromInt(0))
	assert.Equal(t, Fastest, LevelFromInt(1))
	assert.Equal(t, Default, LevelFromInt(6))
	assert.Equal(t, Better, LevelFromInt(7))
	assert.Equal(t, Best, LevelFromInt(9))
	assert.Equal(t, Default, LevelFromInt(12))
}

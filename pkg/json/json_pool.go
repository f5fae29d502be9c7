// Package json wraps goccy/go-json with pooled buffers for record encoding
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value
type RawMessage = gojson.RawMessage

// Number is a JSON number kept as its literal text, produced by UnmarshalNumbers
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer returns an empty pooled buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns buf to the pool. Oversized buffers are dropped.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > 1<<20 {
		return
	}
	bufferPool.Put(buf)
}

// Marshal encodes v
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes data into v
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// UnmarshalNumbers decodes data into v keeping numbers as json.Number so
// large Graph API ids and spend values keep their precision.
func UnmarshalNumbers(data []byte, v interface{}) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// NewDecoder returns a decoder reading from r
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

// LineEncoder writes one JSON document per line
type LineEncoder struct {
	w   io.Writer
	buf *bytes.Buffer
	enc *gojson.Encoder
}

// NewLineEncoder returns an encoder writing JSON lines to w
func NewLineEncoder(w io.Writer) *LineEncoder {
	buf := GetBuffer()
	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &LineEncoder{w: w, buf: buf, enc: enc}
}

// Encode writes v followed by a newline
func (e *LineEncoder) Encode(v interface{}) error {
	e.buf.Reset()
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	_, err := e.w.Write(e.buf.Bytes())
	return err
}

// Close releases the pooled buffer
func (e *LineEncoder) Close() {
	if e.buf != nil {
		PutBuffer(e.buf)
		e.buf = nil
	}
}

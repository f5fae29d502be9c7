// Package strings provides pooled string building helpers for Nebula
package strings

import (
	"fmt"
	"strconv"
	"sync"
)

// Builder is a reusable byte buffer for assembling strings
type Builder struct {
	buf []byte
}

// NewBuilder creates a builder with the given initial capacity
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// WriteString appends s
func (b *Builder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// WriteByte appends a single byte
func (b *Builder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// Write implements io.Writer
func (b *Builder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns a copy of the accumulated bytes
func (b *Builder) String() string {
	return string(b.buf)
}

// Len returns the number of accumulated bytes
func (b *Builder) Len() int {
	return len(b.buf)
}

// Reset empties the builder, keeping its capacity
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// BuilderSize selects which pool a builder comes from
type BuilderSize int

const (
	Small  BuilderSize = iota // < 1KB
	Medium                    // 1KB - 16KB
)

var pools = [...]*sync.Pool{
	Small:  {New: func() interface{} { return NewBuilder(1024) }},
	Medium: {New: func() interface{} { return NewBuilder(16 * 1024) }},
}

func sizeFor(n int) BuilderSize {
	if n > 1024 {
		return Medium
	}
	return Small
}

// GetBuilder retrieves a pooled builder of the specified size
func GetBuilder(size BuilderSize) *Builder {
	if size != Medium {
		size = Small
	}
	b := pools[size].Get().(*Builder)
	b.Reset()
	return b
}

// PutBuilder returns a builder to its pool
func PutBuilder(b *Builder, size BuilderSize) {
	if b == nil {
		return
	}
	if size != Medium {
		size = Small
	}
	b.Reset()
	pools[size].Put(b)
}

// Sprintf is fmt.Sprintf backed by a pooled builder
func Sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	size := sizeFor(len(format) + len(args)*16)
	b := GetBuilder(size)
	defer PutBuilder(b, size)
	fmt.Fprintf(b, format, args...)
	return b.String()
}

// JoinPooled joins parts with sep using a pooled builder
func JoinPooled(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	total := len(sep) * (len(parts) - 1)
	for _, p := range parts {
		total += len(p)
	}
	size := sizeFor(total)
	b := GetBuilder(size)
	defer PutBuilder(b, size)
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		b.WriteString(sep)
		b.WriteString(p)
	}
	return b.String()
}

// URLBuilder assembles a URL or form body from a base and escaped
// query parameters. Call Close to release the underlying builder.
type URLBuilder struct {
	b         *Builder
	hasParams bool
}

// NewURLBuilder starts a URL from base. An empty base produces a
// form-encoded body from the parameters alone.
func NewURLBuilder(base string) *URLBuilder {
	b := GetBuilder(Small)
	b.WriteString(base)
	has := false
	for i := 0; i < len(base); i++ {
		if base[i] == '?' {
			has = true
			break
		}
	}
	return &URLBuilder{b: b, hasParams: has || base == ""}
}

// AddPath appends escaped path segments
func (u *URLBuilder) AddPath(segments ...string) *URLBuilder {
	for _, s := range segments {
		if s == "" {
			continue
		}
		_ = u.b.WriteByte('/')
		escapeInto(u.b, s, isPathSafe)
	}
	return u
}

// AddParam appends key=value with query escaping
func (u *URLBuilder) AddParam(key, value string) *URLBuilder {
	switch {
	case u.b.Len() == 0:
	case u.hasParams:
		_ = u.b.WriteByte('&')
	default:
		_ = u.b.WriteByte('?')
		u.hasParams = true
	}
	escapeInto(u.b, key, isQuerySafe)
	_ = u.b.WriteByte('=')
	escapeInto(u.b, value, isQuerySafe)
	return u
}

// AddParamInt appends an integer parameter
func (u *URLBuilder) AddParamInt(key string, value int) *URLBuilder {
	return u.AddParam(key, strconv.Itoa(value))
}

// AddParamBool appends a boolean parameter
func (u *URLBuilder) AddParamBool(key string, value bool) *URLBuilder {
	return u.AddParam(key, strconv.FormatBool(value))
}

// String returns the assembled URL
func (u *URLBuilder) String() string {
	return u.b.String()
}

// Close releases the builder back to the pool
func (u *URLBuilder) Close() {
	if u.b != nil {
		PutBuilder(u.b, Small)
		u.b = nil
	}
}

const hexDigits = "0123456789ABCDEF"

func escapeInto(b *Builder, s string, safe func(byte) bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case safe(c):
			_ = b.WriteByte(c)
		case c == ' ' && !safe('/'):
			_ = b.WriteByte('+')
		default:
			_ = b.WriteByte('%')
			_ = b.WriteByte(hexDigits[c>>4])
			_ = b.WriteByte(hexDigits[c&15])
		}
	}
}

func isQuerySafe(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func isPathSafe(c byte) bool {
	return isQuerySafe(c) || c == '/' || c == ':' || c == '@' || c == '!' || c == '$' ||
		c == '&' || c == '\'' || c == '(' || c == ')' || c == '*' || c == '+' || c == ',' ||
		c == ';' || c == '='
}

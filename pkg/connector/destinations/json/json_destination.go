// Package json is a destination writing source messages as JSON lines,
// optionally compressed, to a file or stdout. The last STATE message can
// also be saved to its own file for the next incremental run.
package json

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/compression"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/logger"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/models"
)

// Credential keys read from security.credentials
const (
	KeyPath      = "path"
	KeyStatePath = "state_path"
)

// StdoutPath selects standard output instead of a file
const StdoutPath = "-"

// JSONDestination writes one JSON document per message
type JSONDestination struct {
	config *config.BaseConfig
	logger *zap.Logger

	path      string
	statePath string
	stdout    io.Writer

	file       *os.File
	compressor io.WriteCloser
	writer     *bufio.Writer
	encoder    *jsonpool.LineEncoder

	mu        sync.Mutex
	lastState map[string]interface{}
	closed    bool

	recordsWritten int64
	statesWritten  int64
}

var _ core.Destination = (*JSONDestination)(nil)

// NewJSONDestination creates the destination. The configuration is applied
// by Initialize.
func NewJSONDestination(cfg *config.BaseConfig) (*JSONDestination, error) {
	return &JSONDestination{
		config: cfg,
		logger: logger.Get().With(zap.String("connector", ConnectorName)),
		stdout: os.Stdout,
	}, nil
}

// SetStdout redirects StdoutPath output to w. It must be called before
// Initialize.
func (d *JSONDestination) SetStdout(w io.Writer) {
	d.stdout = w
}

// Initialize opens the output
func (d *JSONDestination) Initialize(_ context.Context, cfg *config.BaseConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	d.config = cfg
	d.path = cfg.Security.Credential(KeyPath)
	if d.path == "" {
		d.path = StdoutPath
	}
	d.statePath = cfg.Security.Credential(KeyStatePath)

	algorithm := compression.None
	if cfg.Advanced.IsCompressionEnabled() {
		var err error
		if algorithm, err = compression.ParseAlgorithm(cfg.Advanced.CompressionAlgorithm); err != nil {
			return err
		}
	}

	var out io.Writer = d.stdout
	if d.path != StdoutPath {
		if ext := algorithm.Extension(); ext != "" && !strings.HasSuffix(d.path, ext) {
			d.path += ext
		}
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
		}
		f, err := os.Create(d.path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
				WithDetail("path", d.path)
		}
		d.file = f
		out = f
	}

	cw, err := compression.NewWriter(out, algorithm, compression.LevelFromInt(cfg.Advanced.CompressionLevel))
	if err != nil {
		d.closeFile()
		return err
	}
	d.compressor = cw

	bufferSize := cfg.Performance.BufferSize * 64
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	d.writer = bufio.NewWriterSize(cw, bufferSize)
	d.encoder = jsonpool.NewLineEncoder(d.writer)

	d.logger.Info("json destination initialized",
		zap.String("path", d.path),
		zap.String("compression", string(algorithm)),
		zap.String("state_path", d.statePath))
	return nil
}

// Write consumes the stream until its messages are exhausted and returns
// the first error the source reported, if any.
func (d *JSONDestination) Write(ctx context.Context, stream *core.RecordStream) error {
	if d.encoder == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "write canceled")
		case msg, ok := <-stream.Messages:
			if !ok {
				return d.drainErrors(stream.Errors)
			}
			if err := d.writeMessage(msg); err != nil {
				return err
			}
		}
	}
}

func (d *JSONDestination) drainErrors(errs <-chan error) error {
	if errs == nil {
		return nil
	}
	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
	}
	return first
}

func (d *JSONDestination) writeMessage(msg *models.Message) error {
	if msg == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.encoder.Encode(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write message")
	}
	switch msg.Type {
	case models.MessageTypeRecord:
		atomic.AddInt64(&d.recordsWritten, 1)
	case models.MessageTypeState:
		atomic.AddInt64(&d.statesWritten, 1)
		d.lastState = msg.State
		if err := d.writer.Flush(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
		}
	}
	return nil
}

// LastState returns the most recent STATE payload written
func (d *JSONDestination) LastState() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastState
}

// Health reports whether the destination can still accept writes
func (d *JSONDestination) Health(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New(errors.ErrorTypeFile, "destination is closed")
	}
	if d.encoder == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}
	return nil
}

// Metrics returns write counters
func (d *JSONDestination) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"connector":       ConnectorName,
		"path":            d.path,
		"records_written": atomic.LoadInt64(&d.recordsWritten),
		"states_written":  atomic.LoadInt64(&d.statesWritten),
	}
}

// Close flushes and closes the output and saves the last state, if a
// state path is configured. It is safe to call more than once.
func (d *JSONDestination) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	keep := func(err error, msg string) {
		if err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeFile, msg)
		}
	}
	if d.writer != nil {
		keep(d.writer.Flush(), "failed to flush output")
	}
	if d.encoder != nil {
		d.encoder.Close()
	}
	if d.compressor != nil {
		keep(d.compressor.Close(), "failed to finish compression")
	}
	keep(d.closeFile(), "failed to close output file")

	if d.statePath != "" && d.lastState != nil {
		keep(d.saveState(), "failed to save state")
	}
	return firstErr
}

func (d *JSONDestination) saveState() error {
	b, err := jsonpool.Marshal(d.lastState)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.statePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.statePath, append(b, '\n'), 0o600)
}

func (d *JSONDestination) closeFile() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

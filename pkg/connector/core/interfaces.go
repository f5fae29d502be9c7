// Package core defines the contracts between sources, destinations and the CLI
package core

import (
	"context"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/models"
)

// ConnectorType is the role of a connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// SyncMode selects how a stream is read
type SyncMode string

const (
	// SyncModeFullRefresh reads everything and ignores prior state
	SyncModeFullRefresh SyncMode = "full_refresh"
	// SyncModeIncremental resumes from the stream's cursor
	SyncModeIncremental SyncMode = "incremental"
)

// State is the connector state keyed by stream name. Each value is the
// stream's own state object.
type State map[string]interface{}

// StreamSchema describes one stream of a source
type StreamSchema struct {
	Name               string          `json:"name"`
	JSONSchema         json.RawMessage `json:"json_schema"`
	PrimaryKey         []string        `json:"primary_key"`
	CursorField        string          `json:"cursor_field,omitempty"`
	SupportedSyncModes []SyncMode      `json:"supported_sync_modes"`
}

// Catalog lists the streams a source can produce
type Catalog struct {
	Streams []StreamSchema `json:"streams"`
}

// RecordStream is the output of Source.Read. Messages is closed when the
// read finishes; at most one error is sent on Errors before it closes.
type RecordStream struct {
	Messages <-chan *models.Message
	Errors   <-chan error
}

// Source extracts records from an external system
type Source interface {
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Discover(ctx context.Context) (*Catalog, error)
	Read(ctx context.Context) (*RecordStream, error)
	Close(ctx context.Context) error

	GetState() State
	SetState(state State) error
	SupportsIncremental() bool

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Destination consumes a record stream
type Destination interface {
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Write(ctx context.Context, stream *RecordStream) error
	Close(ctx context.Context) error

	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

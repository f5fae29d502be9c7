// Package models defines the messages a source emits to its consumer
package models

import "time"

// MessageType distinguishes record messages from state checkpoints
type MessageType string

const (
	// MessageTypeRecord carries one extracted entity
	MessageTypeRecord MessageType = "RECORD"
	// MessageTypeState carries a resumable state checkpoint
	MessageTypeState MessageType = "STATE"
)

// Record is one extracted entity of a stream
type Record struct {
	Stream string                 `json:"stream"`
	Data   map[string]interface{} `json:"data"`
	// EmittedAt is milliseconds since the epoch
	EmittedAt int64 `json:"emitted_at"`
}

// NewRecord creates a record stamped with the current time
func NewRecord(stream string, data map[string]interface{}) *Record {
	return &Record{
		Stream:    stream,
		Data:      data,
		EmittedAt: time.Now().UnixMilli(),
	}
}

// Message is the unit a source emits: a record or a state checkpoint
type Message struct {
	Type   MessageType            `json:"type"`
	Record *Record                `json:"record,omitempty"`
	State  map[string]interface{} `json:"state,omitempty"`
}

// RecordMessage wraps r in a message
func RecordMessage(r *Record) *Message {
	return &Message{Type: MessageTypeRecord, Record: r}
}

// StateMessage wraps a state checkpoint in a message
func StateMessage(state map[string]interface{}) *Message {
	return &Message{Type: MessageTypeState, State: state}
}

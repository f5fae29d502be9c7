// Package streams implements the Facebook Marketing entity streams: listing,
// batched detail loading, incremental cursors and the include_deleted
// backfill rule shared by ad creatives, ads, ad sets, campaigns and videos.
//
// Streams talk to the Graph API only through the API interface, so the
// transport (see the graph package) can be replaced in tests.
package streams

import (
	"context"
	"iter"
)

// Record is a flat mapping of field name to value for one entity
type Record map[string]interface{}

// State is a stream's cursor state: the cursor field plus "include_deleted"
type State map[string]interface{}

// EntityKind names a Graph API ad account edge
type EntityKind string

const (
	KindAdCreatives EntityKind = "adcreatives"
	KindAds         EntityKind = "ads"
	KindAdSets      EntityKind = "adsets"
	KindCampaigns   EntityKind = "campaigns"
	KindVideos      EntityKind = "advideos"
)

// API is the transport the streams consume
type API interface {
	// ListEntities pages through an account edge. fields are requested on
	// the listing call itself and may be empty, in which case only ids
	// are returned.
	ListEntities(ctx context.Context, kind EntityKind, params RequestParams, fields []string) iter.Seq2[EntityHandle, error]
	// NewBatch starts an empty batch of deferred detail fetches
	NewBatch() Batch
}

// EntityHandle is one listed entity whose full field set is not loaded yet
type EntityHandle interface {
	ID() string
	// Fetch loads fields for the entity immediately
	Fetch(ctx context.Context, fields []string) (Record, error)
	// Prepare returns a deferred fetch to be executed in a Batch
	Prepare(fields []string) Request
}

// Request is a deferred detail fetch
type Request interface {
	EntityID() string
}

// Batch is a group of deferred requests executed in one round trip
type Batch interface {
	Add(req Request)
	Len() int
	// Execute runs the batch, appending successes and failures to acc.
	// The returned batch holds requests that must be re-submitted, for
	// example because they were throttled; it is empty when the batch
	// has settled. An error means the batch call itself failed.
	Execute(ctx context.Context, acc Outcome) (Outcome, Batch, error)
}

// Failure is a request that failed inside a batch
type Failure struct {
	Request Request
	Err     error
}

// Outcome accumulates the results of executing a batch and its residue
type Outcome struct {
	Records  []Record
	Failures []Failure
}

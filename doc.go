// Package nebula extracts Facebook Marketing entities (ad creatives, ads,
// ad sets, campaigns and videos) as JSON lines, resuming incrementally from
// a per-stream updated_time cursor.
//
// # Architecture
//
// The connector is layered so that each piece can be tested on its own:
//
//   - streams: the extraction core. Stream descriptors, the incremental
//     cursor and include-deleted logic, and the BatchExecutor that groups
//     per-entity reads into Graph API batches of at most 50.
//   - graph: the Graph API transport. Cursor paging, inline fetches and
//     batch settlement with throttle residue.
//   - facebook_marketing: the core.Source registered as "facebook_marketing".
//     It drains streams in order and checkpoints state after each one.
//   - destinations/json: writes RECORD and STATE messages, optionally
//     compressed, and saves the last state for the next run.
//
// # Quick Start
//
//	nebula discover --config fb.yaml
//	nebula read --config fb.yaml --state state.json --state-output state.json
//
// A minimal fb.yaml:
//
//	name: fb-prod
//	type: facebook_marketing
//	security:
//	  credentials:
//	    access_token: ${FB_ACCESS_TOKEN}
//	    account_id: "1234567890"
//	    start_date: "2021-01-01T00:00:00Z"
//	    streams: campaigns,ads
//
// Programmatic use goes through the registry:
//
//	src, err := registry.CreateSource("facebook_marketing", cfg)
//	if err != nil {
//	    return err
//	}
//	if err := src.Initialize(ctx, cfg); err != nil {
//	    return err
//	}
//	stream, err := src.Read(ctx)
//
// # Observability
//
// Logs are structured zap output on stderr. Prometheus metrics cover batch
// executions, dropped batch requests, thumbnail fetches and HTTP latency,
// and OpenTelemetry spans can be written with --trace.
package nebula

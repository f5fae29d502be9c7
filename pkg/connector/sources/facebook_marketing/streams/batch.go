package streams

import (
	"context"
	"iter"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/observability"
)

// MaxBatchSize is the Graph API limit on requests per batch call
const MaxBatchSize = 50

// BatchExecutor groups deferred requests into batches of at most
// MaxBatchSize and re-executes throttled residue until each batch settles.
// Requests that fail inside a batch are logged and dropped.
type BatchExecutor struct {
	newBatch func() Batch
	stream   string
	logger   *zap.Logger

	executions int64
	dropped    int64
}

// NewBatchExecutor creates an executor drawing empty batches from newBatch
func NewBatchExecutor(newBatch func() Batch, stream string, logger *zap.Logger) *BatchExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchExecutor{newBatch: newBatch, stream: stream, logger: logger}
}

// Execute consumes requests and yields the records of successful requests,
// batch by batch, in the order each batch settled. Errors from requests or
// from a batch call end the sequence.
func (e *BatchExecutor) Execute(ctx context.Context, requests iter.Seq2[Request, error]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		batch := e.newBatch()
		for req, err := range requests {
			if err != nil {
				yield(nil, err)
				return
			}
			batch.Add(req)
			if batch.Len() < MaxBatchSize {
				continue
			}
			records, err := e.settle(ctx, batch)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
			batch = e.newBatch()
		}

		if batch.Len() == 0 {
			return
		}
		records, err := e.settle(ctx, batch)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Executions returns how many batch calls were made, residue included
func (e *BatchExecutor) Executions() int64 {
	return atomic.LoadInt64(&e.executions)
}

// Dropped returns how many requests failed and produced no record
func (e *BatchExecutor) Dropped() int64 {
	return atomic.LoadInt64(&e.dropped)
}

func (e *BatchExecutor) settle(ctx context.Context, batch Batch) (records []Record, err error) {
	ctx, span := observability.StartSpan(ctx, "fbmarketing.batch.settle",
		attribute.String("stream", e.stream),
		attribute.Int("batch.size", batch.Len()))
	defer func() { observability.EndSpan(span, err) }()

	var acc Outcome
	for batch != nil && batch.Len() > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, errors.ErrorTypeTimeout, "batch execution canceled")
		}
		atomic.AddInt64(&e.executions, 1)
		metrics.BatchExecutions.WithLabelValues(e.stream).Inc()

		acc, batch, err = batch.Execute(ctx, acc)
		if err != nil {
			return nil, err
		}
		if batch != nil && batch.Len() > 0 {
			e.logger.Info("retrying failed requests in batch", zap.Int("residue", batch.Len()))
		}
	}

	for _, f := range acc.Failures {
		atomic.AddInt64(&e.dropped, 1)
		metrics.BatchRequestsDropped.WithLabelValues(e.stream).Inc()
		id := ""
		if f.Request != nil {
			id = f.Request.EntityID()
		}
		e.logger.Warn("batch request failed, dropping record",
			zap.String("entity_id", id),
			zap.Error(f.Err))
	}
	span.SetAttributes(attribute.Int("batch.records", len(acc.Records)))
	return acc.Records, nil
}

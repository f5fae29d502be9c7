package base

import (
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
)

// ProgressReporter logs record counts for one stream at a fixed interval
type ProgressReporter struct {
	logger    *zap.Logger
	collector *metrics.Collector
	stream    string
	interval  time.Duration
	now       func() time.Time

	processed  int64
	startTime  time.Time
	lastReport time.Time
}

// NewProgressReporter creates a reporter for stream
func NewProgressReporter(logger *zap.Logger, collector *metrics.Collector, stream string) *ProgressReporter {
	now := time.Now()
	return &ProgressReporter{
		logger:     logger,
		collector:  collector,
		stream:     stream,
		interval:   10 * time.Second,
		now:        time.Now,
		startTime:  now,
		lastReport: now,
	}
}

// Increment adds n processed records and logs when the interval has elapsed
func (pr *ProgressReporter) Increment(n int64) {
	pr.processed += n
	if pr.collector != nil {
		pr.collector.Add("records."+pr.stream, n)
	}
	metrics.RecordsEmitted.WithLabelValues(pr.stream).Add(float64(n))

	now := pr.now()
	if now.Sub(pr.lastReport) < pr.interval {
		return
	}
	pr.lastReport = now
	pr.logger.Info("stream progress",
		zap.String("stream", pr.stream),
		zap.Int64("records", pr.processed),
		zap.Float64("records_per_sec", pr.rate(now)))
}

// Processed returns the number of records counted so far
func (pr *ProgressReporter) Processed() int64 {
	return pr.processed
}

// Finish logs a summary and returns the elapsed time
func (pr *ProgressReporter) Finish() time.Duration {
	now := pr.now()
	elapsed := now.Sub(pr.startTime)
	pr.logger.Info("stream completed",
		zap.String("stream", pr.stream),
		zap.Int64("records", pr.processed),
		zap.Duration("duration", elapsed),
		zap.Float64("records_per_sec", pr.rate(now)))
	return elapsed
}

func (pr *ProgressReporter) rate(now time.Time) float64 {
	secs := now.Sub(pr.startTime).Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(pr.processed) / secs
}

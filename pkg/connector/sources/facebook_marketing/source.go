// Package facebookmarketing is the Facebook Marketing source connector. It
// reads ad creatives, ads, ad sets, campaigns and videos of one ad account
// and checkpoints a cursor per stream after each stream completes.
package facebookmarketing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/clients"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/base"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/sources/facebook_marketing/graph"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/sources/facebook_marketing/streams"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/logger"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/models"
)

// Version is the connector version reported in metrics and logs
const Version = "1.0.0"

// Source reads Facebook Marketing entity streams
type Source struct {
	*base.BaseConnector

	config     *Config
	graph      *graph.Client
	thumbnails *clients.HTTPClient
	streams    []streams.Stream
	account    *graph.AccountInfo
	now        func() time.Time
}

var _ core.Source = (*Source)(nil)

// NewSource creates the source. The configuration is applied by Initialize.
func NewSource(name string, _ *config.BaseConfig) (*Source, error) {
	if name == "" {
		name = ConnectorName
	}
	return &Source{
		BaseConnector: base.NewBaseConnector(name, core.ConnectorTypeSource, Version),
		now:           time.Now,
	}, nil
}

// Initialize validates the configuration, checks the token against the ad
// account and builds the configured streams.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	c, err := parseConfig(cfg, s.now())
	if err != nil {
		return err
	}
	if err := s.BaseConnector.Initialize(ctx, cfg, c.AccessToken); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize base connector")
	}
	s.config = c
	log := s.GetLogger()

	s.graph, err = graph.NewClient(graph.Config{
		BaseURL:    c.BaseURL,
		APIVersion: c.APIVersion,
		AccountID:  c.AccountID,
	}, s.HTTPClient(), s.RetryPolicy(), log)
	if err != nil {
		return err
	}

	s.account, err = s.graph.CheckAccount(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to validate access token")
	}

	opts := streams.Options{
		IncludeDeleted:       c.IncludeDeleted,
		FetchThumbnailImages: c.FetchThumbnailImages,
		StartDate:            c.StartDate,
		EndDate:              c.EndDate,
		PageSize:             c.PageSize,
		Logger:               log,
	}
	if c.FetchThumbnailImages {
		s.thumbnails = streams.NewThumbnailClient(log)
		opts.ThumbnailClient = s.thumbnails
	}

	s.streams = s.streams[:0]
	for _, kind := range c.Kinds {
		st, err := streams.New(kind, s.graph, opts)
		if err != nil {
			return err
		}
		s.streams = append(s.streams, st)
	}

	log.Info("facebook marketing source initialized",
		zap.String("account_id", c.AccountID),
		zap.String("account_name", s.account.Name),
		zap.Strings("streams", s.streamNames()),
		zap.Time("start_date", c.StartDate),
		zap.Time("end_date", c.EndDate),
		zap.Bool("include_deleted", c.IncludeDeleted),
		zap.Int("page_size", c.PageSize))
	return nil
}

// Discover returns the catalog of configured streams
func (s *Source) Discover(_ context.Context) (*core.Catalog, error) {
	if s.graph == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}
	catalog := &core.Catalog{Streams: make([]core.StreamSchema, 0, len(s.streams))}
	for _, st := range s.streams {
		schema := core.StreamSchema{
			Name:               st.Name(),
			JSONSchema:         json.RawMessage(st.JSONSchema()),
			PrimaryKey:         []string{st.PrimaryKey()},
			CursorField:        st.CursorField(),
			SupportedSyncModes: []core.SyncMode{core.SyncModeFullRefresh},
		}
		if st.SupportsIncremental() {
			schema.SupportedSyncModes = append(schema.SupportedSyncModes, core.SyncModeIncremental)
		}
		catalog.Streams = append(catalog.Streams, schema)
	}
	return catalog, nil
}

// Read drains the streams one after another. A STATE message follows the
// records of every stream.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	if s.graph == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}
	messages := make(chan *models.Message, s.config.PageSize)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		for _, st := range s.streams {
			if err := s.readStream(ctx, st, messages); err != nil {
				errs <- err
				return
			}
		}
	}()

	return &core.RecordStream{Messages: messages, Errors: errs}, nil
}

func (s *Source) readStream(ctx context.Context, st streams.Stream, out chan<- *models.Message) error {
	name := st.Name()
	log := logger.FromContext(logger.WithStream(ctx, name), s.GetLogger())
	timer := metrics.NewTimer()
	progress := s.NewProgressReporter(name)

	mode := core.SyncModeFullRefresh
	state := streams.State(nil)
	if st.SupportsIncremental() {
		mode = core.SyncModeIncremental
		state = s.streamState(name)
	}
	log.Info("reading stream", zap.String("sync_mode", string(mode)))

	for rec, err := range st.ReadRecords(ctx, mode, state) {
		if err != nil {
			log.Error("stream read failed", zap.Error(err))
			return err
		}
		if st.SupportsIncremental() {
			if state, err = st.UpdatedState(state, rec); err != nil {
				return err
			}
		}
		if err := s.emit(ctx, out, models.RecordMessage(models.NewRecord(name, rec))); err != nil {
			return err
		}
		progress.Increment(1)
	}

	if state != nil {
		s.PutState(name, map[string]interface{}(state))
	}
	if err := s.emit(ctx, out, models.StateMessage(s.GetState())); err != nil {
		return err
	}
	progress.Finish()
	timer.ObserveTo(metrics.StreamDuration.WithLabelValues(name))
	return nil
}

func (s *Source) emit(ctx context.Context, out chan<- *models.Message, msg *models.Message) error {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "read canceled")
	}
}

// streamState returns a copy of the saved state of one stream
func (s *Source) streamState(name string) streams.State {
	saved, ok := s.GetState()[name].(map[string]interface{})
	if !ok {
		return streams.State{}
	}
	out := make(streams.State, len(saved))
	for k, v := range saved {
		out[k] = v
	}
	return out
}

// SetState restores per-stream state. Every value must be an object.
func (s *Source) SetState(state core.State) error {
	for name, v := range state {
		if _, ok := v.(map[string]interface{}); !ok {
			return errors.Newf(errors.ErrorTypeConfig, "state for stream %s must be an object, got %T", name, v)
		}
	}
	return s.BaseConnector.SetState(state)
}

// SupportsIncremental is true: every stream but ad_creatives keeps a cursor
func (s *Source) SupportsIncremental() bool {
	return true
}

// Health checks the connector and that the ad account is still readable
func (s *Source) Health(ctx context.Context) error {
	if err := s.BaseConnector.Health(ctx); err != nil {
		return err
	}
	if s.graph == nil {
		return errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}
	_, err := s.graph.CheckAccount(ctx)
	return err
}

// Metrics adds stream level counters to the base connector metrics
func (s *Source) Metrics() map[string]interface{} {
	m := s.BaseConnector.Metrics()
	m["streams"] = s.streamNames()
	var dropped int64
	for _, st := range s.streams {
		if d, ok := st.(interface{ Dropped() int64 }); ok {
			dropped += d.Dropped()
		}
	}
	m["dropped_batch_requests"] = dropped
	if s.config != nil {
		m["account_id"] = s.config.AccountID
	}
	return m
}

// Close releases HTTP clients
func (s *Source) Close(ctx context.Context) error {
	if s.thumbnails != nil {
		_ = s.thumbnails.Close()
	}
	return s.BaseConnector.Close(ctx)
}

func (s *Source) streamNames() []string {
	names := make([]string, len(s.streams))
	for i, st := range s.streams {
		names[i] = st.Name()
	}
	return names
}

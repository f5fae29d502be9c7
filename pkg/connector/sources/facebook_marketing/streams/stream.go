package streams

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/logger"
)

// PrimaryKey is the primary key field of every stream
const PrimaryKey = "id"

// Stream is the capability shared by every entity stream
type Stream interface {
	Name() string
	PrimaryKey() string
	// CursorField is empty for streams that are not incremental
	CursorField() string
	SupportsIncremental() bool
	Fields() []string
	JSONSchema() []byte
	RequestParams(state State) (RequestParams, error)
	ReadRecords(ctx context.Context, mode core.SyncMode, state State) iter.Seq2[Record, error]
	UpdatedState(current State, latest Record) (State, error)
}

// Descriptor binds an entity kind onto the shared stream behavior
type Descriptor struct {
	Name string
	// Kind is the account edge to list. An empty Kind lists nothing.
	Kind         EntityKind
	EntityPrefix string
	// EnableDeleted marks streams that honor the include_deleted option
	EnableDeleted bool
	// UseBatch loads details through a BatchExecutor instead of inline
	UseBatch bool
	// ComputedFields are declared in Schema but never requested
	ComputedFields []string
	// ListFields are requested on the listing call. Nil requests ids only.
	ListFields []string
	Schema     []byte
}

// Options is the per-sync configuration shared by all streams
type Options struct {
	IncludeDeleted       bool
	FetchThumbnailImages bool
	StartDate            time.Time
	EndDate              time.Time
	// PageSize defaults to DefaultPageSize
	PageSize int
	Logger   *zap.Logger
	// ThumbnailClient fetches thumbnail images for ad creatives
	ThumbnailClient HTTPGetter
}

// BaseStream lists an entity kind and loads each entity's fields, either
// inline or through a BatchExecutor.
type BaseStream struct {
	desc           Descriptor
	api            API
	pageSize       int
	includeDeleted bool
	logger         *zap.Logger
	executor       *BatchExecutor

	fieldsOnce sync.Once
	fields     []string
}

// NewBaseStream builds a stream from desc
func NewBaseStream(desc Descriptor, api API, opts Options) (*BaseStream, error) {
	if desc.Name == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "stream name is required")
	}
	if api == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: api is required", desc.Name)
	}
	if opts.PageSize < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: page size must not be negative", desc.Name)
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String(string(logger.StreamKey), desc.Name))

	s := &BaseStream{
		desc:           desc,
		api:            api,
		pageSize:       pageSize,
		includeDeleted: opts.IncludeDeleted && desc.EnableDeleted,
		logger:         log,
	}
	if desc.UseBatch {
		s.executor = NewBatchExecutor(api.NewBatch, desc.Name, log)
	}
	return s, nil
}

func (s *BaseStream) Name() string              { return s.desc.Name }
func (s *BaseStream) PrimaryKey() string        { return PrimaryKey }
func (s *BaseStream) CursorField() string       { return "" }
func (s *BaseStream) SupportsIncremental() bool { return false }
func (s *BaseStream) JSONSchema() []byte        { return s.desc.Schema }

// IncludeDeleted reports whether deleted and archived entities are read
func (s *BaseStream) IncludeDeleted() bool {
	return s.includeDeleted
}

// Fields returns the declared schema properties in document order, minus
// computed fields.
func (s *BaseStream) Fields() []string {
	s.fieldsOnce.Do(func() {
		computed := make(map[string]struct{}, len(s.desc.ComputedFields))
		for _, f := range s.desc.ComputedFields {
			computed[f] = struct{}{}
		}
		gjson.GetBytes(s.desc.Schema, "properties").ForEach(func(key, _ gjson.Result) bool {
			if _, skip := computed[key.String()]; !skip {
				s.fields = append(s.fields, key.String())
			}
			return true
		})
	})
	return append([]string(nil), s.fields...)
}

// RequestParams sets the page size and, when include_deleted is in effect,
// a delivery status filter covering every lifecycle status.
func (s *BaseStream) RequestParams(_ State) (RequestParams, error) {
	params := RequestParams{Limit: s.pageSize}
	if s.includeDeleted {
		params = params.Merge(RequestParams{Filtering: []FilterClause{{
			Field:    s.desc.EntityPrefix + ".delivery_info",
			Operator: OperatorIn,
			Value:    DeliveryStatuses(),
		}}})
	}
	return params, nil
}

// ReadRecords lists the entities and yields each with its full field set
func (s *BaseStream) ReadRecords(ctx context.Context, _ core.SyncMode, state State) iter.Seq2[Record, error] {
	params, err := s.RequestParams(state)
	if err != nil {
		return failed(err)
	}
	return s.readWith(ctx, params)
}

// UpdatedState returns current unchanged; full refresh streams keep no cursor
func (s *BaseStream) UpdatedState(current State, _ Record) (State, error) {
	return current, nil
}

// Dropped returns how many batched detail fetches failed. It is always
// zero for streams that load inline.
func (s *BaseStream) Dropped() int64 {
	if s.executor == nil {
		return 0
	}
	return s.executor.Dropped()
}

func (s *BaseStream) readWith(ctx context.Context, params RequestParams) iter.Seq2[Record, error] {
	if s.desc.Kind == "" {
		return func(func(Record, error) bool) {}
	}
	fields := s.Fields()
	handles := s.api.ListEntities(ctx, s.desc.Kind, params, s.desc.ListFields)

	if s.executor != nil {
		requests := func(yield func(Request, error) bool) {
			for h, err := range handles {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(h.Prepare(fields), nil) {
					return
				}
			}
		}
		return s.executor.Execute(ctx, requests)
	}

	return func(yield func(Record, error) bool) {
		for h, err := range handles {
			if err != nil {
				yield(nil, err)
				return
			}
			rec, err := h.Fetch(ctx, fields)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func failed(err error) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		yield(nil, err)
	}
}

package streams

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

// DefaultCursorField is the cursor of every incremental entity stream
const DefaultCursorField = "updated_time"

// IncludeDeletedKey is the state key recording the include_deleted setting
// the cursor was produced with.
const IncludeDeletedKey = "include_deleted"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses RFC 3339 and the Graph API's "+0000" offset form
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "unrecognized timestamp %q", s)
}

// IncrementalStream filters listings by a cursor field and advances the
// cursor from emitted records.
//
// When include_deleted is enabled but the prior state was produced without
// it, the bookmark is ignored for one pass so deleted and archived entities
// inside the already synced window are read, and the cursor is set to each
// record's own value instead of the running maximum.
type IncrementalStream struct {
	*BaseStream
	cursorField string
	startDate   time.Time
	endDate     time.Time
}

// NewIncrementalStream builds an incremental stream. StartDate and EndDate
// are required.
func NewIncrementalStream(desc Descriptor, api API, opts Options) (*IncrementalStream, error) {
	if opts.StartDate.IsZero() {
		return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: start date is required", desc.Name)
	}
	if opts.EndDate.IsZero() {
		return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: end date is required", desc.Name)
	}
	if opts.EndDate.Before(opts.StartDate) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: end date %s precedes start date %s",
			desc.Name, opts.EndDate.Format(time.RFC3339), opts.StartDate.Format(time.RFC3339))
	}
	base, err := NewBaseStream(desc, api, opts)
	if err != nil {
		return nil, err
	}
	return &IncrementalStream{
		BaseStream:  base,
		cursorField: DefaultCursorField,
		startDate:   opts.StartDate,
		endDate:     opts.EndDate,
	}, nil
}

func (s *IncrementalStream) CursorField() string       { return s.cursorField }
func (s *IncrementalStream) SupportsIncremental() bool { return true }

// StartDate is the lower bound used when there is no usable bookmark
func (s *IncrementalStream) StartDate() time.Time { return s.startDate }

// EndDate is the configured upper bound of the sync window
func (s *IncrementalStream) EndDate() time.Time { return s.endDate }

// RequestParams adds a GREATER_THAN filter on the cursor field to the base
// parameters. The threshold is sent as epoch seconds.
func (s *IncrementalStream) RequestParams(state State) (RequestParams, error) {
	params, err := s.BaseStream.RequestParams(state)
	if err != nil {
		return RequestParams{}, err
	}
	threshold, err := s.threshold(state)
	if err != nil {
		return RequestParams{}, err
	}
	return params.Merge(RequestParams{Filtering: []FilterClause{{
		Field:    s.desc.EntityPrefix + "." + s.cursorField,
		Operator: OperatorGreaterThan,
		Value:    threshold.Unix(),
	}}}), nil
}

// ReadRecords reads records newer than the state's cursor. Full refresh
// ignores state and reads from the start date.
func (s *IncrementalStream) ReadRecords(ctx context.Context, mode core.SyncMode, state State) iter.Seq2[Record, error] {
	if mode == core.SyncModeFullRefresh {
		state = nil
	}
	params, err := s.RequestParams(state)
	if err != nil {
		return failed(err)
	}
	return s.readWith(ctx, params)
}

// UpdatedState returns the state after latest was emitted. The cursor is
// the later of the current cursor and the record's, except while the
// include_deleted override is active.
func (s *IncrementalStream) UpdatedState(current State, latest Record) (State, error) {
	raw, ok := latest[s.cursorField].(string)
	if !ok || raw == "" {
		return nil, errors.Newf(errors.ErrorTypeData, "stream %s: record has no %s", s.desc.Name, s.cursorField).
			WithDetail("id", latest[PrimaryKey])
	}
	recordTime, err := ParseTimestamp(raw)
	if err != nil {
		return nil, err
	}

	next := State{IncludeDeletedKey: s.includeDeleted}
	if s.overrideActive(current) {
		next[s.cursorField] = raw
		return next, nil
	}

	cursor := recordTime
	if prior, ok, err := s.stateCursor(current); err != nil {
		return nil, err
	} else if ok && prior.After(cursor) {
		cursor = prior
	}
	next[s.cursorField] = cursor.UTC().Format(time.RFC3339)
	return next, nil
}

func (s *IncrementalStream) threshold(state State) (time.Time, error) {
	if s.overrideActive(state) {
		s.logger.Info("ignoring bookmark because include_deleted was enabled",
			zap.Time("start_date", s.startDate))
		return s.startDate, nil
	}
	cursor, ok, err := s.stateCursor(state)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return s.startDate, nil
	}
	return cursor, nil
}

func (s *IncrementalStream) stateCursor(state State) (time.Time, bool, error) {
	switch v := state[s.cursorField].(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, !v.IsZero(), nil
	case string:
		if v == "" {
			return time.Time{}, false, nil
		}
		t, err := ParseTimestamp(v)
		if err != nil {
			return time.Time{}, false, err
		}
		return t, true, nil
	default:
		return time.Time{}, false, errors.Newf(errors.ErrorTypeData, "stream %s: state %s has type %T", s.desc.Name, s.cursorField, v)
	}
}

// overrideActive reports whether include_deleted is on now but the state
// was produced without it.
func (s *IncrementalStream) overrideActive(state State) bool {
	if !s.includeDeleted {
		return false
	}
	prev, _ := state[IncludeDeletedKey].(bool)
	return !prev
}

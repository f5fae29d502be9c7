package streams

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/clients"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
)

var (
	startDate = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate   = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
)

func testOptions() Options {
	return Options{StartDate: startDate, EndDate: endDate, Logger: zap.NewNop()}
}

func TestRequestParamsPageSize(t *testing.T) {
	api := newFakeAPI()

	s, err := NewCampaigns(api, testOptions())
	require.NoError(t, err)
	params, err := s.RequestParams(State{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, params.Limit)

	opts := testOptions()
	opts.PageSize = 25
	s, err = NewCampaigns(api, opts)
	require.NoError(t, err)
	params, err = s.RequestParams(State{})
	require.NoError(t, err)
	assert.Equal(t, 25, params.Limit)
}

func TestCampaignsCursorFilterFromStartDate(t *testing.T) {
	s, err := NewCampaigns(newFakeAPI(), testOptions())
	require.NoError(t, err)

	params, err := s.RequestParams(State{})
	require.NoError(t, err)

	assert.Equal(t, []FilterClause{{
		Field:    "campaign.updated_time",
		Operator: OperatorGreaterThan,
		Value:    int64(1609459200),
	}}, params.Filtering)
}

func TestCursorFilterFromState(t *testing.T) {
	s, err := NewAdSets(newFakeAPI(), testOptions())
	require.NoError(t, err)

	params, err := s.RequestParams(State{"updated_time": "2021-03-01T12:00:00+0000", "include_deleted": false})
	require.NoError(t, err)

	require.Len(t, params.Filtering, 1)
	assert.Equal(t, "adset.updated_time", params.Filtering[0].Field)
	assert.Equal(t, time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC).Unix(), params.Filtering[0].Value)
}

func TestIncludeDeletedStatusFilter(t *testing.T) {
	opts := testOptions()
	opts.IncludeDeleted = true

	s, err := NewAds(newFakeAPI(), opts)
	require.NoError(t, err)

	params, err := s.RequestParams(State{"updated_time": "2021-03-01T00:00:00Z", "include_deleted": true})
	require.NoError(t, err)

	require.Len(t, params.Filtering, 2)
	status := params.Filtering[0]
	assert.Equal(t, "ad.delivery_info", status.Field)
	assert.Equal(t, OperatorIn, status.Operator)
	assert.Equal(t, []string{
		"active", "archived", "completed", "limited", "not_delivering", "deleted",
		"not_published", "pending_review", "permanently_deleted", "recently_completed",
		"recently_rejected", "rejected", "scheduled", "inactive",
	}, status.Value)
	assert.Equal(t, OperatorGreaterThan, params.Filtering[1].Operator)

	raw, err := params.FilteringJSON()
	require.NoError(t, err)
	assert.Contains(t, raw, `{"field":"ad.delivery_info","operator":"IN","value":["active",`)
}

func TestIncludeDeletedIgnoredWhenUnsupported(t *testing.T) {
	opts := testOptions()
	opts.IncludeDeleted = true

	s, err := NewAdCreatives(newFakeAPI(), opts)
	require.NoError(t, err)

	params, err := s.RequestParams(State{})
	require.NoError(t, err)
	assert.Empty(t, params.Filtering)
	assert.False(t, s.IncludeDeleted())
}

func TestIncludeDeletedOverride(t *testing.T) {
	logCore, logs := observer.New(zapcore.InfoLevel)
	opts := testOptions()
	opts.IncludeDeleted = true
	opts.Logger = zap.New(logCore)

	s, err := NewCampaigns(newFakeAPI(), opts)
	require.NoError(t, err)

	prior := State{"updated_time": "2021-05-01T00:00:00Z", "include_deleted": false}

	params, err := s.RequestParams(prior)
	require.NoError(t, err)
	assert.Equal(t, startDate.Unix(), params.Filtering[1].Value)
	assert.Equal(t, 1, logs.FilterMessage("ignoring bookmark because include_deleted was enabled").Len())

	next, err := s.UpdatedState(prior, Record{"id": "1", "updated_time": "2021-02-01T00:00:00+0000"})
	require.NoError(t, err)
	assert.Equal(t, State{"updated_time": "2021-02-01T00:00:00+0000", "include_deleted": true}, next)

	// Once the state records include_deleted the cursor only moves forward.
	after, err := s.UpdatedState(next, Record{"id": "2", "updated_time": "2021-01-15T00:00:00+0000"})
	require.NoError(t, err)
	assert.Equal(t, "2021-02-01T00:00:00Z", after["updated_time"])
}

func TestUpdatedStateIsMonotonic(t *testing.T) {
	s, err := NewVideos(newFakeAPI(), testOptions())
	require.NoError(t, err)

	tests := []struct {
		name   string
		state  State
		record string
		want   string
	}{
		{name: "empty state", state: State{}, record: "2021-02-01T00:00:00+0000", want: "2021-02-01T00:00:00Z"},
		{name: "newer record", state: State{"updated_time": "2021-02-01T00:00:00Z"}, record: "2021-03-01T10:00:00+0000", want: "2021-03-01T10:00:00Z"},
		{name: "older record", state: State{"updated_time": "2021-02-01T00:00:00Z"}, record: "2021-01-10T00:00:00+0000", want: "2021-02-01T00:00:00Z"},
		{name: "offset normalized", state: State{}, record: "2021-02-01T02:00:00+0200", want: "2021-02-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := s.UpdatedState(tt.state, Record{"id": "1", "updated_time": tt.record})
			require.NoError(t, err)
			assert.Equal(t, tt.want, next["updated_time"])
			assert.Equal(t, false, next["include_deleted"])
		})
	}
}

func TestUpdatedStateRejectsBadCursor(t *testing.T) {
	s, err := NewAds(newFakeAPI(), testOptions())
	require.NoError(t, err)

	_, err = s.UpdatedState(State{}, Record{"id": "1"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	_, err = s.UpdatedState(State{"updated_time": "yesterday"}, Record{"id": "1", "updated_time": "2021-01-01T00:00:00Z"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestIncrementalConstructionRequiresDates(t *testing.T) {
	api := newFakeAPI()
	tests := []struct {
		name string
		opts Options
	}{
		{name: "no start", opts: Options{EndDate: endDate}},
		{name: "no end", opts: Options{StartDate: startDate}},
		{name: "end before start", opts: Options{StartDate: endDate, EndDate: startDate}},
		{name: "negative page size", opts: Options{StartDate: startDate, EndDate: endDate, PageSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCampaigns(api, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}

	_, err := NewCampaigns(nil, testOptions())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFieldsExcludeComputed(t *testing.T) {
	s, err := NewAdCreatives(newFakeAPI(), testOptions())
	require.NoError(t, err)

	fields := s.Fields()
	assert.NotContains(t, fields, ThumbnailField)
	assert.Contains(t, fields, "thumbnail_url")
	assert.Equal(t, "id", fields[0])

	fields[0] = "mutated"
	assert.Equal(t, "id", s.Fields()[0])
}

func TestReadRecordsInline(t *testing.T) {
	api := newFakeAPI()
	api.add(KindCampaigns, 3)

	s, err := NewCampaigns(api, testOptions())
	require.NoError(t, err)

	records, err := collect(s.ReadRecords(context.Background(), core.SyncModeIncremental, State{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(records))

	require.Len(t, api.lists, 1)
	assert.Equal(t, KindCampaigns, api.lists[0].kind)
	assert.Nil(t, api.lists[0].fields)
	require.Len(t, api.fetches, 3)
	assert.Equal(t, s.Fields(), api.fetches[0])
	assert.Empty(t, api.executions)
}

func TestAdsListOnlyCursorField(t *testing.T) {
	api := newFakeAPI()
	api.add(KindAds, 2)

	s, err := NewAds(api, testOptions())
	require.NoError(t, err)

	_, err = collect(s.ReadRecords(context.Background(), core.SyncModeIncremental, State{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"updated_time"}, api.lists[0].fields)
	assert.Contains(t, api.fetches[0], "creative")
}

func TestReadRecordsFullRefreshIgnoresState(t *testing.T) {
	api := newFakeAPI()
	s, err := NewAdSets(api, testOptions())
	require.NoError(t, err)

	_, err = collect(s.ReadRecords(context.Background(), core.SyncModeFullRefresh, State{"updated_time": "2021-05-01T00:00:00Z"}))
	require.NoError(t, err)
	assert.Equal(t, startDate.Unix(), api.lists[0].params.Filtering[0].Value)
}

func TestReadRecordsPropagatesFaults(t *testing.T) {
	listErr := errors.New(errors.ErrorTypeRateLimit, "too many calls")

	t.Run("listing", func(t *testing.T) {
		api := newFakeAPI()
		api.add(KindVideos, 2)
		api.listErr = listErr
		s, err := NewVideos(api, testOptions())
		require.NoError(t, err)

		records, err := collect(s.ReadRecords(context.Background(), core.SyncModeIncremental, State{}))
		assert.Same(t, listErr, err)
		assert.Len(t, records, 2)
	})

	t.Run("inline fetch", func(t *testing.T) {
		api := newFakeAPI()
		api.add(KindVideos, 3)
		fetchErr := stderrors.New("boom")
		api.fetchErr["2"] = fetchErr
		s, err := NewVideos(api, testOptions())
		require.NoError(t, err)

		records, err := collect(s.ReadRecords(context.Background(), core.SyncModeIncremental, State{}))
		assert.Same(t, fetchErr, err)
		assert.Equal(t, []string{"1"}, ids(records))
	})
}

func TestReadRecordsWithoutKindYieldsNothing(t *testing.T) {
	api := newFakeAPI()
	s, err := NewBaseStream(Descriptor{Name: "bare"}, api, testOptions())
	require.NoError(t, err)

	records, err := collect(s.ReadRecords(context.Background(), core.SyncModeFullRefresh, nil))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, api.lists)
}

func TestAdCreativesReadInBatches(t *testing.T) {
	api := newFakeAPI()
	api.add(KindAdCreatives, 120)
	api.failIDs["7"] = true

	s, err := NewAdCreatives(api, testOptions())
	require.NoError(t, err)

	records, err := collect(s.ReadRecords(context.Background(), core.SyncModeFullRefresh, nil))
	require.NoError(t, err)

	assert.Len(t, records, 119)
	assert.Equal(t, []int{50, 50, 20}, api.executions)
	assert.Empty(t, api.fetches)
	assert.EqualValues(t, 1, s.Dropped())
	assert.NotContains(t, records[0], ThumbnailField)
}

func TestAdCreativesThumbnails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	api := newFakeAPI()
	api.entities[KindAdCreatives] = []Record{
		{"id": "1", "thumbnail_url": srv.URL + "/ok.png"},
		{"id": "2", "thumbnail_url": srv.URL + "/missing.png"},
	}

	logCore, logs := observer.New(zapcore.WarnLevel)
	opts := testOptions()
	opts.FetchThumbnailImages = true
	opts.Logger = zap.New(logCore)
	opts.ThumbnailClient = clients.NewHTTPClient(clients.DefaultHTTPConfig(), zap.NewNop())

	s, err := NewAdCreatives(api, opts)
	require.NoError(t, err)

	records, err := collect(s.ReadRecords(context.Background(), core.SyncModeFullRefresh, nil))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "data:image/png;base64,cG5n", records[0][ThumbnailField])
	assert.Contains(t, records[1], ThumbnailField)
	assert.Nil(t, records[1][ThumbnailField])
	assert.Equal(t, 1, logs.FilterMessage("failed to fetch thumbnail image").Len())
}

func TestThumbnailFetchLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := maxThumbnailBytes
		switch r.URL.Path {
		case "/large.png":
			size = maxThumbnailBytes + 1000
		case "/redirect.png":
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{'x'}, size))
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		path      string
		available bool
		reason    string
		status    string
	}{
		{name: "at limit", path: "/exact.png", available: true, status: "ok"},
		{name: "over limit", path: "/large.png", reason: "image exceeds size limit", status: "too_large"},
		{name: "non-200 success", path: "/redirect.png", reason: "status 204", status: "http_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logCore, logs := observer.New(zapcore.WarnLevel)
			fetcher := NewThumbnailFetcher(NewThumbnailClient(zap.NewNop()), zap.New(logCore))
			before := testutil.ToFloat64(metrics.ThumbnailFetches.WithLabelValues(tt.status))

			res := fetcher.Fetch(context.Background(), srv.URL+tt.path)

			assert.Equal(t, tt.available, res.Available)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.ThumbnailFetches.WithLabelValues(tt.status)))
			if tt.available {
				assert.Len(t, res.DataURL, len("data:image/png;base64,")+base64.StdEncoding.EncodedLen(maxThumbnailBytes))
				assert.Zero(t, logs.Len())
				return
			}
			assert.Nil(t, res.Value())
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestAdCreativesOversizedThumbnailIsNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(make([]byte, maxThumbnailBytes+1))
	}))
	defer srv.Close()

	api := newFakeAPI()
	api.entities[KindAdCreatives] = []Record{{"id": "1", "thumbnail_url": srv.URL + "/big.jpg"}}

	logCore, logs := observer.New(zapcore.WarnLevel)
	opts := testOptions()
	opts.FetchThumbnailImages = true
	opts.Logger = zap.New(logCore)

	s, err := NewAdCreatives(api, opts)
	require.NoError(t, err)
	records, err := collect(s.ReadRecords(context.Background(), core.SyncModeFullRefresh, nil))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Contains(t, records[0], ThumbnailField)
	assert.Nil(t, records[0][ThumbnailField])
	assert.Equal(t, 1, logs.FilterMessage("thumbnail image exceeds size limit").Len())
}

func TestThumbnailClientAcceptsImages(t *testing.T) {
	var accept, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("gif"))
	}))
	defer srv.Close()

	res := NewThumbnailFetcher(NewThumbnailClient(zap.NewNop()), zap.NewNop()).Fetch(context.Background(), srv.URL)
	require.True(t, res.Available)
	assert.Equal(t, "image/*", accept)
	assert.Empty(t, auth)
}

func TestNewByKind(t *testing.T) {
	api := newFakeAPI()

	all, err := All(api, testOptions())
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name()
		assert.Equal(t, "id", s.PrimaryKey())
		assert.NotEmpty(t, s.JSONSchema())
	}
	assert.Equal(t, []string{"campaigns", "ad_sets", "ads", "ad_creatives", "videos"}, names)

	assert.False(t, all[3].SupportsIncremental())
	assert.Empty(t, all[3].CursorField())
	assert.Equal(t, "updated_time", all[0].CursorField())

	kind, ok := KindForName("videos")
	assert.True(t, ok)
	assert.Equal(t, KindVideos, kind)

	_, err = New("insights", api, testOptions())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	for _, kind := range Kinds {
		s, err := New(kind, nil, testOptions())
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), kind)
		assert.Nil(t, s, kind)
	}
}

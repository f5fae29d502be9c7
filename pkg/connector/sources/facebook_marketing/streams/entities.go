package streams

import (
	"context"
	"embed"
	"iter"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

func schema(name string) []byte {
	b, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic("streams: missing embedded schema " + name)
	}
	return b
}

var descriptors = map[EntityKind]Descriptor{
	KindAdCreatives: {
		Name:           "ad_creatives",
		Kind:           KindAdCreatives,
		EntityPrefix:   "adcreative",
		UseBatch:       true,
		ComputedFields: []string{ThumbnailField},
	},
	KindAds: {
		Name:          "ads",
		Kind:          KindAds,
		EntityPrefix:  "ad",
		EnableDeleted: true,
		ListFields:    []string{DefaultCursorField},
	},
	KindAdSets: {
		Name:          "ad_sets",
		Kind:          KindAdSets,
		EntityPrefix:  "adset",
		EnableDeleted: true,
	},
	KindCampaigns: {
		Name:          "campaigns",
		Kind:          KindCampaigns,
		EntityPrefix:  "campaign",
		EnableDeleted: true,
	},
	KindVideos: {
		Name:          "videos",
		Kind:          KindVideos,
		EntityPrefix:  "video",
		EnableDeleted: true,
	},
}

// Kinds lists every supported entity kind in catalog order
var Kinds = []EntityKind{KindCampaigns, KindAdSets, KindAds, KindAdCreatives, KindVideos}

// DescriptorFor returns the descriptor of kind with its schema loaded
func DescriptorFor(kind EntityKind) (Descriptor, bool) {
	d, ok := descriptors[kind]
	if !ok {
		return Descriptor{}, false
	}
	d.Schema = schema(d.Name)
	return d, true
}

// KindForName maps a stream name such as "ad_sets" to its entity kind
func KindForName(name string) (EntityKind, bool) {
	for kind, d := range descriptors {
		if d.Name == name {
			return kind, true
		}
	}
	return "", false
}

// New builds the stream for kind
func New(kind EntityKind, api API, opts Options) (Stream, error) {
	var (
		s   Stream
		err error
	)
	switch kind {
	case KindAdCreatives:
		s, err = asStream(NewAdCreatives(api, opts))
	case KindAds:
		s, err = asStream(NewAds(api, opts))
	case KindAdSets:
		s, err = asStream(NewAdSets(api, opts))
	case KindCampaigns:
		s, err = asStream(NewCampaigns(api, opts))
	case KindVideos:
		s, err = asStream(NewVideos(api, opts))
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown entity kind %q", kind)
	}
	return s, err
}

// asStream keeps a failed constructor from producing a non-nil Stream
// holding a nil pointer.
func asStream[S Stream](s S, err error) (Stream, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// All builds every stream in catalog order
func All(api API, opts Options) ([]Stream, error) {
	out := make([]Stream, 0, len(Kinds))
	for _, kind := range Kinds {
		s, err := New(kind, api, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// NewAds builds the ads stream, listing only the cursor field
func NewAds(api API, opts Options) (*IncrementalStream, error) {
	desc, _ := DescriptorFor(KindAds)
	return NewIncrementalStream(desc, api, opts)
}

// NewAdSets builds the ad sets stream
func NewAdSets(api API, opts Options) (*IncrementalStream, error) {
	desc, _ := DescriptorFor(KindAdSets)
	return NewIncrementalStream(desc, api, opts)
}

// NewCampaigns builds the campaigns stream
func NewCampaigns(api API, opts Options) (*IncrementalStream, error) {
	desc, _ := DescriptorFor(KindCampaigns)
	return NewIncrementalStream(desc, api, opts)
}

// NewVideos builds the videos stream
func NewVideos(api API, opts Options) (*IncrementalStream, error) {
	desc, _ := DescriptorFor(KindVideos)
	return NewIncrementalStream(desc, api, opts)
}

// AdCreatives loads creatives in batches and optionally embeds each
// creative's thumbnail image as a data URL.
type AdCreatives struct {
	*BaseStream
	thumbnails *ThumbnailFetcher
}

// NewAdCreatives builds the ad creatives stream
func NewAdCreatives(api API, opts Options) (*AdCreatives, error) {
	desc, _ := DescriptorFor(KindAdCreatives)
	base, err := NewBaseStream(desc, api, opts)
	if err != nil {
		return nil, err
	}
	s := &AdCreatives{BaseStream: base}
	if opts.FetchThumbnailImages {
		client := opts.ThumbnailClient
		if client == nil {
			client = NewThumbnailClient(base.logger)
		}
		s.thumbnails = NewThumbnailFetcher(client, base.logger)
	}
	return s, nil
}

// ReadRecords yields creatives, adding ThumbnailField when thumbnail
// fetching is enabled.
func (s *AdCreatives) ReadRecords(ctx context.Context, mode core.SyncMode, state State) iter.Seq2[Record, error] {
	records := s.BaseStream.ReadRecords(ctx, mode, state)
	if s.thumbnails == nil {
		return records
	}
	return func(yield func(Record, error) bool) {
		for rec, err := range records {
			if err != nil {
				yield(nil, err)
				return
			}
			url, _ := rec["thumbnail_url"].(string)
			rec[ThumbnailField] = s.thumbnails.Fetch(ctx, url).Value()
			if !yield(rec, nil) {
				return
			}
		}
	}
}

package streams

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/clients"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/metrics"
)

// ThumbnailField is the computed ad creative field holding the image
const ThumbnailField = "thumbnail_data_url"

const maxThumbnailBytes = 8 << 20

// HTTPGetter performs plain GET requests
type HTTPGetter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// ThumbnailResult is the outcome of a best-effort thumbnail fetch
type ThumbnailResult struct {
	Available bool
	DataURL   string
	// Reason explains why the image is unavailable
	Reason string
}

// Value is the record value for ThumbnailField: the data URL, or nil
func (r ThumbnailResult) Value() interface{} {
	if !r.Available {
		return nil
	}
	return r.DataURL
}

// NewThumbnailClient returns an HTTP client for CDN image downloads. It
// carries no access token and accepts any image type.
func NewThumbnailClient(logger *zap.Logger) *clients.HTTPClient {
	cfg := clients.DefaultHTTPConfig()
	cfg.Accept = "image/*"
	return clients.NewHTTPClient(cfg, logger)
}

// ThumbnailFetcher downloads thumbnail images and encodes them as data URLs
type ThumbnailFetcher struct {
	client HTTPGetter
	logger *zap.Logger
}

// NewThumbnailFetcher creates a fetcher using client
func NewThumbnailFetcher(client HTTPGetter, logger *zap.Logger) *ThumbnailFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThumbnailFetcher{client: client, logger: logger}
}

// Fetch never fails; problems are logged and reported as unavailable.
// Only a 200 response with a body within the size limit is available.
func (f *ThumbnailFetcher) Fetch(ctx context.Context, url string) ThumbnailResult {
	if url == "" {
		metrics.ThumbnailFetches.WithLabelValues("missing_url").Inc()
		return ThumbnailResult{Reason: "no thumbnail_url"}
	}

	resp, err := f.client.Get(ctx, url)
	if err != nil {
		metrics.ThumbnailFetches.WithLabelValues("transport_error").Inc()
		f.logger.Warn("failed to fetch thumbnail image", zap.String("url", url), zap.Error(err))
		return ThumbnailResult{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ThumbnailFetches.WithLabelValues("http_error").Inc()
		f.logger.Warn("failed to fetch thumbnail image",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return ThumbnailResult{Reason: "status " + strconv.Itoa(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes+1))
	if err != nil {
		metrics.ThumbnailFetches.WithLabelValues("transport_error").Inc()
		f.logger.Warn("failed to read thumbnail image", zap.String("url", url), zap.Error(err))
		return ThumbnailResult{Reason: err.Error()}
	}
	if len(body) > maxThumbnailBytes {
		metrics.ThumbnailFetches.WithLabelValues("too_large").Inc()
		f.logger.Warn("thumbnail image exceeds size limit",
			zap.String("url", url),
			zap.Int("limit_bytes", maxThumbnailBytes))
		return ThumbnailResult{Reason: "image exceeds size limit"}
	}

	metrics.ThumbnailFetches.WithLabelValues("ok").Inc()
	return ThumbnailResult{
		Available: true,
		DataURL:   "data:" + resp.Header.Get("Content-Type") + ";base64," + base64.StdEncoding.EncodeToString(body),
	}
}

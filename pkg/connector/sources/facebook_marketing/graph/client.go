// Package graph is the Facebook Graph API transport behind the streams:
// paginated account edge listings, single node reads and batch requests.
package graph

import (
	"context"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/clients"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/base"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/sources/facebook_marketing/streams"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
	stringpool "github.com/ajitpratap0/nebula-fbmarketing/pkg/strings"
)

const (
	DefaultBaseURL          = "https://graph.facebook.com"
	DefaultAPIVersion       = "v18.0"
	DefaultMaxBatchAttempts = 5
	DefaultThrottlePause    = 30 * time.Second
)

// Doer sends HTTP requests. *clients.HTTPClient satisfies it.
type Doer interface {
	Get(ctx context.Context, url string) (*http.Response, error)
	PostForm(ctx context.Context, url string, body io.Reader) (*http.Response, error)
}

// Config configures a Client
type Config struct {
	BaseURL    string
	APIVersion string
	// AccountID may be given with or without the "act_" prefix
	AccountID string
	// MaxBatchAttempts bounds how often a throttled batch request is
	// re-submitted before it is reported as failed.
	MaxBatchAttempts int
	// ThrottlePause is how long requests are held after a throttling response
	ThrottlePause time.Duration
}

// Client implements streams.API over the Graph API
type Client struct {
	config  Config
	http    Doer
	retry   *base.RetryPolicy
	limiter clients.RateLimiter
	logger  *zap.Logger
}

var _ streams.API = (*Client)(nil)

// NewClient creates a Graph API client. When doer exposes its rate limiter
// (as *clients.HTTPClient does), throttling responses pause it.
func NewClient(config Config, doer Doer, retry *base.RetryPolicy, logger *zap.Logger) (*Client, error) {
	if doer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "graph: http client is required")
	}
	config.AccountID = strings.TrimPrefix(strings.TrimSpace(config.AccountID), "act_")
	if config.AccountID == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "graph: account id is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.MaxBatchAttempts <= 0 {
		config.MaxBatchAttempts = DefaultMaxBatchAttempts
	}
	if config.ThrottlePause <= 0 {
		config.ThrottlePause = DefaultThrottlePause
	}
	if retry == nil {
		retry = base.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		config: config,
		http:   doer,
		retry:  retry,
		logger: logger.With(zap.String("component", "graph")),
	}
	if l, ok := doer.(interface{ RateLimiter() clients.RateLimiter }); ok {
		c.limiter = l.RateLimiter()
	}
	return c, nil
}

// AccountInfo is the subset of ad account fields used to validate access
type AccountInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AccountStatus int    `json:"account_status"`
}

// CheckAccount reads the ad account, verifying the token can access it
func (c *Client) CheckAccount(ctx context.Context) (*AccountInfo, error) {
	ub := stringpool.NewURLBuilder(c.config.BaseURL).
		AddPath(c.config.APIVersion, "act_"+c.config.AccountID).
		AddParam("fields", "id,name,account_status")
	defer ub.Close()

	var info AccountInfo
	if err := c.getJSON(ctx, ub.String(), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type listPage struct {
	Data   []streams.Record `json:"data"`
	Paging *struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// ListEntities pages through act_<account>/<kind>, following the "after"
// cursor while the response links a next page.
func (c *Client) ListEntities(ctx context.Context, kind streams.EntityKind, params streams.RequestParams, fields []string) iter.Seq2[streams.EntityHandle, error] {
	return func(yield func(streams.EntityHandle, error) bool) {
		filtering, err := params.FilteringJSON()
		if err != nil {
			yield(nil, err)
			return
		}

		after := ""
		for pageNum := 1; ; pageNum++ {
			url := c.listURL(kind, params.Limit, filtering, fields, after)
			var page listPage
			if err := c.getJSON(ctx, url, &page); err != nil {
				yield(nil, err)
				return
			}
			c.logger.Debug("fetched listing page",
				zap.String("edge", string(kind)),
				zap.Int("page", pageNum),
				zap.Int("entities", len(page.Data)))

			for _, data := range page.Data {
				id, _ := data["id"].(string)
				if id == "" {
					yield(nil, errors.Newf(errors.ErrorTypeData, "graph: %s entity without id", kind))
					return
				}
				if !yield(&handle{client: c, id: id}, nil) {
					return
				}
			}

			if page.Paging == nil || page.Paging.Next == "" || page.Paging.Cursors.After == "" {
				return
			}
			after = page.Paging.Cursors.After
		}
	}
}

// NewBatch starts an empty batch
func (c *Client) NewBatch() streams.Batch {
	return &batch{client: c}
}

func (c *Client) listURL(kind streams.EntityKind, limit int, filtering string, fields []string, after string) string {
	ub := stringpool.NewURLBuilder(c.config.BaseURL).
		AddPath(c.config.APIVersion, "act_"+c.config.AccountID, string(kind))
	defer ub.Close()

	if len(fields) > 0 {
		ub.AddParam("fields", stringpool.JoinPooled(fields, ","))
	}
	if limit > 0 {
		ub.AddParamInt("limit", limit)
	}
	if filtering != "" {
		ub.AddParam("filtering", filtering)
	}
	if after != "" {
		ub.AddParam("after", after)
	}
	return ub.String()
}

func (c *Client) nodeURL(id string, fields []string) string {
	ub := stringpool.NewURLBuilder(c.config.BaseURL).AddPath(c.config.APIVersion, id)
	defer ub.Close()
	if len(fields) > 0 {
		ub.AddParam("fields", stringpool.JoinPooled(fields, ","))
	}
	return ub.String()
}

func (c *Client) batchURL() string {
	ub := stringpool.NewURLBuilder(c.config.BaseURL).AddPath(c.config.APIVersion)
	defer ub.Close()
	return ub.String()
}

// getJSON GETs url and decodes a 200 response into out, retrying
// throttling and transient failures with the client's retry policy.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	return c.retry.Execute(ctx, func() error {
		resp, err := c.http.Get(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "graph: failed to read response")
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := apiError(resp.StatusCode, body)
			if apiErr.Type == errors.ErrorTypeRateLimit {
				c.pause()
			}
			return apiErr
		}
		if err := json.UnmarshalNumbers(body, out); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "graph: failed to decode response")
		}
		return nil
	})
}

func (c *Client) pause() {
	if c.limiter == nil {
		return
	}
	c.logger.Warn("graph api throttled, pausing requests", zap.Duration("pause", c.config.ThrottlePause))
	c.limiter.PauseUntil(time.Now().Add(c.config.ThrottlePause))
}

type handle struct {
	client *Client
	id     string
}

func (h *handle) ID() string { return h.id }

func (h *handle) Fetch(ctx context.Context, fields []string) (streams.Record, error) {
	var rec streams.Record
	if err := h.client.getJSON(ctx, h.client.nodeURL(h.id, fields), &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (h *handle) Prepare(fields []string) streams.Request {
	ub := stringpool.NewURLBuilder(h.id)
	defer ub.Close()
	if len(fields) > 0 {
		ub.AddParam("fields", stringpool.JoinPooled(fields, ","))
	}
	return &request{id: h.id, relativeURL: ub.String()}
}

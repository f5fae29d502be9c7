package graph

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/sources/facebook_marketing/streams"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
	stringpool "github.com/ajitpratap0/nebula-fbmarketing/pkg/strings"
)

// request is one deferred GET inside a batch
type request struct {
	id          string
	relativeURL string
	attempts    int
}

func (r *request) EntityID() string { return r.id }

type batchItem struct {
	Method      string `json:"method"`
	RelativeURL string `json:"relative_url"`
}

type batch struct {
	client *Client
	reqs   []streams.Request
}

func (b *batch) Add(req streams.Request) { b.reqs = append(b.reqs, req) }
func (b *batch) Len() int                { return len(b.reqs) }

// Execute posts the batch. Each slot of the response settles its request:
// a 200 becomes a record, a throttled or empty slot goes to the residue
// batch, anything else is a failure.
func (b *batch) Execute(ctx context.Context, acc streams.Outcome) (streams.Outcome, streams.Batch, error) {
	c := b.client
	residue := &batch{client: c}

	pending := make([]*request, 0, len(b.reqs))
	items := make([]batchItem, 0, len(b.reqs))
	for _, req := range b.reqs {
		r, ok := req.(*request)
		if !ok {
			acc.Failures = append(acc.Failures, streams.Failure{
				Request: req,
				Err:     errors.Newf(errors.ErrorTypeValidation, "graph: request %T was not prepared by this client", req),
			})
			continue
		}
		pending = append(pending, r)
		items = append(items, batchItem{Method: http.MethodGet, RelativeURL: r.relativeURL})
	}
	if len(pending) == 0 {
		return acc, residue, nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return acc, nil, errors.Wrap(err, errors.ErrorTypeData, "graph: failed to encode batch")
	}
	form := stringpool.NewURLBuilder("").
		AddParam("batch", string(payload)).
		AddParamBool("include_headers", false)
	body := form.String()
	form.Close()

	var respBody []byte
	err = c.retry.ExecuteWithCondition(ctx, func() error {
		resp, err := c.http.PostForm(ctx, c.batchURL(), strings.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "graph: failed to read batch response")
		}
		if resp.StatusCode != http.StatusOK {
			return apiError(resp.StatusCode, respBody)
		}
		return nil
	}, func(err error) bool {
		return errors.IsType(err, errors.ErrorTypeConnection) || errors.IsType(err, errors.ErrorTypeTimeout)
	})

	throttled := false
	retry := func(r *request, cause error) {
		r.attempts++
		if r.attempts >= c.config.MaxBatchAttempts {
			acc.Failures = append(acc.Failures, streams.Failure{
				Request: r,
				Err: errors.Wrap(cause, errors.ErrorTypeRateLimit, "graph: batch request still throttled").
					WithDetail("attempts", r.attempts),
			})
			return
		}
		throttled = true
		residue.reqs = append(residue.reqs, r)
	}

	switch {
	case errors.IsType(err, errors.ErrorTypeRateLimit):
		for _, r := range pending {
			retry(r, err)
		}
	case err != nil:
		return acc, nil, err
	default:
		slots := gjson.ParseBytes(respBody).Array()
		if len(slots) != len(pending) {
			return acc, nil, errors.Newf(errors.ErrorTypeData,
				"graph: batch returned %d responses for %d requests", len(slots), len(pending))
		}
		for i, slot := range slots {
			r := pending[i]
			slotBody := slot.Get("body").String()
			switch code := int(slot.Get("code").Int()); {
			case slot.Type == gjson.Null:
				retry(r, errors.New(errors.ErrorTypeRateLimit, "graph: batch request not processed"))
			case code == http.StatusOK:
				var rec streams.Record
				if err := json.UnmarshalNumbers([]byte(slotBody), &rec); err != nil {
					acc.Failures = append(acc.Failures, streams.Failure{
						Request: r,
						Err:     errors.Wrap(err, errors.ErrorTypeData, "graph: failed to decode batch response"),
					})
					continue
				}
				acc.Records = append(acc.Records, rec)
			default:
				apiErr := apiError(code, []byte(slotBody))
				if apiErr.Type == errors.ErrorTypeRateLimit || gjson.Get(slotBody, "error.is_transient").Bool() {
					retry(r, apiErr)
					continue
				}
				acc.Failures = append(acc.Failures, streams.Failure{Request: r, Err: apiErr})
			}
		}
	}

	if throttled {
		c.logger.Debug("batch requests throttled", zap.Int("residue", residue.Len()))
		c.pause()
	}
	return acc, residue, nil
}

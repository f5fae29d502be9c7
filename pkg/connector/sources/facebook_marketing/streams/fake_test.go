package streams

import (
	"context"
	"fmt"
	"iter"
	"sync"
)

type listCall struct {
	kind   EntityKind
	params RequestParams
	fields []string
}

// fakeAPI serves entities from memory and records every call
type fakeAPI struct {
	mu       sync.Mutex
	entities map[EntityKind][]Record
	listErr  error
	fetchErr map[string]error

	// batch behavior keyed by entity id
	failIDs    map[string]bool
	throttleID map[string]int
	executeErr error

	lists      []listCall
	fetches    [][]string
	executions []int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		entities:   map[EntityKind][]Record{},
		fetchErr:   map[string]error{},
		failIDs:    map[string]bool{},
		throttleID: map[string]int{},
	}
}

func (f *fakeAPI) add(kind EntityKind, n int) {
	for i := 0; i < n; i++ {
		f.entities[kind] = append(f.entities[kind], Record{
			"id":           fmt.Sprintf("%d", i+1),
			"updated_time": fmt.Sprintf("2021-01-%02dT00:00:00+0000", i%28+1),
		})
	}
}

func (f *fakeAPI) ListEntities(_ context.Context, kind EntityKind, params RequestParams, fields []string) iter.Seq2[EntityHandle, error] {
	f.mu.Lock()
	f.lists = append(f.lists, listCall{kind: kind, params: params, fields: fields})
	f.mu.Unlock()
	return func(yield func(EntityHandle, error) bool) {
		for _, rec := range f.entities[kind] {
			if !yield(&fakeHandle{api: f, rec: rec}, nil) {
				return
			}
		}
		if f.listErr != nil {
			yield(nil, f.listErr)
		}
	}
}

func (f *fakeAPI) NewBatch() Batch {
	return &fakeBatch{api: f}
}

type fakeHandle struct {
	api *fakeAPI
	rec Record
}

func (h *fakeHandle) ID() string { return h.rec["id"].(string) }

func (h *fakeHandle) Fetch(_ context.Context, fields []string) (Record, error) {
	h.api.mu.Lock()
	h.api.fetches = append(h.api.fetches, fields)
	h.api.mu.Unlock()
	if err := h.api.fetchErr[h.ID()]; err != nil {
		return nil, err
	}
	return copyRecord(h.rec), nil
}

func (h *fakeHandle) Prepare(fields []string) Request {
	return &fakeRequest{rec: h.rec, fields: fields}
}

type fakeRequest struct {
	rec    Record
	fields []string
}

func (r *fakeRequest) EntityID() string { return r.rec["id"].(string) }

type fakeBatch struct {
	api  *fakeAPI
	reqs []*fakeRequest
}

func (b *fakeBatch) Add(req Request) { b.reqs = append(b.reqs, req.(*fakeRequest)) }
func (b *fakeBatch) Len() int        { return len(b.reqs) }

func (b *fakeBatch) Execute(_ context.Context, acc Outcome) (Outcome, Batch, error) {
	b.api.mu.Lock()
	defer b.api.mu.Unlock()
	b.api.executions = append(b.api.executions, len(b.reqs))
	if b.api.executeErr != nil {
		return acc, nil, b.api.executeErr
	}
	residue := &fakeBatch{api: b.api}
	for _, req := range b.reqs {
		id := req.EntityID()
		switch {
		case b.api.throttleID[id] > 0:
			b.api.throttleID[id]--
			residue.reqs = append(residue.reqs, req)
		case b.api.failIDs[id]:
			acc.Failures = append(acc.Failures, Failure{Request: req, Err: fmt.Errorf("entity %s unavailable", id)})
		default:
			acc.Records = append(acc.Records, copyRecord(req.rec))
		}
	}
	return acc, residue, nil
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	var out []Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r["id"].(string)
	}
	return out
}

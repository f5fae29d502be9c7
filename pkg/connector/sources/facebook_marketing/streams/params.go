package streams

import (
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/json"
)

// Operator is a Graph API filtering operator
type Operator string

const (
	OperatorIn          Operator = "IN"
	OperatorGreaterThan Operator = "GREATER_THAN"
)

// DefaultPageSize is the listing page size when none is configured
const DefaultPageSize = 100

// deliveryStatuses covers every lifecycle status the Graph API reports in
// delivery_info, so filtering on all of them includes deleted and archived
// entities.
var deliveryStatuses = []string{
	"active",
	"archived",
	"completed",
	"limited",
	"not_delivering",
	"deleted",
	"not_published",
	"pending_review",
	"permanently_deleted",
	"recently_completed",
	"recently_rejected",
	"rejected",
	"scheduled",
	"inactive",
}

// DeliveryStatuses returns a copy of the status list used for include_deleted
func DeliveryStatuses() []string {
	return append([]string(nil), deliveryStatuses...)
}

// FilterClause is one entry of the Graph API "filtering" parameter
type FilterClause struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// RequestParams are the listing parameters for one read
type RequestParams struct {
	Limit     int
	Filtering []FilterClause
}

// Merge returns p with other applied: a non-zero Limit overrides and
// filter clauses are appended after p's own.
func (p RequestParams) Merge(other RequestParams) RequestParams {
	out := RequestParams{Limit: p.Limit}
	if other.Limit != 0 {
		out.Limit = other.Limit
	}
	if n := len(p.Filtering) + len(other.Filtering); n > 0 {
		out.Filtering = make([]FilterClause, 0, n)
		out.Filtering = append(out.Filtering, p.Filtering...)
		out.Filtering = append(out.Filtering, other.Filtering...)
	}
	return out
}

// FilteringJSON encodes the filter clauses for the "filtering" query
// parameter. It returns "" when there are none.
func (p RequestParams) FilteringJSON() (string, error) {
	if len(p.Filtering) == 0 {
		return "", nil
	}
	b, err := json.Marshal(p.Filtering)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "failed to encode filtering")
	}
	return string(b), nil
}

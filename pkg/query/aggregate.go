package query

import (
	"github.com/goccy/go-json"
)

// AggregateResult holds the values computed by aggregate. Maps are keyed by
// field name; Count also carries "_all" when requested. Avg is nil for an
// empty set.
type AggregateResult struct {
	Count map[string]int64    `json:"_count,omitempty"`
	Avg   map[string]*float64 `json:"_avg,omitempty"`
	Sum   map[string]any      `json:"_sum,omitempty"`
	Min   map[string]any      `json:"_min,omitempty"`
	Max   map[string]any      `json:"_max,omitempty"`
}

// GroupByRow is one group: the By field values plus the requested aggregates.
type GroupByRow struct {
	Fields map[string]any
	AggregateResult
}

// MarshalJSON flattens the group fields next to the aggregate keys.
func (r GroupByRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+5)
	for k, v := range r.Fields {
		out[k] = v
	}
	if r.Count != nil {
		out[AggCount] = r.Count
	}
	if r.Avg != nil {
		out[AggAvg] = r.Avg
	}
	if r.Sum != nil {
		out[AggSum] = r.Sum
	}
	if r.Min != nil {
		out[AggMin] = r.Min
	}
	if r.Max != nil {
		out[AggMax] = r.Max
	}
	return json.Marshal(out)
}

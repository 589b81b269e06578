// Package plan defines the structured query grammar the model must emit,
// parses model responses into candidate plans, and validates candidates
// against the dataset schema before anything is executed.
//
// The grammar is a closed set of tagged variants rather than free-form
// SQL: filter values stay data values bound as query parameters, so a
// model response can never smuggle executable text into the engine.
package plan

import (
	"fmt"
	"strings"
)

// AggFunc is an aggregate function from the allow-list.
type AggFunc string

const (
	AggCount      AggFunc = "count"
	AggSum        AggFunc = "sum"
	AggAvg        AggFunc = "avg"
	AggMin        AggFunc = "min"
	AggMax        AggFunc = "max"
	AggPercentile AggFunc = "percentile"
)

// FilterOp is a comparison operator from the allow-list.
type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpNeq      FilterOp = "neq"
	OpLt       FilterOp = "lt"
	OpLte      FilterOp = "lte"
	OpGt       FilterOp = "gt"
	OpGte      FilterOp = "gte"
	OpContains FilterOp = "contains"
	OpIn       FilterOp = "in"
)

// Aggregate computes a single value over a column.
type Aggregate struct {
	Func   AggFunc `json:"func"`
	Column string  `json:"column,omitempty"` // optional for count
	// Percentile in (0, 1], only for the percentile function. Defaults
	// to the median when unset.
	Percentile float64 `json:"percentile,omitempty"`
}

// Alias returns the deterministic result column name for the aggregate.
func (a Aggregate) Alias() string {
	switch {
	case a.Func == AggCount && a.Column == "":
		return "count"
	case a.Func == AggPercentile:
		return fmt.Sprintf("p%02.0f_%s", a.Percentile*100, a.Column)
	default:
		return string(a.Func) + "_" + a.Column
	}
}

// Filter restricts rows by comparing a column against a literal value.
// Value is always treated as data, never as query text.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// Plan is the structured representation of what to compute. A candidate
// plan comes straight from the model; only plans returned by Validate
// reach the executor, and those are never mutated afterwards.
type Plan struct {
	Select     []string    `json:"select,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`
	Filters    []Filter    `json:"filters,omitempty"`
	GroupBy    string      `json:"group_by,omitempty"`
	OrderBy    string      `json:"order_by,omitempty"` // column or aggregate alias
	Descending bool        `json:"descending,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Select = append([]string(nil), p.Select...)
	cp.Aggregates = append([]Aggregate(nil), p.Aggregates...)
	cp.Filters = append([]Filter(nil), p.Filters...)
	return &cp
}

// IsScalar reports whether the plan produces a single value.
func (p *Plan) IsScalar() bool {
	return len(p.Aggregates) == 1 && p.GroupBy == ""
}

// Render formats the plan as a compact human-readable summary, used in
// the answer prompt and printed alongside answers for auditability.
func (p *Plan) Render() string {
	var sb strings.Builder
	if len(p.Select) > 0 {
		sb.WriteString("SELECT " + strings.Join(p.Select, ", ") + "\n")
	}
	for _, a := range p.Aggregates {
		switch {
		case a.Func == AggCount && a.Column == "":
			sb.WriteString("AGGREGATE count(*)\n")
		case a.Func == AggPercentile:
			sb.WriteString(fmt.Sprintf("AGGREGATE percentile(%s, %g)\n", a.Column, a.Percentile))
		default:
			sb.WriteString(fmt.Sprintf("AGGREGATE %s(%s)\n", a.Func, a.Column))
		}
	}
	for _, f := range p.Filters {
		sb.WriteString(fmt.Sprintf("FILTER %s %s %v\n", f.Column, f.Op, f.Value))
	}
	if p.GroupBy != "" {
		sb.WriteString("GROUP BY " + p.GroupBy + "\n")
	}
	if p.OrderBy != "" {
		dir := "ASC"
		if p.Descending {
			dir = "DESC"
		}
		sb.WriteString("ORDER BY " + p.OrderBy + " " + dir + "\n")
	}
	if p.Limit > 0 {
		sb.WriteString(fmt.Sprintf("LIMIT %d\n", p.Limit))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

package plan

import (
	"fmt"
	"strings"

	"github.com/lancelabs/lancelake/pkg/schema"
)

// ValidationKind categorizes why a candidate plan was rejected.
type ValidationKind string

const (
	UnknownColumn       ValidationKind = "unknown_column"
	DisallowedOperation ValidationKind = "disallowed_operation"
	TypeMismatch        ValidationKind = "type_mismatch"
	InvalidAggregate    ValidationKind = "invalid_aggregate"
)

// ValidationError rejects a candidate plan. Its message is written to be
// useful as corrective feedback in the repair prompt.
type ValidationError struct {
	Kind   ValidationKind
	Column string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: column %q: %s", e.Kind, e.Column, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

var allowedFilterOps = map[FilterOp]bool{
	OpEq: true, OpNeq: true, OpLt: true, OpLte: true,
	OpGt: true, OpGte: true, OpContains: true, OpIn: true,
}

var allowedAggFuncs = map[AggFunc]bool{
	AggCount: true, AggSum: true, AggAvg: true,
	AggMin: true, AggMax: true, AggPercentile: true,
}

// orderingOps compare by magnitude and only make sense on numeric columns.
var orderingOps = map[FilterOp]bool{
	OpLt: true, OpLte: true, OpGt: true, OpGte: true,
}

// Validate statically checks a candidate plan against the schema and
// returns an executable copy. The candidate itself is never modified;
// the returned plan carries an implicit LIMIT when the candidate's
// result set would otherwise be unbounded. No external calls are made.
func Validate(candidate *Plan, desc *schema.Description, maxRows int) (*Plan, error) {
	if maxRows <= 0 {
		maxRows = 100
	}

	// (a) every referenced column must exist
	for _, name := range candidate.Select {
		if desc.Column(name) == nil {
			return nil, unknownColumn(name, desc)
		}
	}
	for _, f := range candidate.Filters {
		if desc.Column(f.Column) == nil {
			return nil, unknownColumn(f.Column, desc)
		}
	}
	for _, a := range candidate.Aggregates {
		if a.Column != "" && desc.Column(a.Column) == nil {
			return nil, unknownColumn(a.Column, desc)
		}
	}
	if candidate.GroupBy != "" && desc.Column(candidate.GroupBy) == nil {
		return nil, unknownColumn(candidate.GroupBy, desc)
	}
	if candidate.OrderBy != "" && desc.Column(candidate.OrderBy) == nil && !isAggregateAlias(candidate, candidate.OrderBy) {
		return nil, &ValidationError{
			Kind:   UnknownColumn,
			Column: candidate.OrderBy,
			Detail: "order_by must name a schema column or an aggregate alias",
		}
	}

	// (b) every operation must be in the allow-list
	for _, f := range candidate.Filters {
		if !allowedFilterOps[f.Op] {
			return nil, &ValidationError{
				Kind:   DisallowedOperation,
				Column: f.Column,
				Detail: fmt.Sprintf("filter operator %q is not allowed; use one of eq, neq, lt, lte, gt, gte, contains, in", f.Op),
			}
		}
	}
	for _, a := range candidate.Aggregates {
		if !allowedAggFuncs[a.Func] {
			return nil, &ValidationError{
				Kind:   DisallowedOperation,
				Column: a.Column,
				Detail: fmt.Sprintf("aggregate function %q is not allowed; use one of count, sum, avg, min, max, percentile", a.Func),
			}
		}
	}
	if len(candidate.Aggregates) > 0 && len(candidate.Select) > 0 {
		return nil, &ValidationError{
			Kind:   DisallowedOperation,
			Detail: "a plan cannot combine select columns with aggregates; grouped output comes from group_by plus aggregates",
		}
	}
	if candidate.GroupBy != "" && len(candidate.Aggregates) == 0 {
		return nil, &ValidationError{
			Kind:   DisallowedOperation,
			Detail: "group_by requires at least one aggregate",
		}
	}
	if candidate.Limit < 0 {
		return nil, &ValidationError{
			Kind:   DisallowedOperation,
			Detail: "limit must not be negative",
		}
	}

	// (c) filter operand types must match the column's semantic kind
	for _, f := range candidate.Filters {
		col := desc.Column(f.Column)
		if err := checkFilterTypes(f, col); err != nil {
			return nil, err
		}
	}

	// (d) aggregates apply to numeric columns only, count excepted
	for _, a := range candidate.Aggregates {
		if a.Func == AggCount {
			continue
		}
		if a.Column == "" {
			return nil, &ValidationError{
				Kind:   InvalidAggregate,
				Detail: fmt.Sprintf("aggregate %q requires a column", a.Func),
			}
		}
		if col := desc.Column(a.Column); col.Kind != schema.KindNumeric {
			return nil, &ValidationError{
				Kind:   InvalidAggregate,
				Column: a.Column,
				Detail: fmt.Sprintf("aggregate %q requires a numeric column, %s is %s", a.Func, a.Column, col.Kind),
			}
		}
		if a.Func == AggPercentile && (a.Percentile < 0 || a.Percentile > 1) {
			return nil, &ValidationError{
				Kind:   InvalidAggregate,
				Column: a.Column,
				Detail: fmt.Sprintf("percentile must be in (0, 1], got %g", a.Percentile),
			}
		}
	}

	// (e) cap unbounded result sets with an implicit LIMIT
	validated := candidate.Clone()
	for i := range validated.Aggregates {
		if validated.Aggregates[i].Func == AggPercentile && validated.Aggregates[i].Percentile == 0 {
			validated.Aggregates[i].Percentile = 0.5
		}
	}
	if !validated.IsScalar() && (validated.Limit == 0 || validated.Limit > maxRows) {
		validated.Limit = maxRows
	}

	return validated, nil
}

func unknownColumn(name string, desc *schema.Description) *ValidationError {
	return &ValidationError{
		Kind:   UnknownColumn,
		Column: name,
		Detail: fmt.Sprintf("not in the dataset schema; available columns: %s", columnNames(desc)),
	}
}

func columnNames(desc *schema.Description) string {
	names := make([]string, 0, len(desc.Columns))
	for _, c := range desc.Columns {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func isAggregateAlias(p *Plan, name string) bool {
	for _, a := range p.Aggregates {
		if a.Alias() == name {
			return true
		}
	}
	return false
}

func checkFilterTypes(f Filter, col *schema.Column) error {
	if orderingOps[f.Op] && col.Kind != schema.KindNumeric {
		return &ValidationError{
			Kind:   TypeMismatch,
			Column: f.Column,
			Detail: fmt.Sprintf("operator %q requires a numeric column, %s is %s", f.Op, f.Column, col.Kind),
		}
	}
	if f.Op == OpContains && col.Kind != schema.KindCategorical && col.Kind != schema.KindText {
		return &ValidationError{
			Kind:   TypeMismatch,
			Column: f.Column,
			Detail: fmt.Sprintf("operator %q requires a string column, %s is %s", f.Op, f.Column, col.Kind),
		}
	}

	if f.Op == OpIn {
		values, ok := f.Value.([]any)
		if !ok || len(values) == 0 {
			return &ValidationError{
				Kind:   TypeMismatch,
				Column: f.Column,
				Detail: `operator "in" requires a non-empty list of values`,
			}
		}
		for _, v := range values {
			if err := checkValueKind(f.Column, v, col.Kind); err != nil {
				return err
			}
		}
		return nil
	}

	return checkValueKind(f.Column, f.Value, col.Kind)
}

// checkValueKind verifies a single literal against the column kind.
// JSON decoding yields string, float64, or bool for scalar literals.
func checkValueKind(column string, v any, kind schema.Kind) error {
	switch kind {
	case schema.KindNumeric:
		if _, ok := v.(float64); !ok {
			return typeMismatch(column, v, "a number")
		}
	case schema.KindBoolean:
		if _, ok := v.(bool); !ok {
			return typeMismatch(column, v, "a boolean")
		}
	case schema.KindCategorical, schema.KindText:
		if _, ok := v.(string); !ok {
			return typeMismatch(column, v, "a string")
		}
	}
	return nil
}

func typeMismatch(column string, v any, want string) *ValidationError {
	return &ValidationError{
		Kind:   TypeMismatch,
		Column: column,
		Detail: fmt.Sprintf("value %v (%T) does not match the column type; expected %s", v, v, want),
	}
}

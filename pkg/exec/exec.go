// Package exec translates validated query plans into parameterized SQL
// and runs them against the dataset engine. Literal values from the plan
// are always bound as query parameters, never interpolated into the
// query text; identifiers are validated against the schema upstream.
package exec

import (
	"context"
	"fmt"
	"strings"

	"github.com/lancelabs/lancelake/pkg/dataset"
	"github.com/lancelabs/lancelake/pkg/plan"
)

// ResultKind tags the shape of an execution result.
type ResultKind string

const (
	KindScalar ResultKind = "scalar"
	KindRows   ResultKind = "rows"
	KindEmpty  ResultKind = "empty"
)

// Result is the typed outcome of executing a plan. A filter matching
// zero rows yields KindEmpty, which is a successful result, not an error.
type Result struct {
	Kind    ResultKind
	Scalar  any
	Columns []string
	Rows    []dataset.QueryRow
	Count   int
}

// ExecError is an engine-level failure for a plan that passed validation
// but is semantically broken. Distinct from validation errors so the
// repair loop can report it as such.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execution error: %v", e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Execute runs a validated plan against the dataset. Running the same
// plan twice against an unchanged dataset yields the same result.
func Execute(ctx context.Context, ds *dataset.Dataset, p *plan.Plan) (Result, error) {
	query, args := buildSQL(ds.Table(), p)

	resp, err := ds.Query(ctx, query, args...)
	if err != nil {
		return Result{}, &ExecError{Err: err}
	}

	if p.IsScalar() {
		scalar := any(nil)
		if resp.Count > 0 {
			scalar = resp.Rows[0][p.Aggregates[0].Alias()]
		}
		// Aggregates over zero matching rows come back NULL.
		if scalar == nil {
			return Result{Kind: KindEmpty, Columns: resp.Columns}, nil
		}
		return Result{Kind: KindScalar, Scalar: scalar, Columns: resp.Columns, Count: 1}, nil
	}

	if resp.Count == 0 {
		return Result{Kind: KindEmpty, Columns: resp.Columns}, nil
	}

	return Result{Kind: KindRows, Columns: resp.Columns, Rows: resp.Rows, Count: resp.Count}, nil
}

// buildSQL renders the plan as SQL with `?` placeholders for every
// literal value, returning the query and its bound arguments.
func buildSQL(table string, p *plan.Plan) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectExprs(p), ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(quoteIdent(table))

	if len(p.Filters) > 0 {
		sb.WriteString(" WHERE ")
		for i, f := range p.Filters {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			expr, filterArgs := filterExpr(f)
			sb.WriteString(expr)
			args = append(args, filterArgs...)
		}
	}

	if p.GroupBy != "" {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(quoteIdent(p.GroupBy))
	}

	if p.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(quoteIdent(p.OrderBy))
		if p.Descending {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}

	if p.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", p.Limit)
	}

	return sb.String(), args
}

func selectExprs(p *plan.Plan) []string {
	if len(p.Aggregates) == 0 {
		exprs := make([]string, 0, len(p.Select))
		for _, col := range p.Select {
			exprs = append(exprs, quoteIdent(col))
		}
		return exprs
	}

	var exprs []string
	if p.GroupBy != "" {
		exprs = append(exprs, quoteIdent(p.GroupBy))
	}
	for _, a := range p.Aggregates {
		exprs = append(exprs, aggExpr(a)+" AS "+quoteIdent(a.Alias()))
	}
	return exprs
}

func aggExpr(a plan.Aggregate) string {
	switch a.Func {
	case plan.AggCount:
		if a.Column == "" {
			return "count(*)"
		}
		return "count(" + quoteIdent(a.Column) + ")"
	case plan.AggPercentile:
		// The percentile fraction is validated to (0, 1]; DuckDB requires
		// it to be a constant, so it cannot be a bound parameter.
		return fmt.Sprintf("quantile_cont(%s, %g)", quoteIdent(a.Column), a.Percentile)
	default:
		return fmt.Sprintf("%s(%s)", a.Func, quoteIdent(a.Column))
	}
}

func filterExpr(f plan.Filter) (string, []any) {
	col := quoteIdent(f.Column)
	switch f.Op {
	case plan.OpEq:
		return col + " = ?", []any{f.Value}
	case plan.OpNeq:
		return col + " <> ?", []any{f.Value}
	case plan.OpLt:
		return col + " < ?", []any{f.Value}
	case plan.OpLte:
		return col + " <= ?", []any{f.Value}
	case plan.OpGt:
		return col + " > ?", []any{f.Value}
	case plan.OpGte:
		return col + " >= ?", []any{f.Value}
	case plan.OpContains:
		pattern := "%" + escapeLike(fmt.Sprintf("%v", f.Value)) + "%"
		return col + ` ILIKE ? ESCAPE '\'`, []any{pattern}
	case plan.OpIn:
		values := f.Value.([]any)
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return col + " IN (" + placeholders + ")", values
	default:
		// Unreachable for validated plans.
		return "FALSE", nil
	}
}

// escapeLike escapes LIKE metacharacters so a contains value matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

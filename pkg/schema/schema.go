// Package schema derives a query-relevant description of the dataset's
// columns: names, semantic kinds, and the value sets of categorical
// columns. The description is computed once per dataset load and handed
// to the pipeline as prompt context and as the validator's ground truth.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/lancelabs/lancelake/pkg/dataset"
)

// Kind is the semantic type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindBoolean     Kind = "boolean"
	KindCategorical Kind = "categorical"
	KindText        Kind = "text"
)

// Column describes a single column of the dataset.
type Column struct {
	Name      string
	Kind      Kind
	Values    []string // distinct values, categorical columns only
	Truncated bool     // set when Values holds only the most frequent values
}

// Description is the derived, ordered view of the dataset's columns.
type Description struct {
	Table   string
	Columns []Column
}

// Options bound the size of categorical value sets.
type Options struct {
	// MaxValues is the cardinality up to which the full value set is
	// included. Defaults to 15.
	MaxValues int
	// TopN is the number of most frequent values kept for columns above
	// MaxValues. Defaults to 10.
	TopN int
	// TextThreshold is the cardinality above which a string column is
	// treated as free text with no value set. Defaults to 100.
	TextThreshold int
}

func (o *Options) setDefaults() {
	if o.MaxValues == 0 {
		o.MaxValues = 15
	}
	if o.TopN == 0 {
		o.TopN = 10
	}
	if o.TextThreshold == 0 {
		o.TextThreshold = 100
	}
}

// Describe derives the schema description from the dataset. It is a pure,
// deterministic function of the dataset's contents.
func Describe(ctx context.Context, ds *dataset.Dataset, opts Options) (*Description, error) {
	opts.setDefaults()

	columns, err := ds.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset has zero columns")
	}

	desc := &Description{Table: ds.Table()}
	for _, col := range columns {
		kind := kindForType(col.Type)

		c := Column{Name: col.Name, Kind: kind}
		if kind == KindCategorical {
			// String columns are categorical until cardinality says otherwise.
			distinct, err := countDistinct(ctx, ds, col.Name)
			if err != nil {
				return nil, err
			}
			switch {
			case distinct > opts.TextThreshold:
				c.Kind = KindText
			case distinct > opts.MaxValues:
				c.Values, err = topValues(ctx, ds, col.Name, opts.TopN)
				if err != nil {
					return nil, err
				}
				c.Truncated = true
			default:
				c.Values, err = topValues(ctx, ds, col.Name, opts.MaxValues)
				if err != nil {
					return nil, err
				}
			}
		}
		desc.Columns = append(desc.Columns, c)
	}

	return desc, nil
}

// Column returns the description of the named column, or nil.
func (d *Description) Column(name string) *Column {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// Render formats the description as a prompt-ready text block.
func (d *Description) Render() string {
	var sb strings.Builder
	sb.WriteString(d.Table + ":\n")
	for _, col := range d.Columns {
		sb.WriteString("  - " + col.Name + " (" + string(col.Kind))
		if col.Truncated {
			sb.WriteString(", partial value set")
		}
		sb.WriteString(")")
		if len(col.Values) > 0 {
			sb.WriteString(" values: " + strings.Join(col.Values, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// kindForType maps a DuckDB column type to a semantic kind.
func kindForType(dbType string) Kind {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "BOOL"):
		return KindBoolean
	case strings.Contains(t, "INT") ||
		strings.Contains(t, "DOUBLE") ||
		strings.Contains(t, "FLOAT") ||
		strings.Contains(t, "DECIMAL") ||
		strings.Contains(t, "NUMERIC") ||
		strings.Contains(t, "REAL"):
		return KindNumeric
	default:
		return KindCategorical
	}
}

func countDistinct(ctx context.Context, ds *dataset.Dataset, column string) (int, error) {
	query := fmt.Sprintf(`SELECT count(DISTINCT %s) AS n FROM %s`, quoteIdent(column), quoteIdent(ds.Table()))
	resp, err := ds.Query(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct values of %s: %w", column, err)
	}
	if resp.Count == 0 {
		return 0, nil
	}
	n, ok := toInt(resp.Rows[0]["n"])
	if !ok {
		return 0, fmt.Errorf("unexpected distinct count type for %s", column)
	}
	return n, nil
}

// topValues returns up to limit distinct values, most frequent first.
// Frequency ties break on value order so the result is deterministic.
func topValues(ctx context.Context, ds *dataset.Dataset, column string, limit int) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT %s AS v, count(*) AS c FROM %s WHERE %s IS NOT NULL GROUP BY v ORDER BY c DESC, v ASC LIMIT %d`,
		quoteIdent(column), quoteIdent(ds.Table()), quoteIdent(column), limit)
	resp, err := ds.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch values of %s: %w", column, err)
	}

	values := make([]string, 0, resp.Count)
	for _, row := range resp.Rows {
		values = append(values, fmt.Sprintf("%v", row["v"]))
	}
	return values, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case int:
		return n, true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

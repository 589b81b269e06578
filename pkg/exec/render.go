package exec

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// maxDisplayRows bounds how many rows are rendered into the answer
// prompt and the terminal.
const maxDisplayRows = 50

// Render formats the result for the answer prompt and the CLI. Floats
// are rounded to two decimals so long fractions don't read like encoded
// values, and row sets are rendered as a bounded ASCII table.
func (r Result) Render() string {
	switch r.Kind {
	case KindEmpty:
		return "No matching records."
	case KindScalar:
		return formatValue(r.Scalar)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Rows (%d total):\n", r.Count)

	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(r.Columns)

	display := min(r.Count, maxDisplayRows)
	for i := 0; i < display && i < len(r.Rows); i++ {
		values := make([]string, len(r.Columns))
		for j, col := range r.Columns {
			values[j] = formatValue(r.Rows[i][col])
		}
		table.Append(values)
	}
	table.Render()

	if r.Count > maxDisplayRows {
		fmt.Fprintf(&sb, "... and %d more rows\n", r.Count-maxDisplayRows)
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// formatValue formats a single value for display.
func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%.2f", val)
	case float32:
		if val == float32(int32(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%.2f", val)
	case nil:
		return ""
	default:
		s := fmt.Sprintf("%v", v)
		if len(s) > 100 {
			s = s[:97] + "..."
		}
		return s
	}
}

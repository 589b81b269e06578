package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLake_Plan_Parse_NestedCandidate(t *testing.T) {
	t.Parallel()

	response := "```json\n" + `{
  "plan": {
    "aggregates": [{"func": "avg", "column": "earnings"}],
    "filters": [{"column": "accepts_crypto", "op": "eq", "value": true}]
  },
  "rationale": "Average earnings for crypto freelancers."
}` + "\n```"

	p, rationale, err := Parse(response)
	require.NoError(t, err)
	require.Equal(t, "Average earnings for crypto freelancers.", rationale)
	require.Len(t, p.Aggregates, 1)
	require.Equal(t, AggAvg, p.Aggregates[0].Func)
	require.Equal(t, "earnings", p.Aggregates[0].Column)
	require.Len(t, p.Filters, 1)
	require.Equal(t, true, p.Filters[0].Value)
}

func TestLake_Plan_Parse_FlatPlan(t *testing.T) {
	t.Parallel()

	p, rationale, err := Parse(`{"select": ["region", "earnings"], "limit": 10}`)
	require.NoError(t, err)
	require.Empty(t, rationale)
	require.Equal(t, []string{"region", "earnings"}, p.Select)
	require.Equal(t, 10, p.Limit)
}

func TestLake_Plan_Parse_SurroundingProse(t *testing.T) {
	t.Parallel()

	response := `Here is the plan you asked for:
{"plan": {"aggregates": [{"func": "count"}]}, "rationale": "row count"}
Let me know if you need anything else.`

	p, _, err := Parse(response)
	require.NoError(t, err)
	require.Len(t, p.Aggregates, 1)
	require.Equal(t, AggCount, p.Aggregates[0].Func)
}

func TestLake_Plan_Parse_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	p, _, err := Parse(`{"plan": {"select": ["region"], "filters": [{"column": "skills", "op": "contains", "value": "c{url}"}]}}`)
	require.NoError(t, err)
	require.Equal(t, "c{url}", p.Filters[0].Value)
}

func TestLake_Plan_Parse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
	}{
		{"no JSON at all", "I cannot answer that question."},
		{"unbalanced braces", `{"plan": {"select": ["region"]`},
		{"invalid JSON", `{"plan": {select: region}}`},
		{"empty plan", `{"plan": {}}`},
		{"no select or aggregates", `{"filters": [{"column": "region", "op": "eq", "value": "Asia"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tt.response)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %T", err)
		})
	}
}

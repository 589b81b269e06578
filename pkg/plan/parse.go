package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError indicates the model response could not be parsed into a
// candidate plan. It is a distinct error kind fed back to the repair
// loop; malformed responses are never coerced into a plan.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return "malformed plan: " + e.Detail
}

// candidateResponse is the expected JSON shape of a synthesis response.
type candidateResponse struct {
	Plan      *Plan  `json:"plan"`
	Rationale string `json:"rationale"`
}

// Parse extracts the JSON plan and its rationale from a model response.
// The response may wrap the object in markdown fences or surrounding
// prose, and may either nest the plan under a "plan" key or be the plan
// object itself.
func Parse(response string) (*Plan, string, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, "", &ParseError{Detail: "no JSON object found in response"}
	}

	var cand candidateResponse
	if err := json.Unmarshal([]byte(jsonStr), &cand); err == nil && cand.Plan != nil {
		if err := checkNonEmpty(cand.Plan); err != nil {
			return nil, "", err
		}
		return cand.Plan, cand.Rationale, nil
	}

	var p Plan
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return nil, "", &ParseError{Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := checkNonEmpty(&p); err != nil {
		return nil, "", err
	}

	return &p, "", nil
}

func checkNonEmpty(p *Plan) error {
	if len(p.Select) == 0 && len(p.Aggregates) == 0 {
		return &ParseError{Detail: "plan has no select columns and no aggregates"}
	}
	return nil
}

// extractJSON finds and extracts JSON from a response that might contain markdown.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Look for JSON in code blocks first (most reliable)
	if start := strings.Index(response, "```json"); start != -1 {
		start += 7 // len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	// Look for JSON in generic code blocks
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			content := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(content, "{") {
				return content
			}
		}
	}

	// If it starts with {, assume it's raw JSON
	if strings.HasPrefix(response, "{") {
		return extractJSONObject(response, 0)
	}

	// Try to find JSON object anywhere in the response
	if start := strings.Index(response, "{"); start != -1 {
		return extractJSONObject(response, start)
	}

	return ""
}

// extractJSONObject extracts a complete JSON object starting at the given position,
// properly handling strings that may contain braces.
func extractJSONObject(s string, start int) string {
	if start >= len(s) || s[start] != '{' {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	// Unbalanced braces
	return ""
}

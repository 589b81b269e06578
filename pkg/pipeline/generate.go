package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lancelabs/lancelake/pkg/plan"
)

// Generate asks the model for a candidate query plan. On repair attempts
// the prompt carries the rejected candidates and their error messages so
// the model can correct course; each attempt still produces a fresh
// candidate.
func (p *Pipeline) Generate(ctx context.Context, question string, history []Attempt) (*plan.Plan, string, error) {
	systemPrompt := buildGeneratePrompt(p.cfg.Prompts.Generate, p.cfg.Schema.Render())

	var userPrompt strings.Builder
	fmt.Fprintf(&userPrompt, "Question: %s\n", question)
	if len(history) > 0 {
		userPrompt.WriteString("\nPrevious attempts failed:\n")
		userPrompt.WriteString(renderFeedback(history))
		userPrompt.WriteString("\nGenerate a corrected plan that avoids these errors.\n")
	}

	response, err := p.cfg.LLM.Complete(ctx, systemPrompt, userPrompt.String())
	if err != nil {
		return nil, "", fmt.Errorf("LLM completion failed: %w", err)
	}

	candidate, rationale, err := plan.Parse(response)
	if err != nil {
		return nil, "", err
	}

	return candidate, rationale, nil
}

// buildGeneratePrompt combines the static prompt with the derived schema.
func buildGeneratePrompt(staticPrompt, schemaText string) string {
	return staticPrompt + "\n\n## Dataset Schema\n\n```\n" + schemaText + "```"
}

// renderFeedback formats the (candidate, error) history for the repair
// prompt.
func renderFeedback(history []Attempt) string {
	var sb strings.Builder
	for i, att := range history {
		fmt.Fprintf(&sb, "Attempt %d", i+1)
		if att.Candidate != nil {
			if data, err := json.Marshal(att.Candidate); err == nil {
				fmt.Fprintf(&sb, " plan: %s", data)
			}
		}
		fmt.Fprintf(&sb, "\n  Error: %v\n", att.Err)
	}
	return sb.String()
}

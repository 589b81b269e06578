package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/lancelabs/lancelake/pkg/exec"
	"github.com/lancelabs/lancelake/pkg/plan"
)

// Synthesize composes the final answer from the executed plan and its
// result. The plan always travels with the result so the model's answer
// stays grounded in what was actually computed.
func (p *Pipeline) Synthesize(ctx context.Context, question string, pl *plan.Plan, result exec.Result) (string, error) {
	userPrompt := fmt.Sprintf(`User question: %s

Query plan executed:
%s

Result:
%s

Answer the question using only the result above.`, question, pl.Render(), result.Render())

	response, err := p.cfg.LLM.Complete(ctx, p.cfg.Prompts.Synthesize, userPrompt)
	if err != nil {
		return "", fmt.Errorf("LLM completion failed: %w", err)
	}

	return strings.TrimSpace(response), nil
}

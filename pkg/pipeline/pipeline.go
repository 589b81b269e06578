// Package pipeline orchestrates the question-answering steps: generate a
// candidate query plan from the question, validate it against the
// schema, execute it, and synthesize a grounded answer. Validation and
// execution failures loop back into generation with corrective feedback,
// bounded by a configurable attempt budget.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/lancelabs/lancelake/pkg/dataset"
	"github.com/lancelabs/lancelake/pkg/exec"
	"github.com/lancelabs/lancelake/pkg/llm"
	"github.com/lancelabs/lancelake/pkg/plan"
	"github.com/lancelabs/lancelake/pkg/schema"
)

// Config holds the configuration for the pipeline.
type Config struct {
	Logger  *slog.Logger
	LLM     llm.Client
	Dataset *dataset.Dataset
	Schema  *schema.Description
	Prompts *Prompts
	// MaxAttempts bounds the generate-validate-execute cycles per
	// question (default 3).
	MaxAttempts int
	// MaxRows caps the row count of unbounded plans (default 100).
	MaxRows int
	// CacheTTL enables the answer cache when non-zero. Repeated
	// identical questions within the TTL skip the model entirely.
	CacheTTL time.Duration
}

// Answer is the final response, carrying the plan and result it was
// grounded in for auditability.
type Answer struct {
	Text      string
	Plan      *plan.Plan
	Rationale string
	Result    exec.Result
	Attempts  int
}

// Attempt records one failed generate-validate-execute cycle. The
// history is immutable; each new attempt starts from a fresh candidate
// with only these records carried forward as prompt feedback.
type Attempt struct {
	Candidate *plan.Plan // nil when the response didn't parse
	Err       error
}

// PipelineErrorKind categorizes terminal pipeline failures.
type PipelineErrorKind string

const (
	// AttemptsExhausted means the attempt budget ran out; Err holds the
	// last underlying failure.
	AttemptsExhausted PipelineErrorKind = "attempts_exhausted"
	// BackendUnavailable means the model backend failed after its own
	// per-call retry budget.
	BackendUnavailable PipelineErrorKind = "backend_unavailable"
)

// PipelineError is the only error kind surfaced to callers of Ask.
type PipelineError struct {
	Kind PipelineErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed (%s): %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Pipeline answers natural-language questions about the loaded dataset.
// Safe for concurrent use; the dataset is shared read-only state.
type Pipeline struct {
	cfg   *Config
	log   *slog.Logger
	cache *ttlcache.Cache[string, *Answer]
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Dataset == nil {
		return nil, fmt.Errorf("dataset is required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema description is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = 100
	}

	p := &Pipeline{
		cfg: cfg,
		log: cfg.Logger,
	}

	if cfg.CacheTTL > 0 {
		p.cache = ttlcache.New(
			ttlcache.WithTTL[string, *Answer](cfg.CacheTTL),
		)
		go p.cache.Start()
	}

	return p, nil
}

// Close stops background resources.
func (p *Pipeline) Close() {
	if p.cache != nil {
		p.cache.Stop()
	}
}

// Ask runs the full pipeline for one question and returns a grounded
// answer, or a PipelineError once the attempt budget is exhausted or the
// backend is unreachable.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	if p.cache != nil {
		if item := p.cache.Get(question); item != nil {
			if p.log != nil {
				p.log.Debug("pipeline: answer cache hit", "question", question)
			}
			return item.Value(), nil
		}
	}

	var history []Attempt
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p.log != nil && attempt > 1 {
			p.log.Info("pipeline: retrying with feedback", "attempt", attempt, "error", lastErr)
		}

		candidate, rationale, err := p.Generate(ctx, question, history)
		if err != nil {
			if _, ok := llm.IsCallError(err); ok {
				return nil, &PipelineError{Kind: BackendUnavailable, Err: err}
			}
			// Malformed response; feed the parse error back.
			history = append(history, Attempt{Err: err})
			lastErr = err
			continue
		}

		validated, err := plan.Validate(candidate, p.cfg.Schema, p.cfg.MaxRows)
		if err != nil {
			if p.log != nil {
				p.log.Info("pipeline: plan rejected", "attempt", attempt, "error", err)
			}
			history = append(history, Attempt{Candidate: candidate, Err: err})
			lastErr = err
			continue
		}

		result, err := exec.Execute(ctx, p.cfg.Dataset, validated)
		if err != nil {
			if p.log != nil {
				p.log.Info("pipeline: execution failed", "attempt", attempt, "error", err)
			}
			history = append(history, Attempt{Candidate: validated, Err: err})
			lastErr = err
			continue
		}

		if p.log != nil {
			p.log.Info("pipeline: plan executed", "attempt", attempt, "kind", result.Kind, "rows", result.Count)
		}

		text, err := p.Synthesize(ctx, question, validated, result)
		if err != nil {
			return nil, &PipelineError{Kind: BackendUnavailable, Err: err}
		}

		answer := &Answer{
			Text:      text,
			Plan:      validated,
			Rationale: rationale,
			Result:    result,
			Attempts:  attempt,
		}
		if p.cache != nil {
			p.cache.Set(question, answer, ttlcache.DefaultTTL)
		}
		return answer, nil
	}

	if p.log != nil {
		p.log.Info("pipeline: attempt budget exhausted", "attempts", p.cfg.MaxAttempts, "error", lastErr)
	}
	return nil, &PipelineError{Kind: AttemptsExhausted, Err: lastErr}
}

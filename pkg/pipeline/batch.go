package pipeline

import (
	"context"

	"github.com/alitto/pond/v2"
)

// Outcome pairs a batch question with its answer or terminal error.
type Outcome struct {
	Question string
	Answer   *Answer
	Err      error
}

// AskAll answers independent questions concurrently. The dataset is
// immutable shared state, so pipeline invocations need no coordination
// beyond the worker pool bound.
func (p *Pipeline) AskAll(ctx context.Context, questions []string, concurrency int) ([]Outcome, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	pool := pond.NewResultPool[Outcome](concurrency)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, question := range questions {
		group.SubmitErr(func() (Outcome, error) {
			answer, err := p.Ask(ctx, question)
			// Terminal per-question errors are part of the outcome, not
			// a reason to cancel the group.
			return Outcome{Question: question, Answer: answer, Err: err}, nil
		})
	}

	results, err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

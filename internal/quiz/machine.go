package quiz

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/catalog"
)

var ErrNoQuestion = errors.New("multiple choice question missing")

// Verdict is the judgment of one answer.
type Verdict struct {
	Correct     bool
	Feedback    string
	Explanation string
}

// Evaluator judges free-text answers. Implementations fail closed: they never
// return an error, an unusable judgment is an incorrect verdict.
type Evaluator interface {
	EvaluateDefinition(ctx context.Context, word, meaning, answer string) Verdict
	EvaluateSentence(ctx context.Context, word, meaning, sentence string) Verdict
}

type Machine struct {
	catalog   *catalog.Catalog
	evaluator Evaluator
}

func NewMachine(c *catalog.Catalog, evaluator Evaluator) *Machine {
	return &Machine{
		catalog:   c,
		evaluator: evaluator,
	}
}

// Judge evaluates an answer against the state's stage without touching the
// state. Multiple choice answers are checked locally.
func (m *Machine) Judge(ctx context.Context, s *State, answer string) (Verdict, error) {
	if s == nil || !s.Active {
		return Verdict{}, ErrInactive
	}
	w, err := m.catalog.Lookup(s.CurrentWord)
	if err != nil {
		return Verdict{}, err
	}

	switch s.Stage {
	case StageExplain:
		return m.evaluator.EvaluateDefinition(ctx, w.Word, w.Meaning, answer), nil
	case StageSentence:
		return m.evaluator.EvaluateSentence(ctx, w.Word, w.Meaning, answer), nil
	case StageMultipleChoice:
		if s.MultipleChoice == nil {
			return Verdict{}, ErrNoQuestion
		}
		return s.MultipleChoice.Evaluate(answer, w.Meaning), nil
	default:
		return Verdict{}, fmt.Errorf("unknown stage %d", int(s.Stage))
	}
}

// SubmitAnswer judges an answer and applies it to the state.
func (m *Machine) SubmitAnswer(ctx context.Context, s *State, answer string) (Verdict, Outcome, error) {
	v, err := m.Judge(ctx, s, answer)
	if err != nil {
		return Verdict{}, OutcomeRetry, err
	}
	return v, s.Submit(v.Correct), nil
}

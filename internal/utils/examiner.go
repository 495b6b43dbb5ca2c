package utils

import (
	"context"
	"lexipal/internal/quiz"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var fallbackVerdict = quiz.Verdict{
	Correct:     false,
	Feedback:    "Could not evaluate answer",
	Explanation: "Please try again",
}

// Examiner judges free-text quiz answers and writes multiple choice
// questions on top of OpenaiAPI. It never returns an error: anything it
// cannot judge is an incorrect answer, anything it cannot generate falls back
// to a fixed question.
type Examiner struct {
	logger *logrus.Entry
	openai OpenaiAPI

	mu  sync.Mutex
	rng *rand.Rand
}

func NewExaminer(logger *logrus.Entry, openai OpenaiAPI) *Examiner {
	return &Examiner{
		logger: logger,
		openai: openai,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *Examiner) EvaluateDefinition(ctx context.Context, word, meaning, answer string) quiz.Verdict {
	return e.evaluate(ctx, EvaluationDefinition, word, meaning, answer)
}

func (e *Examiner) EvaluateSentence(ctx context.Context, word, meaning, sentence string) quiz.Verdict {
	return e.evaluate(ctx, EvaluationSentence, word, meaning, sentence)
}

func (e *Examiner) evaluate(ctx context.Context, kind EvaluationKind, word, meaning, answer string) quiz.Verdict {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return quiz.Verdict{Feedback: "Please type an answer.", Explanation: "Please try again"}
	}
	if strings.EqualFold(strings.Trim(trimmed, ".!?\"' "), word) {
		return quiz.Verdict{
			Feedback:    "You repeated the word itself. Please explain it in your own words.",
			Explanation: "Please try again",
		}
	}

	evaluation, err := e.openai.Evaluate(ctx, kind, word, meaning, trimmed)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"word": word,
			"kind": kind,
		}).Warn("Failed to evaluate answer, failing closed")
		return fallbackVerdict
	}
	return quiz.Verdict{
		Correct:     evaluation.IsCorrect,
		Feedback:    evaluation.Feedback,
		Explanation: evaluation.Explanation,
	}
}

// MultipleChoice builds the question for the last quiz stage.
func (e *Examiner) MultipleChoice(ctx context.Context, word, meaning string) *quiz.MultipleChoice {
	resp, err := e.openai.GenerateMultipleChoice(ctx, word, meaning)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.logger.WithError(err).WithField("word", word).Warn("Failed to generate multiple choice question, using fallback")
		return quiz.FallbackMultipleChoice(e.rng, meaning)
	}
	if len(resp.Options) != 4 || hasBlankOrDuplicate(resp.Options) {
		e.logger.WithFields(logrus.Fields{
			"word":    word,
			"options": resp.Options,
		}).Warn("Generated question is malformed, using fallback")
		return quiz.FallbackMultipleChoice(e.rng, meaning)
	}
	mc, err := quiz.NewMultipleChoice(e.rng, resp.Options[0], resp.Options[1:])
	if err != nil {
		return quiz.FallbackMultipleChoice(e.rng, meaning)
	}
	return mc
}

func hasBlankOrDuplicate(options []string) bool {
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		key := strings.ToLower(strings.TrimSpace(o))
		if key == "" || seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

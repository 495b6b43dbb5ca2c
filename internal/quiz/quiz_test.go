package quiz

import (
	"context"
	"errors"
	"lexipal/internal/catalog"
	"lexipal/internal/models"
	"math/rand"
	"strings"
	"testing"
)

type fakeEvaluator struct {
	correct bool
	calls   int
}

func (f *fakeEvaluator) EvaluateDefinition(ctx context.Context, word, meaning, answer string) Verdict {
	f.calls++
	return Verdict{Correct: f.correct, Feedback: "definition", Explanation: meaning}
}

func (f *fakeEvaluator) EvaluateSentence(ctx context.Context, word, meaning, sentence string) Verdict {
	f.calls++
	return Verdict{Correct: f.correct, Feedback: "sentence", Explanation: meaning}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.VocabularyWord{
		{Word: "hello", Meaning: "a greeting", Difficulty: 1},
		{Word: "ephemeral", Meaning: "lasting a very short time", Difficulty: 5},
	})
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return c
}

func TestStageForProgress(t *testing.T) {
	tests := []struct {
		progress uint8
		want     Stage
		wantErr  error
	}{
		{0, StageExplain, nil},
		{1, StageSentence, nil},
		{2, StageMultipleChoice, nil},
		{3, 0, ErrMastered},
		{7, 0, ErrInvalidProgress},
	}
	for _, tt := range tests {
		got, err := StageForProgress(tt.progress)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("progress %d: expected error %v, got %v", tt.progress, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("progress %d: unexpected error %v", tt.progress, err)
		}
		if got != tt.want {
			t.Errorf("progress %d: expected stage %s, got %s", tt.progress, tt.want, got)
		}
		// pure: same input, same output
		again, _ := StageForProgress(tt.progress)
		if again != got {
			t.Errorf("progress %d: stage changed between calls", tt.progress)
		}
	}
}

func TestStart(t *testing.T) {
	c := testCatalog(t)

	t.Run("Starts at stage for progress", func(t *testing.T) {
		s, err := Start(c, "conv", "user", "Hello", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !s.Active || s.Stage != StageSentence || s.CurrentWord != "hello" {
			t.Errorf("unexpected state: %+v", s)
		}
	})

	t.Run("Unknown word", func(t *testing.T) {
		if _, err := Start(c, "conv", "user", "nope", 0); !errors.Is(err, catalog.ErrUnknownWord) {
			t.Errorf("Expected ErrUnknownWord, got %v", err)
		}
	})

	t.Run("Mastered word", func(t *testing.T) {
		if _, err := Start(c, "conv", "user", "hello", 3); !errors.Is(err, ErrMastered) {
			t.Errorf("Expected ErrMastered, got %v", err)
		}
	})

	t.Run("Restart changes ID", func(t *testing.T) {
		s, _ := Start(c, "conv", "user", "hello", 0)
		before := s.ID
		if err := s.Begin(0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ID == before {
			t.Errorf("Expected new ID after Begin")
		}
	})
}

func TestThreeFailuresAlwaysClear(t *testing.T) {
	for progress := uint8(0); progress < MasteredLevel; progress++ {
		s, err := Start(testCatalog(t), "conv", "user", "hello", progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		outcomes := []Outcome{s.Submit(false), s.Submit(false), s.Submit(false)}
		want := []Outcome{OutcomeRetry, OutcomeRetry, OutcomeExhausted}
		for i := range want {
			if outcomes[i] != want[i] {
				t.Errorf("progress %d attempt %d: expected %d, got %d", progress, i+1, want[i], outcomes[i])
			}
		}
		if s.Active {
			t.Errorf("progress %d: state still active after %d failures", progress, MaxAttempts)
		}
	}
}

func TestAdvance(t *testing.T) {
	s, _ := Start(testCatalog(t), "conv", "user", "hello", 0)
	s.Submit(false)

	if s.Submit(true) != OutcomePassed {
		t.Fatalf("Expected OutcomePassed")
	}
	if mastered := s.Advance(1); mastered {
		t.Fatalf("word should not be mastered at level 1")
	}
	if s.Stage != StageSentence || s.Attempts != 0 || s.CorrectAnswers != 1 {
		t.Errorf("unexpected state after advance: %+v", s)
	}

	s.Advance(2)
	if s.Stage != StageMultipleChoice {
		t.Errorf("Expected multiple choice stage, got %s", s.Stage)
	}
	if mastered := s.Advance(3); !mastered {
		t.Errorf("Expected word to be mastered at level 3")
	}
	if s.Active {
		t.Errorf("mastered state should be inactive")
	}
}

func TestMultipleChoice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	t.Run("Correct option survives shuffle", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			mc, err := NewMultipleChoice(rng, "right", []string{"w1", "w2", "w3"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mc.Options[mc.CorrectIndex] != "right" {
				t.Fatalf("correct index %d points at %q", mc.CorrectIndex, mc.Options[mc.CorrectIndex])
			}
		}
	})

	t.Run("Wrong distractor count", func(t *testing.T) {
		if _, err := NewMultipleChoice(rng, "right", []string{"w1"}); err == nil {
			t.Errorf("Expected error for too few distractors")
		}
	})

	t.Run("Letter check is pure", func(t *testing.T) {
		mc := &MultipleChoice{Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1}
		for _, answer := range []string{"B", "b", " b ", "B.", "B)"} {
			if !mc.Check(answer) {
				t.Errorf("Expected %q to be correct", answer)
			}
		}
		for _, answer := range []string{"A", "C", "D", "BB", ""} {
			if mc.Check(answer) {
				t.Errorf("Expected %q to be incorrect", answer)
			}
		}
		if mc.CorrectIndex != 1 || len(mc.Options) != 4 {
			t.Errorf("Check mutated the question")
		}
	})

	t.Run("Fallback keeps meaning", func(t *testing.T) {
		mc := FallbackMultipleChoice(rng, "a greeting")
		if len(mc.Options) != 4 || mc.Options[mc.CorrectIndex] != "a greeting" {
			t.Errorf("unexpected fallback question: %+v", mc)
		}
	})

	t.Run("Render", func(t *testing.T) {
		mc := &MultipleChoice{Options: []string{"one", "two", "three", "four"}}
		got := mc.Render()
		if !strings.HasPrefix(got, "A. one\nB. two") || !strings.HasSuffix(got, "D. four") {
			t.Errorf("unexpected render: %q", got)
		}
	})
}

func TestMachine(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	t.Run("Free text goes to evaluator", func(t *testing.T) {
		ev := &fakeEvaluator{correct: true}
		m := NewMachine(c, ev)
		s, _ := Start(c, "conv", "user", "hello", 0)
		v, outcome, err := m.SubmitAnswer(ctx, s, "a way to greet")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !v.Correct || outcome != OutcomePassed || v.Feedback != "definition" {
			t.Errorf("unexpected verdict %+v outcome %d", v, outcome)
		}
		if ev.calls != 1 {
			t.Errorf("Expected 1 evaluator call, got %d", ev.calls)
		}
	})

	t.Run("Multiple choice never calls evaluator", func(t *testing.T) {
		ev := &fakeEvaluator{correct: true}
		m := NewMachine(c, ev)
		s, _ := Start(c, "conv", "user", "hello", 2)
		s.MultipleChoice = &MultipleChoice{Options: []string{"x", "a greeting", "y", "z"}, CorrectIndex: 1}

		v, outcome, err := m.SubmitAnswer(ctx, s, "a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Correct || outcome != OutcomeRetry || s.Attempts != 1 {
			t.Errorf("unexpected verdict %+v outcome %d attempts %d", v, outcome, s.Attempts)
		}
		if ev.calls != 0 {
			t.Errorf("Expected no evaluator calls, got %d", ev.calls)
		}
	})

	t.Run("Judge does not mutate", func(t *testing.T) {
		m := NewMachine(c, &fakeEvaluator{})
		s, _ := Start(c, "conv", "user", "hello", 1)
		before := *s
		if _, err := m.Judge(ctx, s, "whatever"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Attempts != before.Attempts || s.Active != before.Active || s.ID != before.ID {
			t.Errorf("Judge changed the state")
		}
	})

	t.Run("Inactive state", func(t *testing.T) {
		m := NewMachine(c, &fakeEvaluator{})
		s := New("conv", "user", models.VocabularyWord{Word: "hello"})
		if _, err := m.Judge(ctx, s, "x"); !errors.Is(err, ErrInactive) {
			t.Errorf("Expected ErrInactive, got %v", err)
		}
	})
}

func TestPrompt(t *testing.T) {
	s, _ := Start(testCatalog(t), "conv", "user", "hello", 0)
	if !strings.Contains(s.Prompt(), `Quiz 1: What does "hello" mean?`) {
		t.Errorf("unexpected prompt: %s", s.Prompt())
	}
	s.Submit(false)
	if !strings.Contains(s.Retry(Verdict{Feedback: "Not quite."}), "2 attempt(s) left") {
		t.Errorf("unexpected retry text: %s", s.Retry(Verdict{}))
	}
}

package quiz

import (
	"fmt"
	"math/rand"
	"strings"
)

const optionCount = 4

var fallbackDistractors = []string{
	"A different meaning that is incorrect",
	"Another incorrect meaning",
	"A third incorrect meaning",
}

type MultipleChoice struct {
	Options      []string `json:"options" dynamodbav:"options"`
	CorrectIndex int      `json:"correctIndex" dynamodbav:"correctIndex"`
}

// NewMultipleChoice shuffles the correct option together with exactly three
// distractors and records where the correct one landed.
func NewMultipleChoice(rng *rand.Rand, correct string, distractors []string) (*MultipleChoice, error) {
	if strings.TrimSpace(correct) == "" {
		return nil, fmt.Errorf("multiple choice: empty correct option")
	}
	if len(distractors) != optionCount-1 {
		return nil, fmt.Errorf("multiple choice: need %d distractors, got %d", optionCount-1, len(distractors))
	}
	options := make([]string, 0, optionCount)
	options = append(options, correct)
	for _, d := range distractors {
		if strings.TrimSpace(d) == "" || d == correct {
			return nil, fmt.Errorf("multiple choice: invalid distractor %q", d)
		}
		options = append(options, d)
	}

	correctIndex := 0
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
		switch correctIndex {
		case i:
			correctIndex = j
		case j:
			correctIndex = i
		}
	})
	return &MultipleChoice{Options: options, CorrectIndex: correctIndex}, nil
}

// FallbackMultipleChoice is used when no generated question is available.
func FallbackMultipleChoice(rng *rand.Rand, meaning string) *MultipleChoice {
	mc, err := NewMultipleChoice(rng, meaning, fallbackDistractors)
	if err != nil {
		// meaning is one of the fallback strings or empty; keep it answerable.
		return &MultipleChoice{Options: []string{meaning, "-", "--", "---"}, CorrectIndex: 0}
	}
	return mc
}

func (mc *MultipleChoice) CorrectLetter() string {
	return letter(mc.CorrectIndex)
}

// Check compares a submitted letter with the recorded answer. It accepts
// "b", "B", "B." and "B)".
func (mc *MultipleChoice) Check(answer string) bool {
	a := strings.ToUpper(strings.TrimSpace(answer))
	a = strings.TrimRight(a, ".)")
	return a == mc.CorrectLetter()
}

// Evaluate judges a multiple choice answer locally.
func (mc *MultipleChoice) Evaluate(answer, meaning string) Verdict {
	if mc.Check(answer) {
		return Verdict{
			Correct:     true,
			Feedback:    "🎉 Correct!",
			Explanation: meaning,
		}
	}
	return Verdict{
		Correct:     false,
		Feedback:    "❌ Incorrect.",
		Explanation: meaning,
	}
}

func (mc *MultipleChoice) Render() string {
	var sb strings.Builder
	for i, opt := range mc.Options {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s. %s", letter(i), opt))
	}
	return sb.String()
}

func letter(i int) string {
	return string(rune('A' + i))
}

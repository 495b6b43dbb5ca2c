package quiz

import "fmt"

// Prompt is the question shown for the state's current stage.
func (s *State) Prompt() string {
	switch s.Stage {
	case StageExplain:
		return fmt.Sprintf("Quiz 1: What does \"%s\" mean?\n\nExplain it in your own words, or type /skip to try another word.", s.CurrentWord)
	case StageSentence:
		return fmt.Sprintf("Quiz 2: Use \"%s\" in a sentence.\n\nType /skip to try another word.", s.CurrentWord)
	case StageMultipleChoice:
		if s.MultipleChoice == nil {
			return fmt.Sprintf("Quiz 3: What is the meaning of \"%s\"?", s.CurrentWord)
		}
		return fmt.Sprintf("Quiz 3: What is the meaning of \"%s\"?\n\n%s\n\nType the letter of your answer (A, B, C, or D) or /skip to try another word.", s.CurrentWord, s.MultipleChoice.Render())
	default:
		return ""
	}
}

// Retry is the reply after a wrong answer with attempts left.
func (s *State) Retry(v Verdict) string {
	left := MaxAttempts - s.Attempts
	return fmt.Sprintf("%s\n\nTry again! (%d attempt(s) left)\n\n%s", v.Feedback, left, s.Prompt())
}

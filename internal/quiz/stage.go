package quiz

import (
	"errors"
	"fmt"
)

// Stage is the active quiz step. Its ordinal equals the on-chain progress
// level it is played at.
type Stage int

const (
	StageExplain Stage = iota
	StageSentence
	StageMultipleChoice
)

const (
	// MasteredLevel is the terminal on-chain progress of a word.
	MasteredLevel = 3
	// MaxAttempts is the number of failed answers after which the meaning
	// is revealed and the state is dropped.
	MaxAttempts = 3
)

var (
	ErrMastered        = errors.New("word already mastered")
	ErrInvalidProgress = errors.New("invalid progress level")
)

// StageForProgress maps a word's on-chain progress to the stage the user
// plays next.
func StageForProgress(progress uint8) (Stage, error) {
	switch {
	case progress < MasteredLevel:
		return Stage(progress), nil
	case progress == MasteredLevel:
		return 0, ErrMastered
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidProgress, progress)
	}
}

// Number is the 1-based quiz number shown to users.
func (s Stage) Number() int {
	return int(s) + 1
}

func (s Stage) String() string {
	switch s {
	case StageExplain:
		return "explain"
	case StageSentence:
		return "sentence"
	case StageMultipleChoice:
		return "multiple_choice"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

package quiz

import (
	"errors"
	"fmt"
	"lexipal/internal/catalog"
	"lexipal/internal/models"
	"time"

	"github.com/google/uuid"
)

var ErrInactive = errors.New("no active quiz")

// Outcome is what a single answer did to a State.
type Outcome int

const (
	// OutcomeRetry: wrong answer, attempts left.
	OutcomeRetry Outcome = iota
	// OutcomeExhausted: wrong answer, no attempts left. The state must be dropped.
	OutcomeExhausted
	// OutcomePassed: right answer. The caller records progress, then Advance.
	OutcomePassed
)

// State is the quiz state of one learner in one conversation. It only lives as long as the
// word is neither mastered nor abandoned.
type State struct {
	// ID changes every time a quiz (re)starts so that late evaluation
	// results can tell they belong to a state that no longer exists.
	ID             string          `json:"id" dynamodbav:"id"`
	ConversationID string          `json:"conversationId" dynamodbav:"conversationId"`
	UserID         string          `json:"userId" dynamodbav:"userId"`
	CurrentWord    string          `json:"currentWord" dynamodbav:"currentWord"`
	Attempts       int             `json:"attempts" dynamodbav:"attempts"`
	CorrectAnswers int             `json:"correctAnswers" dynamodbav:"correctAnswers"`
	Stage          Stage           `json:"stage" dynamodbav:"stage"`
	MultipleChoice *MultipleChoice `json:"multipleChoice,omitempty" dynamodbav:"multipleChoice,omitempty"`
	Active         bool            `json:"active" dynamodbav:"active"`
	// LastMessageID is the inbound message last applied as an answer.
	LastMessageID string    `json:"lastMessageId,omitempty" dynamodbav:"lastMessageId,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// SessionKey identifies one learner's quiz within a conversation. Group
// chats hold one state per member.
func SessionKey(conversationID, userID string) string {
	return conversationID + "/" + userID
}

// Key is the storage key of the state.
func (s *State) Key() string {
	return SessionKey(s.ConversationID, s.UserID)
}

// New selects a word for a conversation without starting the quiz (/learn).
func New(conversationID, userID string, word models.VocabularyWord) *State {
	return &State{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         userID,
		CurrentWord:    word.Word,
		Stage:          StageExplain,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Start looks the word up and begins the quiz at the stage matching progress.
func Start(c *catalog.Catalog, conversationID, userID, word string, progress uint8) (*State, error) {
	w, err := c.Lookup(word)
	if err != nil {
		return nil, err
	}
	s := New(conversationID, userID, w)
	if err := s.Begin(progress); err != nil {
		return nil, err
	}
	return s, nil
}

// Begin activates the quiz for the current word at the given on-chain
// progress. Mastered words cannot be started.
func (s *State) Begin(progress uint8) error {
	stage, err := StageForProgress(progress)
	if err != nil {
		return fmt.Errorf("word %q: %w", s.CurrentWord, err)
	}
	s.ID = uuid.NewString()
	s.Stage = stage
	s.Attempts = 0
	s.MultipleChoice = nil
	s.Active = true
	s.touch()
	return nil
}

// Submit applies a judged answer.
func (s *State) Submit(correct bool) Outcome {
	s.touch()
	if correct {
		return OutcomePassed
	}
	s.Attempts++
	if s.Attempts >= MaxAttempts {
		s.Active = false
		return OutcomeExhausted
	}
	return OutcomeRetry
}

// Advance moves to the stage after a recorded progress update and reports
// whether the word is now mastered, in which case the state must be dropped.
func (s *State) Advance(newProgress uint8) bool {
	s.touch()
	s.CorrectAnswers++
	stage, err := StageForProgress(newProgress)
	if err != nil {
		s.Active = false
		return true
	}
	s.Stage = stage
	s.Attempts = 0
	s.MultipleChoice = nil
	return false
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.MultipleChoice != nil {
		mc := *s.MultipleChoice
		mc.Options = append([]string(nil), s.MultipleChoice.Options...)
		c.MultipleChoice = &mc
	}
	return &c
}

func (s *State) touch() {
	s.UpdatedAt = time.Now().UTC()
}

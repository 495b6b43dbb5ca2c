package agent

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/catalog"
	"lexipal/internal/models"
	"lexipal/internal/progress"
	"lexipal/internal/quiz"

	"github.com/sirupsen/logrus"
)

func (d *Dispatcher) handleProgress(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, word string) []string {
	addr, goalID, reply := d.activeGoal(ctx, logger, msg.SenderID)
	if reply != "" {
		return []string{reply}
	}
	level, err := d.contract.WordProgress(ctx, addr, word)
	if err != nil {
		logger.WithError(err).Error("Failed to read word progress")
		return []string{apologyText}
	}
	return []string{fmt.Sprintf("Progress for word \"%s\": %d/%d\nActive Goal ID: %s", word, level, quiz.MasteredLevel, goalID)}
}

// handleLearn picks the word to study next and leaves an inactive state
// behind for /quiz to start.
func (d *Dispatcher) handleLearn(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, word string) []string {
	addr, goalID, reply := d.activeGoal(ctx, logger, msg.SenderID)
	if reply != "" {
		return []string{reply}
	}

	var chosen models.VocabularyWord
	if word != "" {
		w, err := d.catalog.Lookup(word)
		if errors.Is(err, catalog.ErrUnknownWord) {
			return []string{unknownWordText(word)}
		}
		if err != nil {
			logger.WithError(err).Error("Failed to look up word")
			return []string{apologyText}
		}
		level, err := d.contract.WordProgress(ctx, addr, w.Word)
		if err != nil {
			logger.WithError(err).Error("Failed to read word progress")
			return []string{apologyText}
		}
		if level >= quiz.MasteredLevel {
			return []string{masteredText(w.Word)}
		}
		chosen = w
	} else {
		goal, err := d.contract.Goal(ctx, goalID)
		if err != nil {
			logger.WithError(err).Error("Failed to read goal")
			return []string{apologyText}
		}
		candidates := d.unlearnedWords(ctx, logger, addr.Hex(), goalID.String(), goal.Difficulty)
		if len(candidates) == 0 {
			return []string{"🎉 You've learned every word in the list! Check your goal with /checkgoal."}
		}
		chosen = d.pick(candidates)
	}

	state := quiz.New(msg.ConversationID, msg.SenderID, chosen)
	if err := d.sessions.SaveSession(ctx, state); err != nil {
		logger.WithError(err).Error("Failed to save quiz session")
		return []string{apologyText}
	}

	logger.WithField("word", chosen.Word).Info("Selected word to learn")
	return []string{fmt.Sprintf("📚 Let's learn the word \"%s\"!\n\nMeaning: %s\n\nType /quiz when you're ready to be tested, or /learn to pick another word.", chosen.Word, chosen.Meaning)}
}

// unlearnedWords returns catalog words the user has not mastered in the
// active goal, at the goal's difficulty. Partly learned words and words
// mastered under earlier goals stay eligible. When the indexer is unavailable
// every word of that difficulty qualifies; when the difficulty is exhausted
// any unmastered word does.
func (d *Dispatcher) unlearnedWords(ctx context.Context, logger *logrus.Entry, user, goalID string, difficulty uint8) []models.VocabularyWord {
	learned := map[string]bool{}
	if d.indexer != nil {
		words, err := d.indexer.LearnedWords(ctx, user)
		if err != nil {
			logger.WithError(err).Warn("Failed to fetch learned words, falling back to difficulty filter")
		}
		for _, w := range words {
			if w.GoalID == goalID && w.Progress >= quiz.MasteredLevel {
				learned[w.Word] = true
			}
		}
	}

	candidates := d.catalog.Filter(func(w models.VocabularyWord) bool {
		return !learned[w.Word] && w.Difficulty == difficulty
	})
	if len(candidates) > 0 {
		return candidates
	}
	return d.catalog.Filter(func(w models.VocabularyWord) bool {
		return !learned[w.Word]
	})
}

// handleQuiz starts the quiz for the given word, or for the word picked by
// /learn, at the stage matching its on-chain progress.
func (d *Dispatcher) handleQuiz(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, word string) []string {
	addr, _, reply := d.activeGoal(ctx, logger, msg.SenderID)
	if reply != "" {
		return []string{reply}
	}

	existing, err := d.sessions.GetSession(ctx, sessionKey(msg))
	if err != nil {
		logger.WithError(err).Error("Failed to load quiz session")
		return []string{apologyText}
	}
	if word == "" {
		if existing == nil {
			return []string{"Type /learn to pick a word first, or /quiz <word> to be tested on a specific word."}
		}
		word = existing.CurrentWord
	}

	w, err := d.catalog.Lookup(word)
	if errors.Is(err, catalog.ErrUnknownWord) {
		return []string{unknownWordText(word)}
	}
	if err != nil {
		logger.WithError(err).Error("Failed to look up word")
		return []string{apologyText}
	}

	if existing != nil && existing.Active && existing.CurrentWord == w.Word {
		return []string{existing.Prompt()}
	}

	level, err := d.contract.WordProgress(ctx, addr, w.Word)
	if err != nil {
		logger.WithError(err).Error("Failed to read word progress")
		return []string{apologyText}
	}

	state, err := quiz.Start(d.catalog, msg.ConversationID, msg.SenderID, w.Word, level)
	if errors.Is(err, quiz.ErrMastered) {
		if existing != nil && existing.CurrentWord == w.Word {
			if err := d.sessions.DeleteSession(ctx, sessionKey(msg)); err != nil {
				logger.WithError(err).Error("Failed to delete quiz session")
			}
		}
		return []string{masteredText(w.Word)}
	}
	if err != nil {
		logger.WithError(err).Error("Failed to start quiz")
		return []string{apologyText}
	}

	if state.Stage == quiz.StageMultipleChoice {
		state.MultipleChoice = d.questions.MultipleChoice(ctx, w.Word, w.Meaning)
	}
	if err := d.sessions.SaveSession(ctx, state); err != nil {
		logger.WithError(err).Error("Failed to save quiz session")
		return []string{apologyText}
	}

	logger.WithFields(logrus.Fields{
		"word":  state.CurrentWord,
		"stage": state.Stage.String(),
	}).Info("Started quiz")
	return []string{state.Prompt()}
}

func (d *Dispatcher) handleSkip(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage) []string {
	if err := d.sessions.DeleteSession(ctx, sessionKey(msg)); err != nil {
		logger.WithError(err).Error("Failed to delete quiz session")
		return []string{apologyText}
	}
	return []string{"Let's try another word. Type /learn to start learning a new word!"}
}

// handleUpdate is the manual path: one progress step from the current
// on-chain level. An active quiz on the same word follows along.
func (d *Dispatcher) handleUpdate(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, word string) []string {
	addr, reply := d.userAddress(ctx, logger, msg.SenderID)
	if reply != "" {
		return []string{reply}
	}
	w, err := d.catalog.Lookup(word)
	if errors.Is(err, catalog.ErrUnknownWord) {
		return []string{unknownWordText(word)}
	}
	if err != nil {
		logger.WithError(err).Error("Failed to look up word")
		return []string{apologyText}
	}

	res, err := d.progress.Next(ctx, addr, w.Word)
	if err != nil {
		return []string{progressErrorText(logger, w.Word, err)}
	}

	state, err := d.sessions.GetSession(ctx, sessionKey(msg))
	if err != nil {
		logger.WithError(err).Error("Failed to load quiz session")
	} else if state != nil && state.CurrentWord == w.Word {
		d.syncState(ctx, logger, state, res.NewProgress)
	}

	return []string{progressText(d.contract.Network(), w.Word, res)}
}

// syncState moves a stored state to newProgress, dropping it once mastered.
func (d *Dispatcher) syncState(ctx context.Context, logger *logrus.Entry, state *quiz.State, newProgress uint8) {
	if state.Advance(newProgress) {
		if err := d.sessions.DeleteSession(ctx, state.Key()); err != nil {
			logger.WithError(err).Error("Failed to delete quiz session")
		}
		return
	}
	if state.Active && state.Stage == quiz.StageMultipleChoice {
		if w, err := d.catalog.Lookup(state.CurrentWord); err == nil {
			state.MultipleChoice = d.questions.MultipleChoice(ctx, w.Word, w.Meaning)
		}
	}
	if err := d.sessions.SaveSession(ctx, state); err != nil {
		logger.WithError(err).Error("Failed to save quiz session")
	}
}

// handleAnswer applies a free-text answer to the active quiz. The state is
// judged first and re-read afterwards; if it was replaced or removed while
// the evaluation ran, the result is dropped.
func (d *Dispatcher) handleAnswer(ctx context.Context, logger *logrus.Entry, msg models.InboundMessage, state *quiz.State) []string {
	logger = logger.WithFields(logrus.Fields{
		"word":  state.CurrentWord,
		"stage": state.Stage.String(),
	})
	if msg.ID != "" && state.LastMessageID == msg.ID {
		logger.Info("Answer already applied, dropping redelivery")
		return nil
	}

	verdict, err := d.machine.Judge(ctx, state, msg.Text)
	if errors.Is(err, quiz.ErrNoQuestion) {
		w, lerr := d.catalog.Lookup(state.CurrentWord)
		if lerr != nil {
			logger.WithError(lerr).Error("Quiz word missing from catalog")
			_ = d.sessions.DeleteSession(ctx, sessionKey(msg))
			return []string{"Something went wrong. Type /learn to start learning a new word!"}
		}
		state.MultipleChoice = d.questions.MultipleChoice(ctx, w.Word, w.Meaning)
		if err := d.sessions.SaveSession(ctx, state); err != nil {
			logger.WithError(err).Error("Failed to save quiz session")
			return []string{apologyText}
		}
		return []string{state.Prompt()}
	}
	if err != nil {
		logger.WithError(err).Error("Failed to judge answer")
		_ = d.sessions.DeleteSession(ctx, sessionKey(msg))
		return []string{"Something went wrong. Type /learn to start learning a new word!"}
	}

	current, err := d.sessions.GetSession(ctx, sessionKey(msg))
	if err != nil {
		logger.WithError(err).Error("Failed to reload quiz session")
		return []string{apologyText}
	}
	if current == nil || !current.Active || current.ID != state.ID || current.LastMessageID != state.LastMessageID {
		logger.Info("Quiz changed during evaluation, discarding result")
		return nil
	}
	current.LastMessageID = msg.ID

	switch current.Submit(verdict.Correct) {
	case quiz.OutcomeRetry:
		if err := d.sessions.SaveSession(ctx, current); err != nil {
			logger.WithError(err).Error("Failed to save quiz session")
			return []string{apologyText}
		}
		return []string{current.Retry(verdict)}

	case quiz.OutcomeExhausted:
		if err := d.sessions.DeleteSession(ctx, sessionKey(msg)); err != nil {
			logger.WithError(err).Error("Failed to delete quiz session")
		}
		return []string{exhaustedText(d.catalog, current.CurrentWord, verdict)}
	}

	addr, reply := d.userAddress(ctx, logger, current.UserID)
	if reply != "" {
		return []string{reply}
	}
	res, err := d.progress.Record(ctx, addr, current.CurrentWord, uint8(current.Stage))
	if errors.Is(err, progress.ErrAlreadyMastered) {
		if derr := d.sessions.DeleteSession(ctx, sessionKey(msg)); derr != nil {
			logger.WithError(derr).Error("Failed to delete quiz session")
		}
		return []string{masteredText(current.CurrentWord)}
	}
	if err != nil {
		return []string{fmt.Sprintf("✅ Correct! %s\n\n%s", verdict.Feedback, progressErrorText(logger, current.CurrentWord, err))}
	}

	mastered := current.Advance(res.NewProgress)
	head := fmt.Sprintf("✅ Correct! %s\n\n%s", verdict.Feedback, progressText(d.contract.Network(), current.CurrentWord, res))
	if mastered {
		if err := d.sessions.DeleteSession(ctx, sessionKey(msg)); err != nil {
			logger.WithError(err).Error("Failed to delete quiz session")
		}
		return []string{head + "\n\nType /learn to learn another word."}
	}

	if current.Stage == quiz.StageMultipleChoice {
		w, _ := d.catalog.Lookup(current.CurrentWord)
		current.MultipleChoice = d.questions.MultipleChoice(ctx, w.Word, w.Meaning)
	}
	if err := d.sessions.SaveSession(ctx, current); err != nil {
		logger.WithError(err).Error("Failed to save quiz session")
		return []string{head + "\n\nType /quiz to continue."}
	}
	return []string{head, current.Prompt()}
}

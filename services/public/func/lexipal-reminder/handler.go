package main

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/models"
	"lexipal/internal/quiz"
	"lexipal/internal/utils"
	"time"

	"github.com/sirupsen/logrus"
)

type Handler struct {
	logger     *logrus.Entry
	pusher     utils.LinebotAPI
	walletRepo utils.WalletRepository
	ledgerRepo utils.LedgerRepository
	now        func() time.Time
}

func NewHandler(logger *logrus.Entry, pusher utils.LinebotAPI, walletRepo utils.WalletRepository, ledgerRepo utils.LedgerRepository) (*Handler, error) {
	return &Handler{
		logger:     logger,
		pusher:     pusher,
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// EventHandler receives the payload of a deadline schedule and pushes the
// reminder to the user.
func (h *Handler) EventHandler(ctx context.Context, event utils.ReminderEvent) error {
	logger := h.logger.WithFields(logrus.Fields{
		"userId": event.UserID,
		"goalId": event.GoalID,
	})
	if event.UserID == "" || event.GoalID == "" {
		logger.Error("Reminder event is missing user or goal")
		return errors.New("invalid reminder event")
	}
	deadline, err := time.Parse(time.RFC3339, event.Deadline)
	if err != nil {
		logger.WithError(err).Error("Failed to parse deadline")
		return err
	}

	mastered := -1
	binding, err := h.walletRepo.GetWallet(ctx, event.UserID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load wallet binding")
	} else if binding != nil {
		claims, err := h.ledgerRepo.ListProgress(ctx, binding.Address, event.GoalID)
		if err != nil {
			logger.WithError(err).Warn("Failed to list recorded progress")
		} else {
			mastered = countMastered(claims)
		}
	}

	if err := h.pusher.PushMessage(event.UserID, reminderText(event.GoalID, deadline, h.now(), mastered)); err != nil {
		logger.WithError(err).Error("Failed to send reminder message")
		return err
	}
	logger.Info("Successfully sent reminder message")
	return nil
}

func countMastered(claims []models.ProgressClaim) int {
	n := 0
	for _, c := range claims {
		if c.Status == models.ClaimDone && c.Level >= quiz.MasteredLevel {
			n++
		}
	}
	return n
}

// reminderText renders the push message. mastered is negative when the count
// is unknown.
func reminderText(goalID string, deadline, now time.Time, mastered int) string {
	hours := int(deadline.Sub(now).Hours())
	if hours < 0 {
		hours = 0
	}
	text := fmt.Sprintf("⏰ Your goal #%s ends on %s (about %d hours left).", goalID, deadline.Format("2006-01-02 15:04 MST"), hours)
	if mastered >= 0 {
		text += fmt.Sprintf("\n📊 You've mastered %d word(s) with me so far.", mastered)
	}
	return text + "\n\nType /checkgoal to see your progress or /learn to keep going! 💪"
}

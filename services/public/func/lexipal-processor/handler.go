package main

import (
	"context"
	"lexipal/internal/agent"
	"lexipal/internal/models"
	"lexipal/internal/utils"

	"github.com/sirupsen/logrus"
)

// Handler runs one queued LINE message through the dispatcher. The function
// is deployed with a reserved concurrency of one so messages of a
// conversation are not processed in parallel.
type Handler struct {
	logger        *logrus.Entry
	dispatcher    agent.MessageHandler
	linebotClient utils.LinebotAPI
}

func NewHandler(logger *logrus.Entry, dispatcher agent.MessageHandler, linebotClient utils.LinebotAPI) (*Handler, error) {
	return &Handler{
		logger:        logger,
		dispatcher:    dispatcher,
		linebotClient: linebotClient,
	}, nil
}

// EventHandler replies with the webhook's reply token and falls back to a
// push message when the token has expired. Send failures are logged and not
// returned, so Lambda does not retry a message that was already applied.
func (h *Handler) EventHandler(ctx context.Context, msg models.InboundMessage) error {
	logger := h.logger.WithFields(logrus.Fields{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
	})

	replies := h.dispatcher.Handle(ctx, msg)
	if len(replies) == 0 {
		return nil
	}

	if msg.ReplyToken != "" {
		err := h.linebotClient.ReplyMessage(msg.ReplyToken, replies...)
		if err == nil {
			return nil
		}
		logger.WithError(err).Warn("Failed to reply, falling back to push")
	}
	if err := h.linebotClient.PushMessage(msg.ConversationID, replies...); err != nil {
		logger.WithError(err).Error("Failed to push reply")
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"lexipal/internal/models"
	"lexipal/internal/utils"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
)

// MessageQueue is implemented by *utils.MessageQueue.
type MessageQueue interface {
	Enqueue(ctx context.Context, msg models.InboundMessage) error
}

// Handler acknowledges LINE webhooks and forwards every text message to the
// processor. Quiz evaluation and on-chain updates take longer than LINE
// waits for a webhook response.
type Handler struct {
	logger        *logrus.Entry
	linebotClient utils.LinebotAPI
	queue         MessageQueue
}

func NewHandler(logger *logrus.Entry, linebotClient utils.LinebotAPI, queue MessageQueue) (*Handler, error) {
	return &Handler{
		logger:        logger,
		linebotClient: linebotClient,
		queue:         queue,
	}, nil
}

func (h *Handler) EventHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	messageEvents, err := h.RequestParser(request)
	if err != nil {
		h.logger.WithError(err).Error("Failed to parse request")
		return events.APIGatewayProxyResponse{
			StatusCode: 400,
			Body:       "Bad Request",
		}, nil
	}

	for _, event := range messageEvents {
		h.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"user_id":    event.Source.UserID,
			"room_id":    event.Source.RoomID,
			"group_id":   event.Source.GroupID,
		}).Info("event handling")

		msg, ok := inboundFromEvent(event)
		if !ok {
			continue
		}
		if err := h.queue.Enqueue(ctx, msg); err != nil {
			h.logger.WithError(err).Error("Failed to queue message")
			return events.APIGatewayProxyResponse{
				StatusCode: 500,
				Body:       "Internal server error",
			}, nil
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Body:       "OK",
	}, nil
}

func (h *Handler) RequestParser(request events.APIGatewayProxyRequest) ([]*linebot.Event, error) {
	req, err := http.NewRequest(http.MethodPost, "", bytes.NewBufferString(request.Body))
	if err != nil {
		return nil, err
	}
	req.Header = make(http.Header)
	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}
	return h.linebotClient.ParseRequest(req)
}

// inboundFromEvent maps text messages to InboundMessage. A follow event is
// turned into /help so new users get the introduction.
func inboundFromEvent(event *linebot.Event) (models.InboundMessage, bool) {
	if event.Source == nil {
		return models.InboundMessage{}, false
	}
	msg := models.InboundMessage{
		ConversationID: conversationID(event.Source),
		SenderID:       event.Source.UserID,
		ReplyToken:     event.ReplyToken,
		SentAt:         event.Timestamp.UTC(),
	}

	switch event.Type {
	case linebot.EventTypeFollow:
		msg.ID = "follow-" + event.WebhookEventID
		msg.Text = "/help"
		return msg, true
	case linebot.EventTypeMessage:
		text, ok := event.Message.(*linebot.TextMessage)
		if !ok {
			return models.InboundMessage{}, false
		}
		msg.ID = text.ID
		msg.Text = text.Text
		return msg, true
	}
	return models.InboundMessage{}, false
}

func conversationID(source *linebot.EventSource) string {
	switch {
	case source.GroupID != "":
		return source.GroupID
	case source.RoomID != "":
		return source.RoomID
	default:
		return source.UserID
	}
}

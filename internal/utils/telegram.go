package utils

import (
	"context"
	"errors"
	"fmt"
	"lexipal/internal/models"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrStreamClosed = errors.New("message stream closed")

type TelegramAPI interface {
	SelfID() string
	Subscribe(ctx context.Context) (<-chan models.InboundMessage, error)
	Send(conversationID string, messages ...string) error
}

type TelegramClient struct {
	api     *tgbotapi.BotAPI
	timeout int
}

func NewTelegramClient(token string) (TelegramAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create telegram bot: %w", err)
	}
	return &TelegramClient{api: api, timeout: 60}, nil
}

func (c *TelegramClient) SelfID() string {
	return strconv.FormatInt(c.api.Self.ID, 10)
}

// Subscribe long-polls for updates and forwards text messages until ctx is
// done. The returned channel is closed when polling stops. A client can only
// subscribe once; reconnecting needs a new client.
func (c *TelegramClient) Subscribe(ctx context.Context) (<-chan models.InboundMessage, error) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = c.timeout
	updates := c.api.GetUpdatesChan(updateConfig)

	out := make(chan models.InboundMessage)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := inboundFromUpdate(update)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *TelegramClient) Send(conversationID string, messages ...string) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", conversationID, err)
	}
	for _, text := range messages {
		if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	return nil
}

func inboundFromUpdate(update tgbotapi.Update) (models.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Text == "" || m.From == nil || m.Chat == nil {
		return models.InboundMessage{}, false
	}
	return models.InboundMessage{
		ID:             fmt.Sprintf("tg:%d:%d", m.Chat.ID, m.MessageID),
		ConversationID: strconv.FormatInt(m.Chat.ID, 10),
		SenderID:       strconv.FormatInt(m.From.ID, 10),
		Text:           m.Text,
		SentAt:         time.Unix(int64(m.Date), 0).UTC(),
	}, true
}

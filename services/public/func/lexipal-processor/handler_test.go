package main

import (
	"context"
	"errors"
	"lexipal/internal/models"
	"net/http"
	"testing"

	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
)

type fakeDispatcher struct {
	replies []string
	handled []models.InboundMessage
}

func (f *fakeDispatcher) Handle(_ context.Context, msg models.InboundMessage) []string {
	f.handled = append(f.handled, msg)
	return f.replies
}

type fakeLinebot struct {
	replyErr error
	replied  map[string][]string
	pushed   map[string][]string
}

func newFakeLinebot() *fakeLinebot {
	return &fakeLinebot{replied: map[string][]string{}, pushed: map[string][]string{}}
}

func (f *fakeLinebot) ReplyMessage(token string, messages ...string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replied[token] = messages
	return nil
}

func (f *fakeLinebot) PushMessage(to string, messages ...string) error {
	f.pushed[to] = messages
	return nil
}

func (f *fakeLinebot) ParseRequest(*http.Request) ([]*linebot.Event, error) {
	return nil, nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func TestEventHandler(t *testing.T) {
	msg := models.InboundMessage{ID: "m1", ConversationID: "U1", SenderID: "U1", Text: "/help", ReplyToken: "token"}

	t.Run("Replies with the reply token", func(t *testing.T) {
		bot := newFakeLinebot()
		dispatcher := &fakeDispatcher{replies: []string{"one", "two"}}
		h, _ := NewHandler(testLogger(), dispatcher, bot)

		if err := h.EventHandler(context.Background(), msg); err != nil {
			t.Fatalf("EventHandler: %v", err)
		}
		if len(dispatcher.handled) != 1 || dispatcher.handled[0].ID != "m1" {
			t.Errorf("dispatcher not called with the message: %+v", dispatcher.handled)
		}
		if got := bot.replied["token"]; len(got) != 2 || got[0] != "one" {
			t.Errorf("unexpected reply: %q", got)
		}
		if len(bot.pushed) != 0 {
			t.Errorf("unexpected push: %v", bot.pushed)
		}
	})

	t.Run("Falls back to push when the token expired", func(t *testing.T) {
		bot := newFakeLinebot()
		bot.replyErr = errors.New("invalid reply token")
		h, _ := NewHandler(testLogger(), &fakeDispatcher{replies: []string{"late"}}, bot)

		if err := h.EventHandler(context.Background(), msg); err != nil {
			t.Fatalf("EventHandler: %v", err)
		}
		if got := bot.pushed["U1"]; len(got) != 1 || got[0] != "late" {
			t.Errorf("expected push to the conversation, got %q", got)
		}
	})

	t.Run("Nothing to send", func(t *testing.T) {
		bot := newFakeLinebot()
		h, _ := NewHandler(testLogger(), &fakeDispatcher{}, bot)

		if err := h.EventHandler(context.Background(), msg); err != nil {
			t.Fatalf("EventHandler: %v", err)
		}
		if len(bot.replied) != 0 || len(bot.pushed) != 0 {
			t.Error("expected no messages")
		}
	})
}

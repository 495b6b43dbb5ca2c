package agent

import (
	"context"
	"errors"
	"lexipal/internal/models"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	messages     []models.InboundMessage
	subscribeErr error

	mu   sync.Mutex
	sent map[string][]string
}

func (f *fakeTransport) SelfID() string { return "bot" }

func (f *fakeTransport) Subscribe(ctx context.Context) (<-chan models.InboundMessage, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	ch := make(chan models.InboundMessage, len(f.messages))
	for _, m := range f.messages {
		ch <- m
	}
	close(ch)
	return ch, nil
}

func (f *fakeTransport) Send(conversationID string, messages ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[conversationID] = append(f.sent[conversationID], messages...)
	return nil
}

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, msg models.InboundMessage) []string {
	if msg.Text == "" {
		return nil
	}
	return []string{"re: " + msg.Text}
}

func TestStreamListenerDispatchesAndReconnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := &fakeTransport{messages: []models.InboundMessage{
		{ID: "1", ConversationID: "a", Text: "one"},
		{ID: "2", ConversationID: "b", Text: "two"},
		{ID: "3", ConversationID: "a", Text: "three"},
		{ID: "4", ConversationID: "a", Text: ""},
	}}
	second := &fakeTransport{messages: []models.InboundMessage{
		{ID: "5", ConversationID: "a", Text: "four"},
	}}

	connects := 0
	connect := func() (Transport, error) {
		connects++
		switch connects {
		case 1:
			return first, nil
		case 2:
			return second, nil
		default:
			cancel()
			return nil, context.Canceled
		}
	}

	pool := NewKeyedPool(2, 8)
	pool.Start(context.Background())
	listener := NewStreamListener(testLogger(), connect, echoHandler{}, pool, 3)

	if err := listener.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pool.Close()

	if connects != 3 {
		t.Errorf("expected 3 connection attempts, got %d", connects)
	}
	if got := first.sent["a"]; len(got) != 2 || got[0] != "re: one" || got[1] != "re: three" {
		t.Errorf("unexpected replies on first stream: %q", got)
	}
	if got := first.sent["b"]; len(got) != 1 || got[0] != "re: two" {
		t.Errorf("unexpected replies for b: %q", got)
	}
	if got := second.sent["a"]; len(got) != 1 || got[0] != "re: four" {
		t.Errorf("replies must go out on the transport that delivered the message, got %q", got)
	}
}

type hangingHandler struct{}

func (hangingHandler) Handle(ctx context.Context, msg models.InboundMessage) []string {
	if msg.Text == "hang" {
		<-ctx.Done()
		return []string{"late: " + ctx.Err().Error()}
	}
	return []string{"re: " + msg.Text}
}

func TestStreamListenerBoundsEachMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := &fakeTransport{messages: []models.InboundMessage{
		{ID: "1", ConversationID: "a", Text: "hang"},
		{ID: "2", ConversationID: "a", Text: "next"},
	}}
	connects := 0
	connect := func() (Transport, error) {
		connects++
		if connects == 1 {
			return transport, nil
		}
		cancel()
		return nil, context.Canceled
	}

	pool := NewKeyedPool(1, 4)
	pool.Start(context.Background())
	listener := NewStreamListener(testLogger(), connect, hangingHandler{}, pool, 3).
		WithHandleTimeout(50 * time.Millisecond)

	if err := listener.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pool.Close()

	got := transport.sent["a"]
	if len(got) != 2 || got[0] != "late: "+context.DeadlineExceeded.Error() || got[1] != "re: next" {
		t.Errorf("expected the hung message to time out and the next one to run, got %q", got)
	}
}

func TestStreamListenerGivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	down := errors.New("connection refused")
	connects := 0
	connect := func() (Transport, error) {
		connects++
		return &fakeTransport{subscribeErr: down}, nil
	}

	pool := NewKeyedPool(1, 1)
	pool.Start(context.Background())
	defer pool.Close()
	listener := NewStreamListener(testLogger(), connect, echoHandler{}, pool, 2)

	err := listener.Run(ctx)
	if !errors.Is(err, down) {
		t.Fatalf("expected the subscribe error, got %v", err)
	}
	if connects != 2 {
		t.Errorf("expected 2 attempts, got %d", connects)
	}
}

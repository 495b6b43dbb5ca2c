package agent

import (
	"context"
	"errors"
	"lexipal/internal/models"
	"lexipal/internal/utils"
	"time"

	"github.com/go-kratos/kit/retry"
	"github.com/sirupsen/logrus"
)

const (
	DefaultReconnectAttempts = 5
	// DefaultHandleTimeout bounds one message end to end, AI calls and a
	// mined progress transaction included.
	DefaultHandleTimeout     = 5 * time.Minute

	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Transport is one connection to a chat network. Subscribe may only be
// called once per Transport.
type Transport interface {
	SelfID() string
	Subscribe(ctx context.Context) (<-chan models.InboundMessage, error)
	Send(conversationID string, messages ...string) error
}

// Connector opens a fresh Transport.
type Connector func() (Transport, error)

type MessageHandler interface {
	Handle(ctx context.Context, msg models.InboundMessage) []string
}

// StreamListener consumes a message stream and hands every message to the
// handler through a KeyedPool so each conversation is processed in order.
type StreamListener struct {
	logger   *logrus.Entry
	connect  Connector
	handler  MessageHandler
	pool     *KeyedPool
	attempts int
	timeout  time.Duration
}

func NewStreamListener(logger *logrus.Entry, connect Connector, handler MessageHandler, pool *KeyedPool, attempts int) *StreamListener {
	if attempts <= 0 {
		attempts = DefaultReconnectAttempts
	}
	return &StreamListener{
		logger:   logger,
		connect:  connect,
		handler:  handler,
		pool:     pool,
		attempts: attempts,
		timeout:  DefaultHandleTimeout,
	}
}

// WithHandleTimeout replaces DefaultHandleTimeout. A message that runs out of
// time frees its worker for the next conversation in line.
func (l *StreamListener) WithHandleTimeout(d time.Duration) *StreamListener {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// Run listens until ctx is done. A stream that delivered messages before it
// dropped is reconnected with a fresh retry budget; one that keeps failing
// exhausts the budget and Run returns the last error.
func (l *StreamListener) Run(ctx context.Context) error {
	r := retry.New(l.attempts,
		retry.WithBaseDelay(reconnectBaseDelay),
		retry.WithMaxDelay(reconnectMaxDelay),
		retry.WithRetryable(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrPoolClosed)
		}),
	)

	for {
		err := r.Do(ctx, l.consume)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			l.logger.WithError(err).Error("Giving up on message stream")
			return err
		}
		l.logger.Info("Message stream ended, reconnecting")
	}
}

// consume runs one connection. It returns nil when a healthy stream ended so
// Run starts over with a fresh budget.
func (l *StreamListener) consume(ctx context.Context) error {
	transport, err := l.connect()
	if err != nil {
		l.logger.WithError(err).Warn("Failed to connect to message stream")
		return err
	}
	stream, err := transport.Subscribe(ctx)
	if err != nil {
		l.logger.WithError(err).Warn("Failed to subscribe to message stream")
		return err
	}
	l.logger.WithField("selfId", transport.SelfID()).Info("Listening for messages")

	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-stream:
			if !ok {
				if delivered == 0 {
					return utils.ErrStreamClosed
				}
				return nil
			}
			delivered++
			if err := l.pool.Submit(ctx, msg.ConversationID, l.job(transport, msg)); err != nil {
				return err
			}
		}
	}
}

func (l *StreamListener) job(transport Transport, msg models.InboundMessage) Job {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		replies := l.handler.Handle(ctx, msg)
		if len(replies) == 0 {
			return
		}
		if err := transport.Send(msg.ConversationID, replies...); err != nil {
			l.logger.WithError(err).WithField("conversationId", msg.ConversationID).Error("Failed to send reply")
		}
	}
}

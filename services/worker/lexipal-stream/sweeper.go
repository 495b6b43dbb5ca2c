package main

import (
	"context"
	"lexipal/internal/utils"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// SessionSweeper drops quiz sessions nobody touched within the TTL. DynamoDB
// expires sessions on its own; SQLite needs this.
type SessionSweeper struct {
	logger    *logrus.Entry
	scheduler *gocron.Scheduler
	sessions  utils.SessionRepository
	ttl       time.Duration
	every     time.Duration
	now       func() time.Time
}

func NewSessionSweeper(logger *logrus.Entry, sessions utils.SessionRepository, ttl, every time.Duration) *SessionSweeper {
	return &SessionSweeper{
		logger:    logger,
		scheduler: gocron.NewScheduler(time.UTC),
		sessions:  sessions,
		ttl:       ttl,
		every:     every,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on a fixed interval until ctx is done.
func (s *SessionSweeper) Run(ctx context.Context) error {
	if _, err := s.scheduler.Every(s.every).Do(s.sweep, ctx); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	<-ctx.Done()
	s.scheduler.Stop()
	return nil
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	purged, err := s.sessions.PurgeSessions(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge stale quiz sessions")
		return
	}
	if purged > 0 {
		s.logger.WithField("purged", purged).Info("Purged stale quiz sessions")
	}
}

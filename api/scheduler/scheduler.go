package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/epassport-desk/support-api/socket"
)

// Scheduler handles periodic background jobs for the support desk
type Scheduler struct {
	cron  *cron.Cron
	relay *socket.Relay
	ttl   time.Duration
}

// NewScheduler creates a new scheduler instance
func NewScheduler(relay *socket.Relay, ttl time.Duration) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		relay: relay,
		ttl:   ttl,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Expire stale closure requests every 15 minutes. An applicant who
	// never answers should not hold a ticket in limbo forever.
	_, err := s.cron.AddFunc("*/15 * * * *", s.sweepClosureRequests)
	if err != nil {
		zap.S().Errorw("failed to register closure sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Support desk scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		zap.S().Warn("scheduler stop timed out waiting for running jobs")
	}
	zap.S().Info("Support desk scheduler stopped")
}

func (s *Scheduler) sweepClosureRequests() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	expired, err := s.relay.ExpireClosureRequests(ctx, s.ttl)
	if err != nil {
		zap.S().Errorw("closure sweep failed", "error", err)
		return
	}
	if expired > 0 {
		zap.S().Infow("expired stale closure requests",
			"count", expired,
			"ttl", s.ttl)
	}
}

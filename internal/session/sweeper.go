package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

// DefaultSweepSchedule runs the expiry sweep once an hour.
const DefaultSweepSchedule = "@hourly"

// ScheduleFromEnv reads SESSION_SWEEP_SCHEDULE (cron spec or @every/@hourly).
func ScheduleFromEnv() string {
	if v := os.Getenv("SESSION_SWEEP_SCHEDULE"); v != "" {
		return v
	}
	return DefaultSweepSchedule
}

type expirySweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper deletes expired sessions once at start and then on a cron schedule.
type Sweeper struct {
	target  expirySweeper
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewSweeper(target expirySweeper, schedule string, logger *zap.SugaredLogger) (*Sweeper, error) {
	s := &Sweeper{
		target:  target,
		cron:    cron.New(),
		timeout: 30 * time.Second,
		logger:  utilities.OrNop(logger),
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("session sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start sweeps immediately, then hands off to the scheduler.
func (s *Sweeper) Start() {
	s.RunOnce()
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep; failures are logged and retried on the next tick.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		s.logger.Warnw("session sweep failed", "err", err)
		return
	}
	s.logger.Debugw("session sweep done", "deleted", n)
}

package catalog

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/clash/pkg/logger"
)

// Scheduler runs catalog refreshes on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	refresh func(ctx context.Context) (Report, error)
	log     logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler validates spec (standard 5-field cron, or descriptors such as
// "@every 15m") and registers fn on it.
func NewScheduler(spec string, fn func(ctx context.Context) (Report, error), log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		cron:    cron.New(),
		refresh: fn,
		log:     log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		s.cancel()
		return nil, fmt.Errorf("invalid refresh_cron %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	if _, err := s.refresh(s.ctx); err != nil {
		s.log.Error(s.ctx, "scheduled catalog refresh failed", logger.Error(err))
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels in-flight refreshes and waits for them to return or for ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

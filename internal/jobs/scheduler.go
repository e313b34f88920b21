// Package jobs runs the periodic maintenance sweeps.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const runTimeout = 30 * time.Second

// Scheduler runs named jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		logger: logger.Named("jobs"),
	}
}

// Add registers fn on a cron schedule. A job returning n > 0 is logged with the
// number of items it handled.
func (s *Scheduler) Add(schedule, name string, fn func(ctx context.Context) (int, error)) error {
	_, err := s.cron.AddFunc(schedule, func() { s.run(name, fn) })
	if err != nil {
		return err
	}
	s.logger.Info("scheduled job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := fn(ctx)
	if err != nil {
		s.logger.Warn("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Debug("job finished", zap.String("job", name), zap.Int("count", n))
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

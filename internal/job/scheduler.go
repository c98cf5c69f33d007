package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ParseSchedule validates a five-field cron spec or an @descriptor.
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return sched, nil
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler triggers the daily snapshot on a cron schedule. Overlapping runs
// are skipped.
type Scheduler struct {
	cron   *cron.Cron
	job    *DailySnapshot
	logger *zap.Logger

	// ctx is cancelled when Stop gives up waiting for a running job.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(spec string, loc *time.Location, j *DailySnapshot, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}

	cl := cronLogger{s: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		job:    j,
		logger: logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Schedule(sched, cron.FuncJob(s.run))
	return s, nil
}

func (s *Scheduler) run() {
	if _, err := s.job.Run(s.ctx); err != nil {
		s.logger.Warn("scheduled snapshot run completed with failures", zap.Error(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running one until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("failed to stop snapshot scheduler: %w", ctx.Err())
	}
}

package worker

import (
	"context"
	"fmt"
	"time"

	"service-engagement/internal/usecase"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs the timer drain and the outbox flush on cron schedules.
type Scheduler struct {
	cron       *cron.Cron
	timers     usecase.TimerService
	dispatcher *OutboxDispatcher
	cfg        utils.WorkerConfig
	log        *zap.Logger
}

func NewScheduler(timers usecase.TimerService, dispatcher *OutboxDispatcher, cfg utils.WorkerConfig, log *zap.Logger) *Scheduler {
	log = log.With(zap.String("worker", "scheduler"))
	cl := cronLogger{s: log.Sugar()}
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		timers:     timers,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.TimerDrainSchedule, s.drainTimers); err != nil {
		return fmt.Errorf("schedule timer drain %q: %w", s.cfg.TimerDrainSchedule, err)
	}
	if s.dispatcher != nil {
		if _, err := s.cron.AddFunc(s.cfg.OutboxSchedule, s.flushOutbox); err != nil {
			return fmt.Errorf("schedule outbox flush %q: %w", s.cfg.OutboxSchedule, err)
		}
	}
	s.cron.Start()
	s.log.Info("Scheduler started",
		zap.String("timer_drain", s.cfg.TimerDrainSchedule),
		zap.String("outbox", s.cfg.OutboxSchedule),
	)
	return nil
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) drainTimers() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := s.timers.Drain(ctx, s.cfg.TimerDrainBatch)
	if err != nil {
		s.log.Error("Timer drain failed", zap.Error(err))
		return
	}
	if res.Fired+res.Stale+res.Deferred+res.Failed > 0 {
		s.log.Info("Timer drain finished",
			zap.Int("fired", res.Fired),
			zap.Int("stale", res.Stale),
			zap.Int("deferred", res.Deferred),
			zap.Int("failed", res.Failed),
		)
	}
}

func (s *Scheduler) flushOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.dispatcher.FlushOnce(ctx)
	switch {
	case apperr.Is(err, apperr.KindExternalDependency):
		// already logged per message and marked for retry
		s.log.Debug("Outbox flush left messages for retry", zap.Int("published", n))
		return
	case err != nil:
		s.log.Error("Outbox flush failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Debug("Outbox flushed", zap.Int("published", n))
	}
}

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/service"
)

// QueueDrainer processes one batch of inbound messages.
type QueueDrainer interface {
	DrainQueue(ctx context.Context) (service.DrainResult, error)
}

// ApprovalExpirer times out overdue approvals.
type ApprovalExpirer interface {
	ExpireOverdue(ctx context.Context) (service.ExpiryResult, error)
}

// TicketArchiver moves tickets past their retention horizon to ARCHIVED.
type TicketArchiver interface {
	ArchiveExpired(ctx context.Context) (service.ArchiveResult, error)
}

// Scheduler triggers the background jobs on cron specs. Runs of the same job
// never overlap; a tick that finds the previous run still busy is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler builds an idle scheduler. Each run is bounded by timeout.
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := zapCronLogger{logger: logger.Named("cron")}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ScheduleDrain registers the queue drain job.
func (s *Scheduler) ScheduleDrain(spec string, drainer QueueDrainer) error {
	_, err := s.cron.AddFunc(spec, func() { s.RunDrain(drainer) })
	if err != nil {
		return fmt.Errorf("schedule queue drain %q: %w", spec, err)
	}
	s.logger.Info("queue drain scheduled", zap.String("spec", spec))
	return nil
}

// ScheduleExpiry registers the approval expiry job.
func (s *Scheduler) ScheduleExpiry(spec string, expirer ApprovalExpirer) error {
	_, err := s.cron.AddFunc(spec, func() { s.RunExpiry(expirer) })
	if err != nil {
		return fmt.Errorf("schedule approval expiry %q: %w", spec, err)
	}
	s.logger.Info("approval expiry scheduled", zap.String("spec", spec))
	return nil
}

// ScheduleArchival registers the retention sweep.
func (s *Scheduler) ScheduleArchival(spec string, archiver TicketArchiver) error {
	_, err := s.cron.AddFunc(spec, func() { s.RunArchival(archiver) })
	if err != nil {
		return fmt.Errorf("schedule ticket archival %q: %w", spec, err)
	}
	s.logger.Info("ticket archival scheduled", zap.String("spec", spec))
	return nil
}

// RunDrain executes one drain synchronously.
func (s *Scheduler) RunDrain(drainer QueueDrainer) {
	ctx, cancel := s.runContext()
	defer cancel()
	result, err := drainer.DrainQueue(ctx)
	if err != nil {
		s.logger.Error("queue drain failed", zap.Error(err))
		return
	}
	if result.Received > 0 {
		s.logger.Debug("queue drain finished",
			zap.Int("received", result.Received),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed))
	}
}

// RunExpiry executes one expiry sweep synchronously.
func (s *Scheduler) RunExpiry(expirer ApprovalExpirer) {
	ctx, cancel := s.runContext()
	defer cancel()
	result, err := expirer.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("approval expiry failed", zap.Error(err))
		return
	}
	if result.Expired > 0 || result.Conflicts > 0 {
		s.logger.Info("approvals expired",
			zap.Int("expired", result.Expired),
			zap.Int("resume_failed", result.ResumeFailed),
			zap.Int("conflicts", result.Conflicts))
	}
}

// RunArchival executes one retention sweep synchronously.
func (s *Scheduler) RunArchival(archiver TicketArchiver) {
	ctx, cancel := s.runContext()
	defer cancel()
	if _, err := archiver.ArchiveExpired(ctx); err != nil {
		s.logger.Error("ticket archival failed", zap.Error(err))
	}
}

func (s *Scheduler) runContext() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(s.ctx, s.timeout)
	}
	return context.WithCancel(s.ctx)
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them, or for ctx.
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

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

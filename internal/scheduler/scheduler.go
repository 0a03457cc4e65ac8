package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/loopband/backend/internal/greenaudit"
	"go.uber.org/zap"
)

const defaultCheckInterval = time.Hour

var (
	errMissingAuditService = errors.New("scheduler: audit service is required")
)

// Config describes the dependencies of the monthly auto-run loop.
type Config struct {
	AuditService  *greenaudit.Service
	Clock         func() time.Time
	CheckInterval time.Duration
	Logger        *zap.Logger
}

// Scheduler triggers one audit for the previous calendar month once that
// month has closed and no report exists yet. Because RunAudit is idempotent
// and serialized per month, a manual trigger racing the scheduler is safe.
type Scheduler struct {
	audit    *greenaudit.Service
	clock    func() time.Time
	interval time.Duration
	logger   *zap.Logger
}

// New validates dependencies and constructs the scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.AuditService == nil {
		return nil, errMissingAuditService
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		audit:    cfg.AuditService,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run blocks until the context is cancelled, checking once per interval
// whether the previous month still needs a report.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	period := greenaudit.PeriodMonthOf(s.clock()).Previous()

	exists, err := s.audit.ReportExists(ctx, period)
	if err != nil {
		s.logger.Error("scheduler report lookup failed",
			zap.String("period_month", period.String()), zap.Error(err))
		return
	}
	if exists {
		return
	}

	s.logger.Info("scheduler triggering audit", zap.String("period_month", period.String()))
	if _, err := s.audit.RunAudit(ctx, period); err != nil {
		s.logger.Error("scheduled audit failed",
			zap.String("period_month", period.String()), zap.Error(err))
	}
}

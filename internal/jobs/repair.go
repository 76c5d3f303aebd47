package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/middleware"
)

// RepairConfig holds configuration for the scheduled balance rebuild.
type RepairConfig struct {
	Schedule string // standard five-field cron spec, or a descriptor such as "@daily"
	TimeZone string
	Timeout  time.Duration
}

// RepairScheduler runs ResetAndRecompute on a cron schedule.
type RepairScheduler struct {
	cron    *cron.Cron
	balance portssvc.BalanceAdminSvc
	logger  *slog.Logger
	timeout time.Duration
}

// NewRepairScheduler validates the schedule and registers the job. Start must be called to run it.
func NewRepairScheduler(cfg RepairConfig, balance portssvc.BalanceAdminSvc, logger *slog.Logger) (*RepairScheduler, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		logger.Warn("Unknown repair timezone, using UTC", slog.String("timezone", cfg.TimeZone))
		loc = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}

	s := &RepairScheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		balance: balance,
		logger:  logger.With(slog.String("component", "balance_repair")),
		timeout: cfg.Timeout,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.Run); err != nil {
		return nil, fmt.Errorf("unable to schedule balance repair: %w", err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *RepairScheduler) Start() {
	s.cron.Start()
	s.logger.Info("Balance repair scheduler started")
}

// Stop stops scheduling and waits for a running rebuild to finish or ctx to expire.
func (s *RepairScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Balance repair still running at shutdown")
	}
}

// Run performs one rebuild. Failures are logged; the report already records the failing stage.
func (s *RepairScheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = middleware.WithLogger(ctx, s.logger)

	report, ok := s.balance.ResetAndRecompute(ctx)
	if !ok {
		if failed, found := report.FailedStage(); found {
			s.logger.Error("Scheduled balance repair failed",
				slog.String("stage", string(failed.Stage)), slog.String("error", failed.Error))
			return
		}
		s.logger.Error("Scheduled balance repair failed")
		return
	}
	s.logger.Info("Scheduled balance repair finished",
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
}

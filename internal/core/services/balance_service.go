package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
)

type balanceService struct {
	BaseService
	repo portsrepo.LedgerRepositoryFacade
	now  func() time.Time
}

// BalanceServiceOption is a function that configures a balanceService
type BalanceServiceOption func(*balanceService)

// WithBalanceClock overrides the clock used for reset reports.
func WithBalanceClock(now func() time.Time) BalanceServiceOption {
	return func(s *balanceService) {
		s.now = now
	}
}

// NewBalanceService creates a new balance service with the given options
func NewBalanceService(repo portsrepo.LedgerRepositoryFacade, options ...BalanceServiceOption) portssvc.BalanceSvcFacade {
	s := &balanceService{repo: repo, now: time.Now}
	for _, option := range options {
		option(s)
	}
	return s
}

var _ portssvc.BalanceSvcFacade = (*balanceService)(nil)

func (s *balanceService) GetBalance(ctx context.Context, lineID int64) (*domain.BalanceView, error) {
	if _, err := s.repo.FindLineByID(ctx, lineID); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetBalance(ctx, lineID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to get line balance", slog.Int64("line_id", lineID))
		return nil, err
	}
	view := domain.ViewOf(lineID, rec)
	return &view, nil
}

// resetStage binds a stage name to the store operation that performs it.
type resetStage struct {
	name domain.ResetStage
	run  func(ctx context.Context) (int64, error)
}

// ResetAndRecompute runs truncate, recompute and sync in order. Each stage commits before the
// next one starts; the first failing stage ends the run.
func (s *balanceService) ResetAndRecompute(ctx context.Context) (*domain.ResetReport, bool) {
	report := &domain.ResetReport{StartedAt: s.now().UTC(), Stages: []domain.StageResult{}}
	stages := []resetStage{
		{name: domain.StageTruncate, run: s.repo.TruncateBalances},
		{name: domain.StageRecompute, run: s.repo.RecomputeAll},
		{name: domain.StageSync, run: s.repo.SyncLineBalances},
	}

	s.LogInfo(ctx, "Balance reset started")
	for _, stage := range stages {
		start := s.now()
		s.LogInfo(ctx, "Balance reset stage started", slog.String("stage", string(stage.name)))

		rows, err := stage.run(ctx)
		elapsed := s.now().Sub(start)
		resetStageDuration.WithLabelValues(string(stage.name)).Observe(elapsed.Seconds())

		result := domain.StageResult{Stage: stage.name, Rows: rows, Duration: elapsed}
		if err != nil {
			result.Error = err.Error()
			report.Stages = append(report.Stages, result)
			report.FinishedAt = s.now().UTC()
			resetRunsTotal.WithLabelValues("failed").Inc()
			s.LogError(ctx, err, "Balance reset stage failed", slog.String("stage", string(stage.name)))
			return report, false
		}
		report.Stages = append(report.Stages, result)
		s.LogInfo(ctx, "Balance reset stage finished",
			slog.String("stage", string(stage.name)),
			slog.Int64("rows", rows),
			slog.Duration("duration", elapsed))
	}

	report.FinishedAt = s.now().UTC()
	report.OK = true
	resetRunsTotal.WithLabelValues("success").Inc()
	s.LogInfo(ctx, "Balance reset finished", slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
	return report, true
}

func (s *balanceService) VerifyPartition(ctx context.Context, key domain.PartitionKey, repair bool) (*domain.VerifyReport, error) {
	var report *domain.VerifyReport
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx portsrepo.LedgerTx) error {
		if err := tx.LockPartitions(ctx, []domain.PartitionKey{key}); err != nil {
			return err
		}
		lines, err := tx.FindPartitionLines(ctx, key)
		if err != nil {
			return err
		}
		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.LineID
		}
		stored, err := tx.FindBalances(ctx, ids)
		if err != nil {
			return err
		}

		r := &domain.VerifyReport{Partition: key, LinesChecked: len(lines), Drifts: domain.VerifyBalances(lines, stored)}
		if repair && !r.Consistent() {
			upserts := []domain.BalanceRecord{}
			clears := []int64{}
			for _, d := range r.Drifts {
				if d.Expected != nil {
					upserts = append(upserts, *d.Expected)
				} else {
					clears = append(clears, d.LineID)
				}
			}
			if len(upserts) > 0 {
				if err := tx.UpsertBalances(ctx, upserts); err != nil {
					return err
				}
			}
			if len(clears) > 0 {
				if _, err := tx.DeleteBalances(ctx, clears); err != nil {
					return err
				}
			}
			r.Repaired = true
		}
		report = r
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to verify partition", slog.String("partition", key.String()))
		return nil, err
	}

	for _, d := range report.Drifts {
		balanceDriftsTotal.WithLabelValues(string(d.Reason)).Inc()
	}
	if !report.Consistent() {
		s.LogInfo(ctx, "Balance drift detected",
			slog.String("partition", key.String()),
			slog.Int("drifts", len(report.Drifts)),
			slog.Bool("repaired", report.Repaired))
	}
	return report, nil
}

package services

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

type reportingService struct {
	BaseService
	repo portsrepo.AggregateReader
}

// ReportingServiceOption is a function that configures a reportingService
type ReportingServiceOption func(*reportingService)

// NewReportingService creates a new reporting service with the given options
func NewReportingService(repo portsrepo.AggregateReader, options ...ReportingServiceOption) portssvc.ReportingSvcFacade {
	s := &reportingService{repo: repo}
	for _, option := range options {
		option(s)
	}
	return s
}

var _ portssvc.ReportingSvcFacade = (*reportingService)(nil)

// AggregateGroups validates req and computes its rows. The first and last filtered line are
// picked per (account, counterparty) before any cross-account sum.
func (s *reportingService) AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	timer := prometheus.NewTimer(aggregateDuration.WithLabelValues(string(req.Granularity)))
	defer timer.ObserveDuration()

	rows, err := s.repo.AggregateGroups(ctx, req)
	if err != nil {
		s.LogError(ctx, err, "Failed to aggregate balances", slog.String("granularity", string(req.Granularity)))
		return nil, err
	}
	return rows, nil
}

func (s *reportingService) OpeningBalance(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error) {
	return s.total(ctx, pred, granularity, domain.FieldOpening, func(r domain.AggregateRow) *decimal.Decimal { return r.Opening })
}

func (s *reportingService) ClosingBalance(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error) {
	return s.total(ctx, pred, granularity, domain.FieldClosing, func(r domain.AggregateRow) *decimal.Decimal { return r.Closing })
}

func (s *reportingService) total(ctx context.Context, pred filter.Predicate, granularity domain.Granularity, field domain.AggregateField, pick func(domain.AggregateRow) *decimal.Decimal) (decimal.Decimal, error) {
	rows, err := s.AggregateGroups(ctx, domain.AggregateRequest{
		Filter:      pred,
		Granularity: granularity,
		Fields:      []domain.AggregateField{field},
	})
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, r := range rows {
		if v := pick(r); v != nil {
			sum = sum.Add(*v)
		}
	}
	return sum, nil
}

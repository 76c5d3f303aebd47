package services

import (
	"context"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/shopspring/decimal"
)

// ReportingSvcFacade defines aggregate balance queries over filtered line subsets.
type ReportingSvcFacade interface {
	// AggregateGroups returns the requested fields per group.
	AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error)

	// OpeningBalance sums, over the groups of granularity, the initial balance of the first filtered line.
	OpeningBalance(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error)

	// ClosingBalance sums, over the groups of granularity, the end balance of the last filtered line.
	ClosingBalance(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error)
}

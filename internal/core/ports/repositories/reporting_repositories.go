package repositories

import (
	"context"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
)

// AggregateReader computes filtered aggregate balances.
type AggregateReader interface {
	// AggregateGroups returns one row per group of req.Granularity. The request must be validated.
	AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error)
}

package services

import (
	"context"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// LedgerReaderSvc defines read operations for ledger lines.
type LedgerReaderSvc interface {
	// GetLine retrieves a line with its denormalized balances.
	GetLine(ctx context.Context, lineID int64) (*domain.LedgerLine, error)

	// ListLines retrieves a page of lines matching pred ordered by (date, id).
	ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error)
}

// LedgerWriterSvc defines the ledger mutations. Each call runs in one transaction together with
// the incremental recompute of the affected partitions unless opts.SkipRecompute is set.
type LedgerWriterSvc interface {
	// CreateLines persists new lines and returns them with ids and computed balances.
	CreateLines(ctx context.Context, inputs []domain.LineInput, opts domain.MutationOptions) ([]domain.LedgerLine, error)

	// UpdateLines applies partial updates. Unknown ids yield apperrors.ErrNotFound.
	UpdateLines(ctx context.Context, updates []domain.LineUpdate, opts domain.MutationOptions) ([]domain.LedgerLine, error)

	// DeleteLines removes lines and returns the number deleted.
	DeleteLines(ctx context.Context, lineIDs []int64, opts domain.MutationOptions) (int64, error)

	// RecomputeLines recomputes the partitions of lines changed outside the service.
	RecomputeLines(ctx context.Context, lineIDs []int64) (*domain.RecomputeStats, error)
}

// LedgerSvcFacade combines all ledger service interfaces.
type LedgerSvcFacade interface {
	LedgerReaderSvc
	LedgerWriterSvc
}

package repositories

import (
	"context"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// LineReader defines read operations for ledger lines outside of a mutation.
type LineReader interface {
	// FindLineByID retrieves a line with its denormalized balances. Returns apperrors.ErrNotFound.
	FindLineByID(ctx context.Context, lineID int64) (*domain.LedgerLine, error)

	// ListLines retrieves lines matching pred ordered by (date, id) using token-based pagination.
	// It returns the lines, a token for the next page, and an error.
	ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error)
}

// LineWriter defines the ledger line mutations available inside a transaction.
type LineWriter interface {
	// InsertLines persists new lines and returns them with their assigned ids, in input order.
	InsertLines(ctx context.Context, lines []domain.LedgerLine) ([]domain.LedgerLine, error)

	// FindLines returns the current state of the given lines ordered by id without locking them.
	// Missing ids are silently absent from the result.
	FindLines(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error)

	// FindLinesForUpdate row-locks and returns the current state of the given lines ordered by id.
	// Missing ids are silently absent from the result.
	FindLinesForUpdate(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error)

	// UpdateLines overwrites the mutable columns of existing lines.
	UpdateLines(ctx context.Context, lines []domain.LedgerLine) error

	// DeleteLines removes lines and returns the number deleted.
	DeleteLines(ctx context.Context, lineIDs []int64) (int64, error)
}

// LedgerTx is the transactional view of the store handed to a TxFunc.
type LedgerTx interface {
	LineWriter
	BalanceWriter
}

// LedgerRepositoryFacade combines all ledger repository interfaces.
type LedgerRepositoryFacade interface {
	TransactionManager
	LineReader
	BalanceReader
	AggregateReader
	BalanceMaintenance
}

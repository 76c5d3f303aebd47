package repositories

import (
	"context"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
)

// BalanceReader defines read operations on the Balance Store.
type BalanceReader interface {
	// GetBalance returns the record of a line, or apperrors.ErrNotFound when none exists.
	GetBalance(ctx context.Context, lineID int64) (*domain.BalanceRecord, error)
}

// BalanceWriter defines Balance Store operations available inside a transaction.
type BalanceWriter interface {
	// LockPartitions takes the shared reset lock and then one writer lock per partition, in the
	// order given. Locks are held until the transaction ends.
	LockPartitions(ctx context.Context, keys []domain.PartitionKey) error

	// RecomputeTargets recomputes the posted tail of every target partition from its MinDate,
	// upserts the records and copies them onto the line columns. Returns the rows written.
	RecomputeTargets(ctx context.Context, targets []domain.RecomputeTarget) (int64, error)

	// UpsertBalances writes records, overwriting existing ones by line id, and syncs line columns.
	UpsertBalances(ctx context.Context, records []domain.BalanceRecord) error

	// DeleteBalances removes the records of the given lines and clears their line columns.
	DeleteBalances(ctx context.Context, lineIDs []int64) (int64, error)

	// FindPartitionLines returns every line of a partition, in any state.
	FindPartitionLines(ctx context.Context, key domain.PartitionKey) ([]domain.LedgerLine, error)

	// FindBalances returns the stored records of the given lines keyed by line id.
	FindBalances(ctx context.Context, lineIDs []int64) (map[int64]domain.BalanceRecord, error)
}

// BalanceMaintenance defines the stages of a full reset. Each call runs in its own transaction
// holding the exclusive reset lock and returns the number of rows affected.
type BalanceMaintenance interface {
	// TruncateBalances empties the Balance Store.
	TruncateBalances(ctx context.Context) (int64, error)

	// RecomputeAll computes and inserts balances for every posted line.
	RecomputeAll(ctx context.Context) (int64, error)

	// SyncLineBalances copies stored balances onto the line columns and clears the columns of
	// lines without a record.
	SyncLineBalances(ctx context.Context) (int64, error)
}

package repositories

import (
	"context"
)

// TxFunc is the unit of work executed inside one storage transaction.
type TxFunc func(ctx context.Context, tx LedgerTx) error

// TransactionManager runs units of work atomically. Any error returned by fn, a panic or a
// cancelled context rolls the transaction back; otherwise it is committed. Serialization failures
// and deadlocks are reported as apperrors.ErrConflict so callers can retry.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn TxFunc) error
}

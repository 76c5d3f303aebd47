package pgsql

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Each maintenance stage runs in its own transaction holding the exclusive reset lock, which
// waits for in-flight writers (they hold it shared) and keeps new ones out until the stage ends.
func (r *PgxLedgerRepository) underResetLock(ctx context.Context, msg string, fn func(tx pgx.Tx) (int64, error)) (int64, error) {
	var rows int64
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockResetExclusiveSQL, resetLockKey); err != nil {
			return err
		}
		n, err := fn(tx)
		rows = n
		return err
	})
	if err != nil {
		return 0, classifyError(msg, err)
	}
	return rows, nil
}

// TruncateBalances removes every balance record and returns how many there were.
func (r *PgxLedgerRepository) TruncateBalances(ctx context.Context) (int64, error) {
	return r.underResetLock(ctx, "failed to truncate balances", func(tx pgx.Tx) (int64, error) {
		var n int64
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM line_balances`).Scan(&n); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `TRUNCATE line_balances`); err != nil {
			return 0, err
		}
		return n, nil
	})
}

// RecomputeAll recomputes the records of every posted line in one statement.
func (r *PgxLedgerRepository) RecomputeAll(ctx context.Context) (int64, error) {
	return r.underResetLock(ctx, "failed to recompute all balances", func(tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, recomputeAllSQL)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

// SyncLineBalances copies records onto the line columns and clears columns of lines without a
// record. Only rows that change are written.
func (r *PgxLedgerRepository) SyncLineBalances(ctx context.Context) (int64, error) {
	return r.underResetLock(ctx, "failed to sync line balances", func(tx pgx.Tx) (int64, error) {
		copied, err := tx.Exec(ctx, syncLineBalancesSQL)
		if err != nil {
			return 0, err
		}
		cleared, err := tx.Exec(ctx, clearOrphanLineBalancesSQL)
		if err != nil {
			return 0, err
		}
		return copied.RowsAffected() + cleared.RowsAffected(), nil
	})
}

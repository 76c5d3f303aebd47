package sqlite

import (
	"context"
	"database/sql"
)

const recomputeAllSQL = `
INSERT INTO line_balances (line_id, initial_balance, end_balance, currency_id)
SELECT w.line_id, w.running - w.net, w.running, w.currency_id
FROM (
	SELECT l.id AS line_id, l.currency_id, l.debit - l.credit AS net,
		` + runningSum + ` AS running
	FROM ledger_lines l
	WHERE l.state = 'posted'
) w
WHERE true
ON CONFLICT (line_id) DO UPDATE
SET initial_balance = excluded.initial_balance,
	end_balance = excluded.end_balance,
	currency_id = excluded.currency_id`

const syncLineBalancesSQL = `
UPDATE ledger_lines
SET initial_balance = b.initial_balance, end_balance = b.end_balance
FROM line_balances b
WHERE b.line_id = ledger_lines.id
	AND (ledger_lines.initial_balance IS NOT b.initial_balance OR ledger_lines.end_balance IS NOT b.end_balance)`

const clearOrphanLineBalancesSQL = `
UPDATE ledger_lines
SET initial_balance = NULL, end_balance = NULL
WHERE (initial_balance IS NOT NULL OR end_balance IS NOT NULL)
	AND NOT EXISTS (SELECT 1 FROM line_balances b WHERE b.line_id = ledger_lines.id)`

// stage runs one maintenance stage in its own immediate transaction.
func (s *Store) stage(ctx context.Context, msg string, fn func(tx *sql.Tx) (int64, error)) (int64, error) {
	var rows int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
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
func (s *Store) TruncateBalances(ctx context.Context) (int64, error) {
	return s.stage(ctx, "failed to truncate balances", func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `DELETE FROM line_balances`)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

// RecomputeAll recomputes the records of every posted line in one statement.
func (s *Store) RecomputeAll(ctx context.Context) (int64, error) {
	return s.stage(ctx, "failed to recompute all balances", func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, recomputeAllSQL)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

// SyncLineBalances copies records onto the line columns and clears columns of lines without a
// record.
func (s *Store) SyncLineBalances(ctx context.Context) (int64, error) {
	return s.stage(ctx, "failed to sync line balances", func(tx *sql.Tx) (int64, error) {
		copied, err := tx.ExecContext(ctx, syncLineBalancesSQL)
		if err != nil {
			return 0, err
		}
		cleared, err := tx.ExecContext(ctx, clearOrphanLineBalancesSQL)
		if err != nil {
			return 0, err
		}
		a, err := copied.RowsAffected()
		if err != nil {
			return 0, err
		}
		b, err := cleared.RowsAffected()
		if err != nil {
			return 0, err
		}
		return a + b, nil
	})
}

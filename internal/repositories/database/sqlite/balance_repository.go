package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
)

// runningSum mirrors the PostgreSQL window: cumulative net per partition in (date, id) order.
const runningSum = `SUM(l.debit - l.credit) OVER (
			PARTITION BY l.account_id, l.partner_key
			ORDER BY l.date, l.id
			ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)`

// The %s verb takes the VALUES rows of the targets CTE. SQLite needs the WHERE clause on the
// SELECT to parse the trailing ON CONFLICT as an upsert.
const recomputeTargetsSQL = `
WITH targets(account_id, partner_key, min_date) AS (VALUES %s),
seeds AS (
	SELECT t.account_id, t.partner_key, t.min_date,
		COALESCE((
			SELECT SUM(p.debit - p.credit)
			FROM ledger_lines p
			WHERE p.account_id = t.account_id
				AND p.partner_key = t.partner_key
				AND p.state = 'posted'
				AND p.date < t.min_date
		), 0) AS seed
	FROM targets t
),
computed AS (
	SELECT l.id AS line_id, l.currency_id, l.debit - l.credit AS net,
		s.seed + ` + runningSum + ` AS running
	FROM ledger_lines l
	JOIN seeds s ON s.account_id = l.account_id AND s.partner_key = l.partner_key
	WHERE l.state = 'posted' AND l.date >= s.min_date
)
INSERT INTO line_balances (line_id, initial_balance, end_balance, currency_id)
SELECT line_id, running - net, running, currency_id FROM computed WHERE true
ON CONFLICT (line_id) DO UPDATE
SET initial_balance = excluded.initial_balance,
	end_balance = excluded.end_balance,
	currency_id = excluded.currency_id`

const syncTargetsSQL = `
WITH targets(account_id, partner_key, min_date) AS (VALUES %s)
UPDATE ledger_lines
SET initial_balance = b.initial_balance, end_balance = b.end_balance
FROM line_balances b, targets t
WHERE b.line_id = ledger_lines.id
	AND ledger_lines.account_id = t.account_id
	AND ledger_lines.partner_key = t.partner_key
	AND ledger_lines.state = 'posted'
	AND ledger_lines.date >= t.min_date`

// GetBalance retrieves the stored record of a line. ErrNotFound means the line has no record.
func (s *Store) GetBalance(ctx context.Context, lineID int64) (*domain.BalanceRecord, error) {
	var initial, end int64
	rec := domain.BalanceRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT line_id, initial_balance, end_balance, currency_id FROM line_balances WHERE line_id = ?`, lineID).
		Scan(&rec.LineID, &initial, &end, &rec.CurrencyID)
	if err != nil {
		return nil, classifyError("failed to get balance of line "+strconv.FormatInt(lineID, 10), err)
	}
	rec.InitialBalance, rec.EndBalance = fromMicro(initial), fromMicro(end)
	return &rec, nil
}

// LockPartitions is a no-op: the immediate transaction already excludes every other writer.
func (t *ledgerTx) LockPartitions(context.Context, []domain.PartitionKey) error {
	return nil
}

func targetValues(targets []domain.RecomputeTarget) (string, []any) {
	rows := make([]string, len(targets))
	args := make([]any, 0, len(targets)*3)
	for i, target := range targets {
		rows[i] = "(?, ?, ?)"
		args = append(args, target.Partition.AccountID, target.Partition.PartnerKey, formatDate(domain.DateOnly(target.MinDate)))
	}
	return strings.Join(rows, ", "), args
}

// RecomputeTargets rewrites the posted tail of each target partition and returns the number of
// records written.
func (t *ledgerTx) RecomputeTargets(ctx context.Context, targets []domain.RecomputeTarget) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	values, args := targetValues(targets)
	res, err := t.tx.ExecContext(ctx, fmt.Sprintf(recomputeTargetsSQL, values), args...)
	if err != nil {
		return 0, classifyError("failed to recompute running balances", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classifyError("failed to count recomputed balances", err)
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(syncTargetsSQL, values), args...); err != nil {
		return 0, classifyError("failed to sync recomputed balances", err)
	}
	return n, nil
}

// UpsertBalances writes records and copies them onto the line columns.
func (t *ledgerTx) UpsertBalances(ctx context.Context, records []domain.BalanceRecord) error {
	for _, rec := range records {
		initial, err := toMicro(rec.InitialBalance)
		if err != nil {
			return fmt.Errorf("initial balance of line %d: %w", rec.LineID, err)
		}
		end, err := toMicro(rec.EndBalance)
		if err != nil {
			return fmt.Errorf("end balance of line %d: %w", rec.LineID, err)
		}
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO line_balances (line_id, initial_balance, end_balance, currency_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (line_id) DO UPDATE
			SET initial_balance = excluded.initial_balance,
				end_balance = excluded.end_balance,
				currency_id = excluded.currency_id`, rec.LineID, initial, end, rec.CurrencyID)
		if err != nil {
			return classifyError(fmt.Sprintf("failed to upsert balance of line %d", rec.LineID), err)
		}
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE ledger_lines SET initial_balance = ?, end_balance = ? WHERE id = ?`, initial, end, rec.LineID); err != nil {
			return classifyError(fmt.Sprintf("failed to sync balance of line %d", rec.LineID), err)
		}
	}
	return nil
}

// DeleteBalances removes the records of lines and clears their balance columns.
func (t *ledgerTx) DeleteBalances(ctx context.Context, lineIDs []int64) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	in := placeholders(len(lineIDs))
	res, err := t.tx.ExecContext(ctx, `DELETE FROM line_balances WHERE line_id IN (`+in+`)`, int64Args(lineIDs)...)
	if err != nil {
		return 0, classifyError("failed to delete balances", err)
	}
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE ledger_lines SET initial_balance = NULL, end_balance = NULL
		WHERE id IN (`+in+`) AND (initial_balance IS NOT NULL OR end_balance IS NOT NULL)`, int64Args(lineIDs)...); err != nil {
		return 0, classifyError("failed to clear line balances", err)
	}
	return res.RowsAffected()
}

// FindPartitionLines reads every line of a partition regardless of state, in partition order.
func (t *ledgerTx) FindPartitionLines(ctx context.Context, key domain.PartitionKey) ([]domain.LedgerLine, error) {
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l
		WHERE l.account_id = ? AND l.partner_key = ?
		ORDER BY l.date, l.id`
	return queryLines(ctx, t.tx, query, key.AccountID, key.PartnerKey)
}

// FindBalances reads the stored records of lines, keyed by line id.
func (t *ledgerTx) FindBalances(ctx context.Context, lineIDs []int64) (map[int64]domain.BalanceRecord, error) {
	out := make(map[int64]domain.BalanceRecord, len(lineIDs))
	if len(lineIDs) == 0 {
		return out, nil
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT line_id, initial_balance, end_balance, currency_id
		FROM line_balances WHERE line_id IN (`+placeholders(len(lineIDs))+`)`, int64Args(lineIDs)...)
	if err != nil {
		return nil, classifyError("error querying balances", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning balance: %w", err)
		}
		out[rec.LineID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating balances", err)
	}
	return out, nil
}

func scanBalance(rows *sql.Rows) (domain.BalanceRecord, error) {
	var (
		rec          domain.BalanceRecord
		initial, end int64
	)
	if err := rows.Scan(&rec.LineID, &initial, &end, &rec.CurrencyID); err != nil {
		return rec, err
	}
	rec.InitialBalance, rec.EndBalance = fromMicro(initial), fromMicro(end)
	return rec, nil
}

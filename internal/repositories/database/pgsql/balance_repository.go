package pgsql

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/models"
	"github.com/SscSPs/ledger_balances/internal/utils/mapping"
)

// GetBalance retrieves the stored record of a line. ErrNotFound means the line has no record.
func (r *PgxLedgerRepository) GetBalance(ctx context.Context, lineID int64) (*domain.BalanceRecord, error) {
	query := `SELECT line_id, initial_balance, end_balance, currency_id FROM line_balances WHERE line_id = $1`
	var m models.LineBalance
	err := r.Pool.QueryRow(ctx, query, lineID).Scan(&m.LineID, &m.InitialBalance, &m.EndBalance, &m.CurrencyID)
	if err != nil {
		return nil, classifyError("failed to get balance of line "+strconv.FormatInt(lineID, 10), err)
	}
	rec := mapping.ToDomainBalanceRecord(m)
	return &rec, nil
}

// LockPartitions takes the shared reset lock and then one exclusive advisory lock per partition,
// in the order given. Callers pass sorted keys. Locks are released at commit or rollback.
func (t *pgxLedgerTx) LockPartitions(ctx context.Context, keys []domain.PartitionKey) error {
	batch := &pgx.Batch{}
	batch.Queue(lockResetSharedSQL, resetLockKey)
	for _, k := range keys {
		batch.Queue(lockPartitionSQL, partitionLockKeyPrefix+k.String())
	}
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return classifyError("failed to acquire partition locks", err)
		}
	}
	return classifyError("failed to close lock batch", results.Close())
}

// RecomputeTargets rewrites the posted tail of each target partition and returns the number of
// lines updated.
func (t *pgxLedgerTx) RecomputeTargets(ctx context.Context, targets []domain.RecomputeTarget) (int64, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	accounts := make([]int64, len(targets))
	partners := make([]int64, len(targets))
	dates := make([]time.Time, len(targets))
	for i, target := range targets {
		accounts[i] = target.Partition.AccountID
		partners[i] = target.Partition.PartnerKey
		dates[i] = domain.DateOnly(target.MinDate)
	}
	tag, err := t.tx.Exec(ctx, recomputeTargetsSQL, accounts, partners, dates)
	if err != nil {
		return 0, classifyError("failed to recompute running balances", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertBalances writes records and copies them onto the line columns.
func (t *pgxLedgerTx) UpsertBalances(ctx context.Context, records []domain.BalanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	upsert := `
		INSERT INTO line_balances (line_id, initial_balance, end_balance, currency_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (line_id) DO UPDATE
		SET initial_balance = EXCLUDED.initial_balance,
			end_balance = EXCLUDED.end_balance,
			currency_id = EXCLUDED.currency_id`
	sync := `UPDATE ledger_lines SET initial_balance = $2, end_balance = $3 WHERE id = $1`
	for _, rec := range records {
		m := mapping.ToModelLineBalance(rec)
		batch.Queue(upsert, m.LineID, m.InitialBalance, m.EndBalance, m.CurrencyID)
		batch.Queue(sync, m.LineID, m.InitialBalance, m.EndBalance)
	}
	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return classifyError(fmt.Sprintf("failed to upsert balance of line %d", records[i/2].LineID), err)
		}
	}
	return classifyError("failed to close upsert batch", results.Close())
}

// DeleteBalances removes the records of lines and clears their balance columns.
func (t *pgxLedgerTx) DeleteBalances(ctx context.Context, lineIDs []int64) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM line_balances WHERE line_id = ANY($1)`, lineIDs)
	if err != nil {
		return 0, classifyError("failed to delete balances", err)
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE ledger_lines SET initial_balance = NULL, end_balance = NULL
		WHERE id = ANY($1) AND (initial_balance IS NOT NULL OR end_balance IS NOT NULL)`, lineIDs)
	if err != nil {
		return 0, classifyError("failed to clear line balances", err)
	}
	return tag.RowsAffected(), nil
}

// FindPartitionLines reads every line of a partition regardless of state, in partition order.
func (t *pgxLedgerTx) FindPartitionLines(ctx context.Context, key domain.PartitionKey) ([]domain.LedgerLine, error) {
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l
		WHERE l.account_id = $1 AND l.partner_key = $2
		ORDER BY l.date, l.id`
	return queryLines(ctx, t.tx, query, key.AccountID, key.PartnerKey)
}

// FindBalances reads the stored records of lines, keyed by line id.
func (t *pgxLedgerTx) FindBalances(ctx context.Context, lineIDs []int64) (map[int64]domain.BalanceRecord, error) {
	out := make(map[int64]domain.BalanceRecord, len(lineIDs))
	if len(lineIDs) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx, `
		SELECT line_id, initial_balance, end_balance, currency_id
		FROM line_balances WHERE line_id = ANY($1)`, lineIDs)
	if err != nil {
		return nil, classifyError("error querying balances", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m models.LineBalance
		if err := rows.Scan(&m.LineID, &m.InitialBalance, &m.EndBalance, &m.CurrencyID); err != nil {
			return nil, fmt.Errorf("error scanning balance: %w", err)
		}
		out[m.LineID] = mapping.ToDomainBalanceRecord(m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating balances", err)
	}
	return out, nil
}

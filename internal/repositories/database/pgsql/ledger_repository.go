package pgsql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/SscSPs/ledger_balances/internal/models"
	"github.com/SscSPs/ledger_balances/internal/utils/mapping"
	"github.com/SscSPs/ledger_balances/internal/utils/pagination"
)

const lineColumns = `l.id, l.account_id, l.partner_id, l.debit, l.credit, l.date, l.state, l.currency_id, l.ref,
	l.initial_balance, l.end_balance, l.created_at, l.updated_at`

// PgxLedgerRepository stores ledger lines and their running balances in PostgreSQL.
type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for ledger lines and balances.
func newPgxLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxLedgerRepository implements portsrepo.LedgerRepositoryFacade
var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

// pgxLedgerTx is the LedgerTx view over one open pgx transaction.
type pgxLedgerTx struct {
	tx pgx.Tx
}

var _ portsrepo.LedgerTx = (*pgxLedgerTx)(nil)

// RunInTx executes fn in a read-committed transaction. Writers serialize through the advisory
// locks taken by LockPartitions, so stronger isolation is not needed.
func (r *PgxLedgerRepository) RunInTx(ctx context.Context, fn portsrepo.TxFunc) error {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &pgxLedgerTx{tx: tx})
	})
	return classifyError("ledger transaction failed", err)
}

// queryer is satisfied by both the pool and an open transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLine(row pgx.Row) (models.LedgerLine, error) {
	var m models.LedgerLine
	var state string
	err := row.Scan(
		&m.LineID,
		&m.AccountID,
		&m.PartnerID,
		&m.Debit,
		&m.Credit,
		&m.Date,
		&state,
		&m.CurrencyID,
		&m.Ref,
		&m.InitialBalance,
		&m.EndBalance,
		&m.CreatedAt,
		&m.LastUpdatedAt,
	)
	m.State = models.LineState(state)
	return m, err
}

func queryLines(ctx context.Context, q queryer, query string, args ...any) ([]domain.LedgerLine, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError("error querying ledger lines", err)
	}
	defer rows.Close()

	lines := []models.LedgerLine{}
	for rows.Next() {
		m, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning ledger line: %w", err)
		}
		lines = append(lines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating ledger lines", err)
	}
	return mapping.ToDomainLedgerLineSlice(lines), nil
}

// FindLineByID retrieves a single line.
func (r *PgxLedgerRepository) FindLineByID(ctx context.Context, lineID int64) (*domain.LedgerLine, error) {
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l WHERE l.id = $1`
	m, err := scanLine(r.Pool.QueryRow(ctx, query, lineID))
	if err != nil {
		return nil, classifyError("failed to find ledger line "+strconv.FormatInt(lineID, 10), err)
	}
	line := mapping.ToDomainLedgerLine(m)
	return &line, nil
}

// ListLines retrieves lines matching pred in (date, id) order using token-based pagination.
func (r *PgxLedgerRepository) ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error) {
	where, args, err := filter.Compile(pred, filter.Postgres, "l", 0)
	if err != nil {
		return nil, nil, err
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + lineColumns + ` FROM ledger_lines l WHERE (` + where + `)`)
	if nextToken != nil && *nextToken != "" {
		lastDate, lastID, decodeErr := pagination.DecodeToken(*nextToken)
		if decodeErr != nil {
			return nil, nil, apperrors.NewAppError(400, "invalid nextToken", fmt.Errorf("%w: %v", apperrors.ErrValidation, decodeErr))
		}
		args = append(args, lastDate, lastID)
		sb.WriteString(fmt.Sprintf(" AND (l.date, l.id) > ($%d, $%d)", len(args)-1, len(args)))
	}
	// Fetch one extra row to know whether another page exists.
	args = append(args, limit+1)
	sb.WriteString(fmt.Sprintf(" ORDER BY l.date, l.id LIMIT $%d", len(args)))

	lines, err := queryLines(ctx, r.Pool, sb.String(), args...)
	if err != nil {
		return nil, nil, err
	}

	var nextTokenVal *string
	if len(lines) > limit {
		lines = lines[:limit]
		last := lines[len(lines)-1]
		token := pagination.EncodeToken(last.Date, last.LineID)
		nextTokenVal = &token
	}
	return lines, nextTokenVal, nil
}

// InsertLines inserts lines in one batch and returns them with their generated ids.
func (t *pgxLedgerTx) InsertLines(ctx context.Context, lines []domain.LedgerLine) ([]domain.LedgerLine, error) {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO ledger_lines (account_id, partner_id, debit, credit, date, state, currency_id, ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	for _, l := range lines {
		m := mapping.ToModelLedgerLine(l)
		batch.Queue(query, m.AccountID, m.PartnerID, m.Debit, m.Credit, m.Date, string(m.State), m.CurrencyID, m.Ref)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	out := make([]domain.LedgerLine, len(lines))
	for i, l := range lines {
		if err := results.QueryRow().Scan(&l.LineID, &l.CreatedAt, &l.LastUpdatedAt); err != nil {
			return nil, classifyError(fmt.Sprintf("failed to insert ledger line %d of batch", i), err)
		}
		l.Date = domain.DateOnly(l.Date)
		l.InitialBalance, l.EndBalance = nil, nil
		out[i] = l
	}
	if err := results.Close(); err != nil {
		return nil, classifyError("failed to close insert batch", err)
	}
	return out, nil
}

// FindLines reads lines by id without locking.
func (t *pgxLedgerTx) FindLines(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error) {
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l WHERE l.id = ANY($1) ORDER BY l.id`
	return queryLines(ctx, t.tx, query, lineIDs)
}

// FindLinesForUpdate reads and row-locks lines by id, locking in id order.
func (t *pgxLedgerTx) FindLinesForUpdate(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error) {
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l WHERE l.id = ANY($1) ORDER BY l.id FOR UPDATE`
	return queryLines(ctx, t.tx, query, lineIDs)
}

// UpdateLines overwrites the mutable columns of each line. Balance columns are left to the
// recompute.
func (t *pgxLedgerTx) UpdateLines(ctx context.Context, lines []domain.LedgerLine) error {
	batch := &pgx.Batch{}
	query := `
		UPDATE ledger_lines
		SET account_id = $2, partner_id = $3, debit = $4, credit = $5, date = $6, state = $7,
			currency_id = $8, ref = $9, updated_at = now()
		WHERE id = $1`
	for _, l := range lines {
		m := mapping.ToModelLedgerLine(l)
		batch.Queue(query, m.LineID, m.AccountID, m.PartnerID, m.Debit, m.Credit, m.Date, string(m.State), m.CurrencyID, m.Ref)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for _, l := range lines {
		tag, err := results.Exec()
		if err != nil {
			return classifyError("failed to update ledger line "+strconv.FormatInt(l.LineID, 10), err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: ledger line %d", apperrors.ErrNotFound, l.LineID)
		}
	}
	return classifyError("failed to close update batch", results.Close())
}

// DeleteLines deletes lines by id.
func (t *pgxLedgerTx) DeleteLines(ctx context.Context, lineIDs []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ledger_lines WHERE id = ANY($1)`, lineIDs)
	if err != nil {
		return 0, classifyError("failed to delete ledger lines", err)
	}
	return tag.RowsAffected(), nil
}

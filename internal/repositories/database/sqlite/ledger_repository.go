package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/SscSPs/ledger_balances/internal/utils/pagination"
)

const lineColumns = `l.id, l.account_id, l.partner_id, l.debit, l.credit, l.date, l.state, l.currency_id, l.ref,
	l.initial_balance, l.end_balance, l.created_at, l.updated_at`

// Ensure Store implements portsrepo.LedgerRepositoryFacade
var _ portsrepo.LedgerRepositoryFacade = (*Store)(nil)

// ledgerTx is the LedgerTx view over one open SQLite transaction.
type ledgerTx struct {
	tx *sql.Tx
}

var _ portsrepo.LedgerTx = (*ledgerTx)(nil)

// RunInTx executes fn in an immediate transaction.
func (s *Store) RunInTx(ctx context.Context, fn portsrepo.TxFunc) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
	return classifyError("ledger transaction failed", err)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (domain.LedgerLine, error) {
	var (
		l                    domain.LedgerLine
		partnerID            sql.NullInt64
		debit, credit        int64
		date, state          string
		initial, end         sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(&l.LineID, &l.AccountID, &partnerID, &debit, &credit, &date, &state,
		&l.CurrencyID, &l.Ref, &initial, &end, &createdAt, &updatedAt); err != nil {
		return l, err
	}
	if partnerID.Valid {
		p := partnerID.Int64
		l.PartnerID = &p
	}
	l.Debit, l.Credit = fromMicro(debit), fromMicro(credit)
	d, err := parseDate(date)
	if err != nil {
		return l, fmt.Errorf("line %d date: %w", l.LineID, err)
	}
	l.Date = d
	l.State = domain.LineState(state)
	l.InitialBalance, l.EndBalance = fromNullMicro(initial), fromNullMicro(end)
	l.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	l.LastUpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	return l, nil
}

func queryLines(ctx context.Context, q queryer, query string, args ...any) ([]domain.LedgerLine, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError("error querying ledger lines", err)
	}
	defer rows.Close()

	lines := []domain.LedgerLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning ledger line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating ledger lines", err)
	}
	return lines, nil
}

// FindLineByID retrieves a single line.
func (s *Store) FindLineByID(ctx context.Context, lineID int64) (*domain.LedgerLine, error) {
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l WHERE l.id = ?`
	l, err := scanLine(s.db.QueryRowContext(ctx, query, lineID))
	if err != nil {
		return nil, classifyError("failed to find ledger line "+strconv.FormatInt(lineID, 10), err)
	}
	return &l, nil
}

// ListLines retrieves lines matching pred in (date, id) order using token-based pagination.
func (s *Store) ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error) {
	where, args, err := filter.Compile(pred, dialect{}, "l", 0)
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
		sb.WriteString(` AND (l.date, l.id) > (?, ?)`)
		args = append(args, formatDate(lastDate), lastID)
	}
	sb.WriteString(` ORDER BY l.date, l.id LIMIT ?`)
	args = append(args, limit+1)

	lines, err := queryLines(ctx, s.db, sb.String(), args...)
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

// InsertLines inserts lines and returns them with their generated ids.
func (t *ledgerTx) InsertLines(ctx context.Context, lines []domain.LedgerLine) ([]domain.LedgerLine, error) {
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO ledger_lines (account_id, partner_id, debit, credit, date, state, currency_id, ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, classifyError("failed to prepare line insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	stamp := now.Format(timestampLayout)
	out := make([]domain.LedgerLine, len(lines))
	for i, l := range lines {
		var partner sql.NullInt64
		if l.PartnerID != nil {
			partner = sql.NullInt64{Int64: *l.PartnerID, Valid: true}
		}
		debit, credit, err := lineAmounts(l)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d of batch: %w", i, err)
		}
		res, err := stmt.ExecContext(ctx, l.AccountID, partner, debit, credit,
			formatDate(l.Date), string(l.State), l.CurrencyID, l.Ref, stamp, stamp)
		if err != nil {
			return nil, classifyError(fmt.Sprintf("failed to insert ledger line %d of batch", i), err)
		}
		if l.LineID, err = res.LastInsertId(); err != nil {
			return nil, classifyError("failed to read inserted line id", err)
		}
		l.Date = domain.DateOnly(l.Date)
		l.Debit, l.Credit = fromMicro(debit), fromMicro(credit)
		l.InitialBalance, l.EndBalance = nil, nil
		l.CreatedAt, l.LastUpdatedAt = now, now
		out[i] = l
	}
	return out, nil
}

// FindLines reads lines by id.
func (t *ledgerTx) FindLines(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error) {
	if len(lineIDs) == 0 {
		return []domain.LedgerLine{}, nil
	}
	query := `SELECT ` + lineColumns + ` FROM ledger_lines l WHERE l.id IN (` + placeholders(len(lineIDs)) + `) ORDER BY l.id`
	return queryLines(ctx, t.tx, query, int64Args(lineIDs)...)
}

// FindLinesForUpdate is FindLines: the immediate transaction already holds the write lock.
func (t *ledgerTx) FindLinesForUpdate(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error) {
	return t.FindLines(ctx, lineIDs)
}

// UpdateLines overwrites the mutable columns of each line.
func (t *ledgerTx) UpdateLines(ctx context.Context, lines []domain.LedgerLine) error {
	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE ledger_lines
		SET account_id = ?, partner_id = ?, debit = ?, credit = ?, date = ?, state = ?,
			currency_id = ?, ref = ?, updated_at = ?
		WHERE id = ?`)
	if err != nil {
		return classifyError("failed to prepare line update", err)
	}
	defer stmt.Close()

	stamp := time.Now().UTC().Format(timestampLayout)
	for _, l := range lines {
		var partner sql.NullInt64
		if l.PartnerID != nil {
			partner = sql.NullInt64{Int64: *l.PartnerID, Valid: true}
		}
		debit, credit, err := lineAmounts(l)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx, l.AccountID, partner, debit, credit,
			formatDate(l.Date), string(l.State), l.CurrencyID, l.Ref, stamp, l.LineID)
		if err != nil {
			return classifyError("failed to update ledger line "+strconv.FormatInt(l.LineID, 10), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: ledger line %d", apperrors.ErrNotFound, l.LineID)
		}
	}
	return nil
}

// DeleteLines deletes lines by id.
func (t *ledgerTx) DeleteLines(ctx context.Context, lineIDs []int64) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM ledger_lines WHERE id IN (`+placeholders(len(lineIDs))+`)`, int64Args(lineIDs)...)
	if err != nil {
		return 0, classifyError("failed to delete ledger lines", err)
	}
	return res.RowsAffected()
}

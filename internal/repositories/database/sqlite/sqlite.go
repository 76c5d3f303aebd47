/*
Package sqlite provides a SQLite-backed implementation of the ledger repository ports.

Amounts are stored as INTEGER micro-units (six decimal places) so that window sums stay exact,
and dates as TEXT in YYYY-MM-DD form so that they sort lexically. The schema is auto-migrated on
New().

CONCURRENCY:

	Every transaction is opened with BEGIN IMMEDIATE (_txlock=immediate), which takes the
	database write lock up front. Writers are therefore serialized by SQLite itself and the
	partition and reset locks of the PostgreSQL store are no-ops here.

USAGE:

	store, err := sqlite.New("./data/ledger_balances.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	repos := sqlite.NewRepositoryProvider(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// amountScale is the number of decimal places kept for amounts.
const amountScale = 6

const timestampLayout = time.RFC3339Nano

// Bounds of an amount once shifted to micro-units.
var (
	maxMicro = decimal.NewFromInt(math.MaxInt64)
	minMicro = decimal.NewFromInt(math.MinInt64)
)

// Store implements the ledger repository ports on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates its schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		partner_id INTEGER,
		partner_key INTEGER GENERATED ALWAYS AS (COALESCE(partner_id, 0)) STORED,
		debit INTEGER NOT NULL DEFAULT 0 CHECK (debit >= 0),
		credit INTEGER NOT NULL DEFAULT 0 CHECK (credit >= 0),
		date TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('draft', 'posted')),
		currency_id INTEGER NOT NULL,
		ref TEXT NOT NULL DEFAULT '',
		initial_balance INTEGER,
		end_balance INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path of the running-balance window
	CREATE INDEX IF NOT EXISTS idx_ledger_lines_partition_order
		ON ledger_lines(account_id, partner_key, date, id) WHERE state = 'posted';
	CREATE INDEX IF NOT EXISTS idx_ledger_lines_date_id
		ON ledger_lines(date, id);

	CREATE TABLE IF NOT EXISTS line_balances (
		line_id INTEGER PRIMARY KEY REFERENCES ledger_lines(id) ON DELETE CASCADE,
		initial_balance INTEGER NOT NULL,
		end_balance INTEGER NOT NULL,
		currency_id INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn in an immediate transaction, committing on success and rolling back on error
// or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError("failed to begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return classifyError("failed to commit transaction", err)
	}
	return nil
}

// classifyError maps driver errors onto the apperrors sentinels.
func classifyError(msg string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrConflict, sqliteErr)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrDuplicate, sqliteErr)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%s: %w: %v", msg, apperrors.ErrValidation, sqliteErr)
		}
	}
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrValidation) || errors.Is(err, apperrors.ErrInvalidFilter) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewAppError(500, msg, err)
}

// toMicro converts an amount to integer micro-units, rounding beyond the stored scale. Amounts
// outside the INTEGER range are rejected with apperrors.ErrValidation.
func toMicro(d decimal.Decimal) (int64, error) {
	shifted := d.Round(amountScale).Shift(amountScale)
	if shifted.GreaterThan(maxMicro) || shifted.LessThan(minMicro) {
		return 0, fmt.Errorf("%w: amount %s is out of the storable range", apperrors.ErrValidation, d.String())
	}
	return shifted.IntPart(), nil
}

// lineAmounts converts the debit and credit of l to micro-units.
func lineAmounts(l domain.LedgerLine) (debit, credit int64, err error) {
	if debit, err = toMicro(l.Debit); err != nil {
		return 0, 0, fmt.Errorf("debit of line %d: %w", l.LineID, err)
	}
	if credit, err = toMicro(l.Credit); err != nil {
		return 0, 0, fmt.Errorf("credit of line %d: %w", l.LineID, err)
	}
	return debit, credit, nil
}

func fromMicro(v int64) decimal.Decimal {
	return decimal.New(v, -amountScale)
}

func fromNullMicro(v sql.NullInt64) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := fromMicro(v.Int64)
	return &d
}

func formatDate(t time.Time) string {
	return t.Format(filter.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(filter.DateLayout, s)
}

// dialect binds filter values the way this schema stores them.
type dialect struct{}

func (dialect) Placeholder(int) string { return "?" }

func (dialect) Bind(_ filter.Field, value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return formatDate(v), nil
	case decimal.Decimal:
		return toMicro(v)
	default:
		return value, nil
	}
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineState mirrors the ledger_lines.state check constraint.
type LineState string

const (
	Draft  LineState = "draft"
	Posted LineState = "posted"
)

// LedgerLine is a row of ledger_lines.
type LedgerLine struct {
	LineID         int64               `db:"id"`
	AccountID      int64               `db:"account_id"`
	PartnerID      *int64              `db:"partner_id"` // Nullable; partner_key is derived from it
	Debit          decimal.Decimal     `db:"debit"`
	Credit         decimal.Decimal     `db:"credit"`
	Date           time.Time           `db:"date"`
	State          LineState           `db:"state"`
	CurrencyID     int64               `db:"currency_id"`
	Ref            string              `db:"ref"`
	InitialBalance decimal.NullDecimal `db:"initial_balance"` // Denormalized from line_balances
	EndBalance     decimal.NullDecimal `db:"end_balance"`
	AuditFields
}

// LineBalance is a row of line_balances.
type LineBalance struct {
	LineID         int64           `db:"line_id"`
	InitialBalance decimal.Decimal `db:"initial_balance"`
	EndBalance     decimal.Decimal `db:"end_balance"`
	CurrencyID     int64           `db:"currency_id"`
}

// AggregateRow is one row of an aggregate query. AccountID is NULL for counterparty groups.
type AggregateRow struct {
	AccountID  *int64          `db:"account_id"`
	PartnerKey int64           `db:"partner_key"`
	Opening    decimal.Decimal `db:"opening"`
	Closing    decimal.Decimal `db:"closing"`
	Movement   decimal.Decimal `db:"movement"`
}

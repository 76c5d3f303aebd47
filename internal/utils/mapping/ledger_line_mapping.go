package mapping

import (
	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/models"
)

// ToModelLedgerLine converts a domain LedgerLine to a model LedgerLine
func ToModelLedgerLine(d domain.LedgerLine) models.LedgerLine {
	return models.LedgerLine{
		LineID:         d.LineID,
		AccountID:      d.AccountID,
		PartnerID:      d.PartnerID,
		Debit:          d.Debit,
		Credit:         d.Credit,
		Date:           domain.DateOnly(d.Date),
		State:          models.LineState(d.State),
		CurrencyID:     d.CurrencyID,
		Ref:            d.Ref,
		InitialBalance: toNullDecimal(d.InitialBalance),
		EndBalance:     toNullDecimal(d.EndBalance),
		AuditFields:    models.AuditFields{CreatedAt: d.CreatedAt, LastUpdatedAt: d.LastUpdatedAt},
	}
}

// ToDomainLedgerLine converts a model LedgerLine to a domain LedgerLine
func ToDomainLedgerLine(m models.LedgerLine) domain.LedgerLine {
	return domain.LedgerLine{
		LineID:         m.LineID,
		AccountID:      m.AccountID,
		PartnerID:      m.PartnerID,
		Debit:          m.Debit,
		Credit:         m.Credit,
		Date:           domain.DateOnly(m.Date),
		State:          domain.LineState(m.State),
		CurrencyID:     m.CurrencyID,
		Ref:            m.Ref,
		InitialBalance: fromNullDecimal(m.InitialBalance),
		EndBalance:     fromNullDecimal(m.EndBalance),
		AuditFields:    domain.AuditFields{CreatedAt: m.CreatedAt, LastUpdatedAt: m.LastUpdatedAt},
	}
}

// ToDomainLedgerLineSlice converts a slice of model LedgerLines to domain LedgerLines
func ToDomainLedgerLineSlice(ms []models.LedgerLine) []domain.LedgerLine {
	ds := make([]domain.LedgerLine, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainLedgerLine(m)
	}
	return ds
}

// ToModelLineBalance converts a domain BalanceRecord to a model LineBalance
func ToModelLineBalance(d domain.BalanceRecord) models.LineBalance {
	return models.LineBalance{
		LineID:         d.LineID,
		InitialBalance: d.InitialBalance,
		EndBalance:     d.EndBalance,
		CurrencyID:     d.CurrencyID,
	}
}

// ToDomainBalanceRecord converts a model LineBalance to a domain BalanceRecord
func ToDomainBalanceRecord(m models.LineBalance) domain.BalanceRecord {
	return domain.BalanceRecord{
		LineID:         m.LineID,
		InitialBalance: m.InitialBalance,
		EndBalance:     m.EndBalance,
		CurrencyID:     m.CurrencyID,
	}
}

// ToDomainAggregateRow keeps only the requested fields of a model AggregateRow.
func ToDomainAggregateRow(m models.AggregateRow, req domain.AggregateRequest) domain.AggregateRow {
	row := domain.AggregateRow{AccountID: m.AccountID, PartnerKey: m.PartnerKey}
	if req.Wants(domain.FieldOpening) {
		v := m.Opening
		row.Opening = &v
	}
	if req.Wants(domain.FieldClosing) {
		v := m.Closing
		row.Closing = &v
	}
	if req.Wants(domain.FieldMovement) {
		v := m.Movement
		row.Movement = &v
	}
	return row
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

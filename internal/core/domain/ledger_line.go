package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineState is the lifecycle status of a ledger line.
type LineState string

const (
	Draft  LineState = "draft"
	Posted LineState = "posted"
)

// Valid reports whether s is a known state.
func (s LineState) Valid() bool {
	return s == Draft || s == Posted
}

// AuditFields holds the row timestamps maintained by storage.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// LedgerLine is a single debit/credit entry on an account, optionally against a counterparty.
type LedgerLine struct {
	LineID     int64           `json:"lineID"`    // Primary Key, totally ordered and stable
	AccountID  int64           `json:"accountID"` // Not Null
	PartnerID  *int64          `json:"partnerID"` // Nullable counterparty
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Date       time.Time       `json:"date"` // Transaction date (day precision, UTC)
	State      LineState       `json:"state"`
	CurrencyID int64           `json:"currencyID"`
	Ref        string          `json:"ref"`
	// Denormalized copy of the line's BalanceRecord; nil until computed.
	InitialBalance *decimal.Decimal `json:"initialBalance"`
	EndBalance     *decimal.Decimal `json:"endBalance"`
	AuditFields
}

// Net returns debit minus credit.
func (l LedgerLine) Net() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// IsPosted reports whether the line participates in balance computation.
func (l LedgerLine) IsPosted() bool {
	return l.State == Posted
}

// Partition returns the grouping key of the line.
func (l LedgerLine) Partition() PartitionKey {
	return PartitionKey{AccountID: l.AccountID, PartnerKey: NormalizePartner(l.PartnerID)}
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MaxLineAmount is the largest debit or credit a single line may carry. Both stores hold it with
// six decimals and leave room for running sums.
const MaxLineAmount = 1_000_000_000_000

// LineInput carries the attributes of a line to create.
type LineInput struct {
	AccountID  int64           `validate:"gt=0"`
	PartnerID  *int64          `validate:"omitempty,gte=0"`
	Debit      decimal.Decimal `validate:"gte=0,lte=1000000000000"`
	Credit     decimal.Decimal `validate:"gte=0,lte=1000000000000"`
	Date       time.Time       `validate:"required"`
	State      LineState       `validate:"omitempty,oneof=draft posted"`
	CurrencyID int64           `validate:"gt=0"`
	Ref        string          `validate:"max=256"`
}

// ToLine builds an unsaved ledger line from the input.
func (in LineInput) ToLine() LedgerLine {
	state := in.State
	if state == "" {
		state = Posted
	}
	return LedgerLine{
		AccountID:  in.AccountID,
		PartnerID:  in.PartnerID,
		Debit:      in.Debit,
		Credit:     in.Credit,
		Date:       DateOnly(in.Date),
		State:      state,
		CurrencyID: in.CurrencyID,
		Ref:        in.Ref,
	}
}

// InputOf returns the attributes of l as an input, used to validate post-images of updates.
func InputOf(l LedgerLine) LineInput {
	return LineInput{
		AccountID:  l.AccountID,
		PartnerID:  l.PartnerID,
		Debit:      l.Debit,
		Credit:     l.Credit,
		Date:       l.Date,
		State:      l.State,
		CurrencyID: l.CurrencyID,
		Ref:        l.Ref,
	}
}

// LineUpdate is a partial update of an existing line. Nil fields are left unchanged.
type LineUpdate struct {
	LineID       int64
	AccountID    *int64
	PartnerID    *int64
	ClearPartner bool // sets PartnerID to NULL; takes precedence over PartnerID
	Debit        *decimal.Decimal
	Credit       *decimal.Decimal
	Date         *time.Time
	State        *LineState
	CurrencyID   *int64
	Ref          *string
}

// Apply returns a copy of l with the update applied.
func (u LineUpdate) Apply(l LedgerLine) LedgerLine {
	if u.AccountID != nil {
		l.AccountID = *u.AccountID
	}
	if u.ClearPartner {
		l.PartnerID = nil
	} else if u.PartnerID != nil {
		p := *u.PartnerID
		l.PartnerID = &p
	}
	if u.Debit != nil {
		l.Debit = *u.Debit
	}
	if u.Credit != nil {
		l.Credit = *u.Credit
	}
	if u.Date != nil {
		l.Date = DateOnly(*u.Date)
	}
	if u.State != nil {
		l.State = *u.State
	}
	if u.CurrencyID != nil {
		l.CurrencyID = *u.CurrencyID
	}
	if u.Ref != nil {
		l.Ref = *u.Ref
	}
	return l
}

// AffectsBalances reports whether applying the update can change any running balance,
// i.e. it touches the partition, ordering, amount, status or currency of the line.
func (u LineUpdate) AffectsBalances() bool {
	return u.AccountID != nil || u.PartnerID != nil || u.ClearPartner || u.Debit != nil ||
		u.Credit != nil || u.Date != nil || u.State != nil || u.CurrencyID != nil
}

// MutationOptions are explicit per-call switches for ledger mutations.
type MutationOptions struct {
	// SkipRecompute leaves balances untouched; used for bulk loads followed by a full reset.
	SkipRecompute bool
}

// RecomputeStats summarizes the balance work done by one mutation.
type RecomputeStats struct {
	Partitions int   `json:"partitions"` // partitions whose tail was recomputed
	Rows       int64 `json:"rows"`       // balance records written
	Cleared    int64 `json:"cleared"`    // records removed for lines that are no longer posted
}

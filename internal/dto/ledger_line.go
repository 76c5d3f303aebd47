package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// CreateLineRequest defines the structure for one line of a create request.
type CreateLineRequest struct {
	AccountID  int64           `json:"accountID" binding:"required,gt=0"`
	PartnerID  *int64          `json:"partnerID,omitempty"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Date       string          `json:"date" binding:"required"` // YYYY-MM-DD
	State      string          `json:"state,omitempty" binding:"omitempty,oneof=draft posted"`
	CurrencyID int64           `json:"currencyID" binding:"required,gt=0"`
	Ref        string          `json:"ref,omitempty" binding:"max=256"`
}

// CreateLinesRequest defines the body of POST /lines.
type CreateLinesRequest struct {
	Lines         []CreateLineRequest `json:"lines" binding:"required,min=1,dive"`
	SkipRecompute bool                `json:"skipRecompute,omitempty"`
}

// UpdateLineRequest is a partial update; omitted fields are left unchanged.
type UpdateLineRequest struct {
	LineID       int64            `json:"lineID" binding:"required,gt=0"`
	AccountID    *int64           `json:"accountID,omitempty"`
	PartnerID    *int64           `json:"partnerID,omitempty"`
	ClearPartner bool             `json:"clearPartner,omitempty"`
	Debit        *decimal.Decimal `json:"debit,omitempty"`
	Credit       *decimal.Decimal `json:"credit,omitempty"`
	Date         *string          `json:"date,omitempty"`
	State        *string          `json:"state,omitempty" binding:"omitempty,oneof=draft posted"`
	CurrencyID   *int64           `json:"currencyID,omitempty"`
	Ref          *string          `json:"ref,omitempty"`
}

// UpdateLinesRequest defines the body of PATCH /lines.
type UpdateLinesRequest struct {
	Updates       []UpdateLineRequest `json:"updates" binding:"required,min=1,dive"`
	SkipRecompute bool                `json:"skipRecompute,omitempty"`
}

// DeleteLinesRequest defines the body of DELETE /lines.
type DeleteLinesRequest struct {
	IDs           []int64 `json:"ids" binding:"required,min=1"`
	SkipRecompute bool    `json:"skipRecompute,omitempty"`
}

// RecomputeLinesRequest defines the body of POST /lines/recompute.
type RecomputeLinesRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// LineResponse defines the standard API response for a ledger line.
type LineResponse struct {
	LineID         int64            `json:"lineID"`
	AccountID      int64            `json:"accountID"`
	PartnerID      *int64           `json:"partnerID"`
	Debit          decimal.Decimal  `json:"debit"`
	Credit         decimal.Decimal  `json:"credit"`
	Date           string           `json:"date"`
	State          string           `json:"state"`
	CurrencyID     int64            `json:"currencyID"`
	Ref            string           `json:"ref"`
	InitialBalance *decimal.Decimal `json:"initialBalance"`
	EndBalance     *decimal.Decimal `json:"endBalance"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastUpdatedAt  time.Time        `json:"lastUpdatedAt"`
}

// ListLinesResponse wraps a page of lines.
type ListLinesResponse struct {
	Lines     []LineResponse `json:"lines"`
	NextToken *string        `json:"nextToken,omitempty"`
}

// DeleteLinesResponse reports how many lines were removed.
type DeleteLinesResponse struct {
	Deleted int64 `json:"deleted"`
}

// BalanceResponse is the balance read model of one line.
type BalanceResponse struct {
	LineID         int64           `json:"lineID"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	EndBalance     decimal.Decimal `json:"endBalance"`
	Computed       bool            `json:"computed"`
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(filter.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD), got %q", apperrors.ErrValidation, field, s)
	}
	return t, nil
}

// ToLineInput converts the request into a domain input.
func (r CreateLineRequest) ToLineInput() (domain.LineInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return domain.LineInput{}, err
	}
	return domain.LineInput{
		AccountID:  r.AccountID,
		PartnerID:  r.PartnerID,
		Debit:      r.Debit,
		Credit:     r.Credit,
		Date:       date,
		State:      domain.LineState(r.State),
		CurrencyID: r.CurrencyID,
		Ref:        r.Ref,
	}, nil
}

// ToLineInputs converts every line of the request.
func (r CreateLinesRequest) ToLineInputs() ([]domain.LineInput, error) {
	inputs := make([]domain.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		in, err := l.ToLineInput()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		inputs[i] = in
	}
	return inputs, nil
}

// ToLineUpdate converts the request into a domain update.
func (r UpdateLineRequest) ToLineUpdate() (domain.LineUpdate, error) {
	u := domain.LineUpdate{
		LineID:       r.LineID,
		AccountID:    r.AccountID,
		PartnerID:    r.PartnerID,
		ClearPartner: r.ClearPartner,
		Debit:        r.Debit,
		Credit:       r.Credit,
		CurrencyID:   r.CurrencyID,
		Ref:          r.Ref,
	}
	if r.Date != nil {
		date, err := parseDate("date", *r.Date)
		if err != nil {
			return domain.LineUpdate{}, err
		}
		u.Date = &date
	}
	if r.State != nil {
		state := domain.LineState(*r.State)
		u.State = &state
	}
	return u, nil
}

// ToLineUpdates converts every update of the request.
func (r UpdateLinesRequest) ToLineUpdates() ([]domain.LineUpdate, error) {
	updates := make([]domain.LineUpdate, len(r.Updates))
	for i, u := range r.Updates {
		lu, err := u.ToLineUpdate()
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		updates[i] = lu
	}
	return updates, nil
}

// ToLineResponse converts a domain line into its API shape.
func ToLineResponse(l domain.LedgerLine) LineResponse {
	return LineResponse{
		LineID:         l.LineID,
		AccountID:      l.AccountID,
		PartnerID:      l.PartnerID,
		Debit:          l.Debit,
		Credit:         l.Credit,
		Date:           l.Date.Format(filter.DateLayout),
		State:          string(l.State),
		CurrencyID:     l.CurrencyID,
		Ref:            l.Ref,
		InitialBalance: l.InitialBalance,
		EndBalance:     l.EndBalance,
		CreatedAt:      l.CreatedAt,
		LastUpdatedAt:  l.LastUpdatedAt,
	}
}

// ToLineResponses converts a slice of domain lines.
func ToLineResponses(lines []domain.LedgerLine) []LineResponse {
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = ToLineResponse(l)
	}
	return out
}

// ToBalanceResponse converts a balance view.
func ToBalanceResponse(v domain.BalanceView) BalanceResponse {
	return BalanceResponse{
		LineID:         v.LineID,
		InitialBalance: v.InitialBalance,
		EndBalance:     v.EndBalance,
		Computed:       v.Computed,
	}
}

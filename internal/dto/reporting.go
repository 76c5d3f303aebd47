package dto

import (
	"github.com/shopspring/decimal"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// AggregateRequest defines the body of POST /reports/aggregate. A missing filter selects every
// posted line.
type AggregateRequest struct {
	Filter      *filter.Node `json:"filter,omitempty"`
	Granularity string       `json:"granularity,omitempty"`
	Fields      []string     `json:"fields,omitempty"`
}

// BalanceTotalRequest defines the body of POST /reports/opening and /reports/closing.
type BalanceTotalRequest struct {
	Filter      *filter.Node `json:"filter,omitempty"`
	Granularity string       `json:"granularity,omitempty"`
}

// AggregateRowResponse is one group of an aggregate report.
type AggregateRowResponse struct {
	AccountID  *int64           `json:"accountID,omitempty"`
	PartnerKey int64            `json:"partnerKey"`
	Opening    *decimal.Decimal `json:"opening,omitempty"`
	Closing    *decimal.Decimal `json:"closing,omitempty"`
	Movement   *decimal.Decimal `json:"movement,omitempty"`
}

// AggregateResponse wraps the groups of an aggregate report.
type AggregateResponse struct {
	Granularity string                 `json:"granularity"`
	Rows        []AggregateRowResponse `json:"rows"`
}

// BalanceTotalResponse carries a single opening or closing amount.
type BalanceTotalResponse struct {
	Granularity string          `json:"granularity"`
	Amount      decimal.Decimal `json:"amount"`
}

// predicateOf decodes the optional filter node.
func predicateOf(n *filter.Node) (filter.Predicate, error) {
	if n == nil {
		return filter.All(), nil
	}
	return n.Predicate()
}

// ToDomain converts the request into a domain aggregate request. Granularity and field names
// are validated by the reporting service.
func (r AggregateRequest) ToDomain() (domain.AggregateRequest, error) {
	pred, err := predicateOf(r.Filter)
	if err != nil {
		return domain.AggregateRequest{}, err
	}
	g := domain.Granularity(r.Granularity)
	if g == "" {
		g = domain.ByAccountAndCounterparty
	}
	fields := make([]domain.AggregateField, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = domain.AggregateField(f)
	}
	return domain.AggregateRequest{
		Filter:      pred,
		Granularity: g,
		Fields:      fields,
	}, nil
}

// ToDomain returns the predicate and granularity of the request. An empty granularity selects
// one group per (account, counterparty).
func (r BalanceTotalRequest) ToDomain() (filter.Predicate, domain.Granularity, error) {
	pred, err := predicateOf(r.Filter)
	if err != nil {
		return nil, "", err
	}
	g := domain.Granularity(r.Granularity)
	if g == "" {
		g = domain.ByAccountAndCounterparty
	}
	return pred, g, nil
}

// ToAggregateResponse converts domain rows into the API shape.
func ToAggregateResponse(g domain.Granularity, rows []domain.AggregateRow) AggregateResponse {
	out := AggregateResponse{Granularity: string(g), Rows: make([]AggregateRowResponse, len(rows))}
	for i, r := range rows {
		out.Rows[i] = AggregateRowResponse{
			AccountID:  r.AccountID,
			PartnerKey: r.PartnerKey,
			Opening:    r.Opening,
			Closing:    r.Closing,
			Movement:   r.Movement,
		}
	}
	return out
}

package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/shopspring/decimal"
)

// Granularity selects the grouping of aggregate rows.
type Granularity string

const (
	// ByAccountAndCounterparty yields one row per (account, counterparty) partition.
	ByAccountAndCounterparty Granularity = "account_and_counterparty"
	// ByCounterparty yields one row per counterparty, summed across accounts.
	ByCounterparty Granularity = "counterparty"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	return g == ByAccountAndCounterparty || g == ByCounterparty
}

// AggregateField is a value computed per aggregate row.
type AggregateField string

const (
	FieldOpening  AggregateField = "opening"  // initial balance of the first filtered line per partition
	FieldClosing  AggregateField = "closing"  // end balance of the last filtered line per partition
	FieldMovement AggregateField = "movement" // sum of net amounts of the filtered lines
)

// AggregateRequest describes one reporting aggregation.
type AggregateRequest struct {
	Filter      filter.Predicate
	Granularity Granularity
	Fields      []AggregateField
}

// Validate checks granularity and field names, defaulting empty values.
func (r *AggregateRequest) Validate() error {
	if r.Granularity == "" {
		r.Granularity = ByAccountAndCounterparty
	}
	if !r.Granularity.Valid() {
		return fmt.Errorf("%w: unknown granularity %q", apperrors.ErrValidation, r.Granularity)
	}
	if len(r.Fields) == 0 {
		r.Fields = []AggregateField{FieldOpening, FieldClosing}
	}
	for _, f := range r.Fields {
		switch f {
		case FieldOpening, FieldClosing, FieldMovement:
		default:
			return fmt.Errorf("%w: unknown aggregate field %q", apperrors.ErrValidation, f)
		}
	}
	return nil
}

// Wants reports whether field was requested.
func (r AggregateRequest) Wants(field AggregateField) bool {
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// AggregateRow is one group of an aggregate query. AccountID is nil for ByCounterparty rows.
// Fields that were not requested are nil.
type AggregateRow struct {
	AccountID  *int64           `json:"accountID,omitempty"`
	PartnerKey int64            `json:"partnerKey"`
	Opening    *decimal.Decimal `json:"opening,omitempty"`
	Closing    *decimal.Decimal `json:"closing,omitempty"`
	Movement   *decimal.Decimal `json:"movement,omitempty"`
}

// ResetStage names a step of the full recompute.
type ResetStage string

const (
	StageTruncate  ResetStage = "truncate"
	StageRecompute ResetStage = "recompute"
	StageSync      ResetStage = "sync"
)

// ResetStages is the mandatory stage order.
var ResetStages = []ResetStage{StageTruncate, StageRecompute, StageSync}

// StageResult is the outcome of one reset stage.
type StageResult struct {
	Stage    ResetStage    `json:"stage"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ResetReport summarizes a full recompute. OK is false if any stage failed; stages after the
// failing one are absent.
type ResetReport struct {
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Stages     []StageResult `json:"stages"`
	OK         bool          `json:"ok"`
}

// FailedStage returns the stage that failed, if any.
func (r ResetReport) FailedStage() (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Error != "" {
			return s, true
		}
	}
	return StageResult{}, false
}

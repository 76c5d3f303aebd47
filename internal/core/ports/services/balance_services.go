package services

import (
	"context"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
)

// BalanceReaderSvc is the balance read interface for UI and reporting collaborators.
type BalanceReaderSvc interface {
	// GetBalance returns the balances of a line; Computed is false when no record exists.
	// Returns apperrors.ErrNotFound if the line itself does not exist.
	GetBalance(ctx context.Context, lineID int64) (*domain.BalanceView, error)
}

// BalanceAdminSvc defines administrative balance operations.
type BalanceAdminSvc interface {
	// ResetAndRecompute rebuilds every balance in stages. Stage errors are logged and reported,
	// never returned.
	ResetAndRecompute(ctx context.Context) (*domain.ResetReport, bool)

	// VerifyPartition checks stored balances of one partition against a fresh computation and,
	// when repair is set, rewrites the drifted records.
	VerifyPartition(ctx context.Context, key domain.PartitionKey, repair bool) (*domain.VerifyReport, error)
}

// BalanceSvcFacade combines all balance service interfaces.
type BalanceSvcFacade interface {
	BalanceReaderSvc
	BalanceAdminSvc
}

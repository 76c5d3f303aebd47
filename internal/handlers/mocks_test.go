package handlers_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetLine(ctx context.Context, lineID int64) (*domain.LedgerLine, error) {
	args := m.Called(ctx, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerService) ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error) {
	args := m.Called(ctx, pred, limit, nextToken)
	var next *string
	if args.Get(1) != nil {
		next = args.Get(1).(*string)
	}
	if args.Get(0) == nil {
		return nil, next, args.Error(2)
	}
	return args.Get(0).([]domain.LedgerLine), next, args.Error(2)
}

func (m *MockLedgerService) CreateLines(ctx context.Context, inputs []domain.LineInput, opts domain.MutationOptions) ([]domain.LedgerLine, error) {
	args := m.Called(ctx, inputs, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerService) UpdateLines(ctx context.Context, updates []domain.LineUpdate, opts domain.MutationOptions) ([]domain.LedgerLine, error) {
	args := m.Called(ctx, updates, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerService) DeleteLines(ctx context.Context, lineIDs []int64, opts domain.MutationOptions) (int64, error) {
	args := m.Called(ctx, lineIDs, opts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) RecomputeLines(ctx context.Context, lineIDs []int64) (*domain.RecomputeStats, error) {
	args := m.Called(ctx, lineIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecomputeStats), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Mock BalanceService ---
type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GetBalance(ctx context.Context, lineID int64) (*domain.BalanceView, error) {
	args := m.Called(ctx, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceView), args.Error(1)
}

func (m *MockBalanceService) ResetAndRecompute(ctx context.Context) (*domain.ResetReport, bool) {
	args := m.Called(ctx)
	return args.Get(0).(*domain.ResetReport), args.Bool(1)
}

func (m *MockBalanceService) VerifyPartition(ctx context.Context, key domain.PartitionKey, repair bool) (*domain.VerifyReport, error) {
	args := m.Called(ctx, key, repair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerifyReport), args.Error(1)
}

var _ portssvc.BalanceSvcFacade = (*MockBalanceService)(nil)

// --- Mock ReportingService ---
type MockReportingService struct {
	mock.Mock
}

func (m *MockReportingService) AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AggregateRow), args.Error(1)
}

func (m *MockReportingService) OpeningBalance(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error) {
	args := m.Called(ctx, pred, granularity)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockReportingService) ClosingBalance(ctx context.Context, pred filter.Predicate, granularity domain.Granularity) (decimal.Decimal, error) {
	args := m.Called(ctx, pred, granularity)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

var _ portssvc.ReportingSvcFacade = (*MockReportingService)(nil)

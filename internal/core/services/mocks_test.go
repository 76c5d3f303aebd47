package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	"github.com/SscSPs/ledger_balances/internal/filter"
)

// --- Mock LedgerTx ---
type MockLedgerTx struct {
	mock.Mock
}

var _ portsrepo.LedgerTx = (*MockLedgerTx)(nil)

func (m *MockLedgerTx) InsertLines(ctx context.Context, lines []domain.LedgerLine) ([]domain.LedgerLine, error) {
	args := m.Called(ctx, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerTx) FindLines(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error) {
	args := m.Called(ctx, lineIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerTx) FindLinesForUpdate(ctx context.Context, lineIDs []int64) ([]domain.LedgerLine, error) {
	args := m.Called(ctx, lineIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerTx) UpdateLines(ctx context.Context, lines []domain.LedgerLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockLedgerTx) DeleteLines(ctx context.Context, lineIDs []int64) (int64, error) {
	args := m.Called(ctx, lineIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerTx) LockPartitions(ctx context.Context, keys []domain.PartitionKey) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockLedgerTx) RecomputeTargets(ctx context.Context, targets []domain.RecomputeTarget) (int64, error) {
	args := m.Called(ctx, targets)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerTx) UpsertBalances(ctx context.Context, records []domain.BalanceRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockLedgerTx) DeleteBalances(ctx context.Context, lineIDs []int64) (int64, error) {
	args := m.Called(ctx, lineIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerTx) FindPartitionLines(ctx context.Context, key domain.PartitionKey) ([]domain.LedgerLine, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerTx) FindBalances(ctx context.Context, lineIDs []int64) (map[int64]domain.BalanceRecord, error) {
	args := m.Called(ctx, lineIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]domain.BalanceRecord), args.Error(1)
}

// --- Mock LedgerRepository ---
// RunInTx hands the embedded Tx to the unit of work unless an error is configured.
type MockLedgerRepository struct {
	mock.Mock
	Tx *MockLedgerTx
}

var _ portsrepo.LedgerRepositoryFacade = (*MockLedgerRepository)(nil)

func (m *MockLedgerRepository) RunInTx(ctx context.Context, fn portsrepo.TxFunc) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m.Tx)
}

func (m *MockLedgerRepository) FindLineByID(ctx context.Context, lineID int64) (*domain.LedgerLine, error) {
	args := m.Called(ctx, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerLine), args.Error(1)
}

func (m *MockLedgerRepository) ListLines(ctx context.Context, pred filter.Predicate, limit int, nextToken *string) ([]domain.LedgerLine, *string, error) {
	args := m.Called(ctx, pred, limit, nextToken)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var returnedNextToken *string
	if args.Get(1) != nil {
		tokenVal := args.Get(1).(string)
		returnedNextToken = &tokenVal
	}
	return args.Get(0).([]domain.LedgerLine), returnedNextToken, args.Error(2)
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, lineID int64) (*domain.BalanceRecord, error) {
	args := m.Called(ctx, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceRecord), args.Error(1)
}

func (m *MockLedgerRepository) AggregateGroups(ctx context.Context, req domain.AggregateRequest) ([]domain.AggregateRow, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AggregateRow), args.Error(1)
}

func (m *MockLedgerRepository) TruncateBalances(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) RecomputeAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SyncLineBalances(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

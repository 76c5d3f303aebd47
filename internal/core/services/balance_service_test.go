package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/core/services"
)

type BalanceServiceTestSuite struct {
	suite.Suite
	mockRepo *MockLedgerRepository
	mockTx   *MockLedgerTx
	service  portssvc.BalanceSvcFacade
	ctx      context.Context
}

func (suite *BalanceServiceTestSuite) SetupTest() {
	suite.mockTx = new(MockLedgerTx)
	suite.mockRepo = &MockLedgerRepository{Tx: suite.mockTx}
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	suite.service = services.NewBalanceService(suite.mockRepo, services.WithBalanceClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	suite.ctx = context.Background()
}

func TestBalanceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BalanceServiceTestSuite))
}

func (suite *BalanceServiceTestSuite) TestGetBalance_Computed() {
	line := postedLine(1, 1, "2024-01-01", 100)
	suite.mockRepo.On("FindLineByID", suite.ctx, int64(1)).Return(&line, nil).Once()
	suite.mockRepo.On("GetBalance", suite.ctx, int64(1)).Return(&domain.BalanceRecord{LineID: 1, InitialBalance: decimal.Zero, EndBalance: dec(100)}, nil).Once()

	view, err := suite.service.GetBalance(suite.ctx, 1)
	suite.Require().NoError(err)
	suite.True(view.Computed)
	suite.True(view.EndBalance.Equal(dec(100)))
}

func (suite *BalanceServiceTestSuite) TestGetBalance_NotComputedIsDistinguishable() {
	line := postedLine(2, 1, "2024-01-01", 0)
	suite.mockRepo.On("FindLineByID", suite.ctx, int64(2)).Return(&line, nil).Once()
	suite.mockRepo.On("GetBalance", suite.ctx, int64(2)).Return(nil, apperrors.ErrNotFound).Once()

	view, err := suite.service.GetBalance(suite.ctx, 2)
	suite.Require().NoError(err)
	suite.False(view.Computed)
	suite.True(view.InitialBalance.IsZero())
	suite.True(view.EndBalance.IsZero())
}

func (suite *BalanceServiceTestSuite) TestGetBalance_UnknownLine() {
	suite.mockRepo.On("FindLineByID", suite.ctx, int64(3)).Return(nil, apperrors.ErrNotFound).Once()

	_, err := suite.service.GetBalance(suite.ctx, 3)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockRepo.AssertNotCalled(suite.T(), "GetBalance", mock.Anything, mock.Anything)
}

func (suite *BalanceServiceTestSuite) TestResetAndRecompute_AllStages() {
	suite.mockRepo.On("TruncateBalances", suite.ctx).Return(int64(7), nil).Once()
	suite.mockRepo.On("RecomputeAll", suite.ctx).Return(int64(9), nil).Once()
	suite.mockRepo.On("SyncLineBalances", suite.ctx).Return(int64(12), nil).Once()

	report, ok := suite.service.ResetAndRecompute(suite.ctx)
	suite.True(ok)
	suite.True(report.OK)
	suite.Require().Len(report.Stages, 3)
	for i, stage := range domain.ResetStages {
		suite.Equal(stage, report.Stages[i].Stage)
		suite.Empty(report.Stages[i].Error)
	}
	suite.Equal(int64(9), report.Stages[1].Rows)
	suite.True(report.FinishedAt.After(report.StartedAt))
	_, failed := report.FailedStage()
	suite.False(failed)
}

func (suite *BalanceServiceTestSuite) TestResetAndRecompute_StageFailureStopsAndReports() {
	suite.mockRepo.On("TruncateBalances", suite.ctx).Return(int64(7), nil).Once()
	suite.mockRepo.On("RecomputeAll", suite.ctx).Return(int64(0), errors.New("canceling statement due to statement timeout")).Once()

	report, ok := suite.service.ResetAndRecompute(suite.ctx)
	suite.False(ok)
	suite.False(report.OK)
	suite.Require().Len(report.Stages, 2)
	stage, failed := report.FailedStage()
	suite.True(failed)
	suite.Equal(domain.StageRecompute, stage.Stage)
	suite.Contains(stage.Error, "statement timeout")
	suite.mockRepo.AssertNotCalled(suite.T(), "SyncLineBalances", mock.Anything)
}

func (suite *BalanceServiceTestSuite) TestVerifyPartition_RepairsDrift() {
	key := domain.PartitionKey{AccountID: 1}
	draft := postedLine(3, 1, "2024-01-03", 5)
	draft.State = domain.Draft
	lines := []domain.LedgerLine{postedLine(1, 1, "2024-01-01", 100), postedLine(2, 1, "2024-01-02", 10), draft}
	for i := range lines[:2] {
		initial, end := dec(int64(100*i)), dec(int64(100+10*i))
		lines[i].InitialBalance, lines[i].EndBalance = &initial, &end
	}
	stored := map[int64]domain.BalanceRecord{
		1: {LineID: 1, InitialBalance: decimal.Zero, EndBalance: dec(100), CurrencyID: 1},
		3: {LineID: 3, InitialBalance: decimal.Zero, EndBalance: dec(5), CurrencyID: 1},
	}

	suite.mockRepo.On("RunInTx", suite.ctx).Return(nil).Once()
	suite.mockTx.On("LockPartitions", suite.ctx, []domain.PartitionKey{key}).Return(nil).Once()
	suite.mockTx.On("FindPartitionLines", suite.ctx, key).Return(lines, nil).Once()
	suite.mockTx.On("FindBalances", suite.ctx, []int64{1, 2, 3}).Return(stored, nil).Once()
	suite.mockTx.On("UpsertBalances", suite.ctx, mock.MatchedBy(func(recs []domain.BalanceRecord) bool {
		return len(recs) == 1 && recs[0].LineID == 2 &&
			recs[0].InitialBalance.Equal(dec(100)) && recs[0].EndBalance.Equal(dec(110))
	})).Return(nil).Once()
	suite.mockTx.On("DeleteBalances", suite.ctx, []int64{3}).Return(int64(1), nil).Once()

	report, err := suite.service.VerifyPartition(suite.ctx, key, true)
	suite.Require().NoError(err)
	suite.Equal(3, report.LinesChecked)
	suite.Len(report.Drifts, 2)
	suite.True(report.Repaired)
	suite.mockTx.AssertExpectations(suite.T())
}

func (suite *BalanceServiceTestSuite) TestVerifyPartition_ReportOnly() {
	key := domain.PartitionKey{AccountID: 4, PartnerKey: 2}
	lines := []domain.LedgerLine{postedLine(1, 4, "2024-01-01", 100)}
	lines[0].PartnerID = int64Ptr(2)

	suite.mockRepo.On("RunInTx", suite.ctx).Return(nil).Once()
	suite.mockTx.On("LockPartitions", suite.ctx, []domain.PartitionKey{key}).Return(nil).Once()
	suite.mockTx.On("FindPartitionLines", suite.ctx, key).Return(lines, nil).Once()
	suite.mockTx.On("FindBalances", suite.ctx, []int64{1}).Return(map[int64]domain.BalanceRecord{}, nil).Once()

	report, err := suite.service.VerifyPartition(suite.ctx, key, false)
	suite.Require().NoError(err)
	suite.Require().Len(report.Drifts, 1)
	suite.Equal(domain.DriftMissing, report.Drifts[0].Reason)
	suite.False(report.Repaired)
	suite.mockTx.AssertNotCalled(suite.T(), "UpsertBalances", mock.Anything, mock.Anything)
}

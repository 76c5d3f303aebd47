package pgsql

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/core/services"
	"github.com/SscSPs/ledger_balances/internal/filter"
	"github.com/SscSPs/ledger_balances/pkg/database"
)

// PGSQL_TEST_URL points at a scratch database. Its ledger tables are truncated before every test.
const testURLEnv = "PGSQL_TEST_URL"

const testMigrationsPath = "file://../../../../migrations"

func day(s string) time.Time {
	t, err := time.Parse(filter.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func int64Ptr(v int64) *int64 { return &v }

// signed builds a posted input whose net equals v.
func signed(account int64, partner *int64, date string, v int64) domain.LineInput {
	in := domain.LineInput{AccountID: account, PartnerID: partner, Date: day(date), CurrencyID: 1, State: domain.Posted}
	if v >= 0 {
		in.Debit, in.Credit = amount(v), decimal.Zero
	} else {
		in.Debit, in.Credit = decimal.Zero, amount(-v)
	}
	return in
}

type storedBalance struct {
	initial, end string
	currency     int64
}

type PgxLedgerIntegrationSuite struct {
	suite.Suite
	pool      *pgxpool.Pool
	ledger    portssvc.LedgerSvcFacade
	balances  portssvc.BalanceSvcFacade
	reporting portssvc.ReportingSvcFacade
	ctx       context.Context
}

func TestPgxLedgerIntegrationSuite(t *testing.T) {
	if os.Getenv(testURLEnv) == "" {
		t.Skipf("%s not set", testURLEnv)
	}
	suite.Run(t, new(PgxLedgerIntegrationSuite))
}

func (suite *PgxLedgerIntegrationSuite) SetupSuite() {
	url := os.Getenv(testURLEnv)
	suite.ctx = context.Background()
	suite.Require().NoError(database.RunMigrations(url, testMigrationsPath, slog.Default()))

	pool, err := database.NewPgxPool(suite.ctx, url, true)
	suite.Require().NoError(err)
	suite.pool = pool

	repos := NewRepositoryProvider(pool)
	suite.ledger = services.NewLedgerService(repos.LedgerRepo, services.WithRecomputeRetries(3, 10*time.Millisecond))
	suite.balances = services.NewBalanceService(repos.LedgerRepo)
	suite.reporting = services.NewReportingService(repos.LedgerRepo)
}

func (suite *PgxLedgerIntegrationSuite) TearDownSuite() {
	if suite.pool != nil {
		database.ClosePgxPool(suite.pool)
	}
}

func (suite *PgxLedgerIntegrationSuite) SetupTest() {
	_, err := suite.pool.Exec(suite.ctx, `TRUNCATE line_balances, ledger_lines RESTART IDENTITY`)
	suite.Require().NoError(err)
}

func (suite *PgxLedgerIntegrationSuite) create(inputs ...domain.LineInput) []domain.LedgerLine {
	lines, err := suite.ledger.CreateLines(suite.ctx, inputs, domain.MutationOptions{})
	suite.Require().NoError(err)
	suite.Require().Len(lines, len(inputs))
	return lines
}

func (suite *PgxLedgerIntegrationSuite) assertBalance(lineID int64, initial, end int64) {
	suite.T().Helper()
	view, err := suite.balances.GetBalance(suite.ctx, lineID)
	suite.Require().NoError(err)
	suite.True(view.Computed, "line %d has no balance", lineID)
	suite.True(view.InitialBalance.Equal(amount(initial)), "line %d initial: got %s want %d", lineID, view.InitialBalance, initial)
	suite.True(view.EndBalance.Equal(amount(end)), "line %d end: got %s want %d", lineID, view.EndBalance, end)

	line, err := suite.ledger.GetLine(suite.ctx, lineID)
	suite.Require().NoError(err)
	suite.Require().NotNil(line.InitialBalance, "line %d columns not synced", lineID)
	suite.True(line.InitialBalance.Equal(amount(initial)))
	suite.True(line.EndBalance.Equal(amount(end)))
}

// snapshot returns every stored balance record with amounts in canonical text form.
func (suite *PgxLedgerIntegrationSuite) snapshot() map[int64]storedBalance {
	rows, err := suite.pool.Query(suite.ctx,
		`SELECT line_id, initial_balance::text, end_balance::text, currency_id FROM line_balances`)
	suite.Require().NoError(err)
	defer rows.Close()
	out := map[int64]storedBalance{}
	for rows.Next() {
		var id int64
		var b storedBalance
		suite.Require().NoError(rows.Scan(&id, &b.initial, &b.end, &b.currency))
		out[id] = b
	}
	suite.Require().NoError(rows.Err())
	return out
}

// assertConsistent verifies every partition that holds a line.
func (suite *PgxLedgerIntegrationSuite) assertConsistent() {
	suite.T().Helper()
	rows, err := suite.pool.Query(suite.ctx, `SELECT DISTINCT account_id, partner_key FROM ledger_lines`)
	suite.Require().NoError(err)
	var keys []domain.PartitionKey
	for rows.Next() {
		var key domain.PartitionKey
		suite.Require().NoError(rows.Scan(&key.AccountID, &key.PartnerKey))
		keys = append(keys, key)
	}
	rows.Close()
	suite.Require().NoError(rows.Err())

	for _, key := range keys {
		report, err := suite.balances.VerifyPartition(suite.ctx, key, false)
		suite.Require().NoError(err)
		suite.Empty(report.Drifts, "partition %s drifted", key)
	}
}

func (suite *PgxLedgerIntegrationSuite) TestScenario_RunningBalancesAndInsertInThePast() {
	partner := int64Ptr(7)
	lines := suite.create(
		signed(1, partner, "2024-01-01", 100),
		signed(1, partner, "2024-01-05", -30),
		signed(1, partner, "2024-01-10", 10),
	)
	suite.assertBalance(lines[0].LineID, 0, 100)
	suite.assertBalance(lines[1].LineID, 100, 70)
	suite.assertBalance(lines[2].LineID, 70, 80)

	inserted := suite.create(signed(1, partner, "2024-01-03", 5))
	suite.assertBalance(lines[0].LineID, 0, 100)
	suite.assertBalance(inserted[0].LineID, 100, 105)
	suite.assertBalance(lines[1].LineID, 105, 75)
	suite.assertBalance(lines[2].LineID, 75, 85)
	suite.assertConsistent()
}

func (suite *PgxLedgerIntegrationSuite) TestDeleteNonBoundaryLine() {
	lines := suite.create(
		signed(1, nil, "2024-01-01", 100),
		signed(1, nil, "2024-01-05", -30),
		signed(1, nil, "2024-01-10", 10),
	)
	before := suite.snapshot()

	n, err := suite.ledger.DeleteLines(suite.ctx, []int64{lines[1].LineID}, domain.MutationOptions{})
	suite.Require().NoError(err)
	suite.Equal(int64(1), n)

	after := suite.snapshot()
	suite.Equal(before[lines[0].LineID], after[lines[0].LineID])
	suite.NotContains(after, lines[1].LineID)
	suite.assertBalance(lines[2].LineID, 100, 110)
	suite.assertConsistent()
}

func (suite *PgxLedgerIntegrationSuite) TestUpdateMovesLineBetweenPartitions() {
	lines := suite.create(
		signed(1, nil, "2024-01-01", 100),
		signed(1, nil, "2024-01-05", -30),
		signed(1, nil, "2024-01-10", 10),
		signed(2, nil, "2024-01-07", 50),
	)
	newAccount := int64(2)
	_, err := suite.ledger.UpdateLines(suite.ctx, []domain.LineUpdate{{LineID: lines[1].LineID, AccountID: &newAccount}}, domain.MutationOptions{})
	suite.Require().NoError(err)

	suite.assertBalance(lines[0].LineID, 0, 100)
	suite.assertBalance(lines[2].LineID, 100, 110)
	suite.assertBalance(lines[1].LineID, 0, -30)
	suite.assertBalance(lines[3].LineID, -30, 20)
	suite.assertConsistent()
}

func (suite *PgxLedgerIntegrationSuite) TestDraftLineLosesBalance() {
	lines := suite.create(signed(1, nil, "2024-01-01", 100), signed(1, nil, "2024-01-03", 5), signed(1, nil, "2024-01-05", 10))
	drafted := domain.Draft
	_, err := suite.ledger.UpdateLines(suite.ctx, []domain.LineUpdate{{LineID: lines[1].LineID, State: &drafted}}, domain.MutationOptions{})
	suite.Require().NoError(err)

	view, err := suite.balances.GetBalance(suite.ctx, lines[1].LineID)
	suite.Require().NoError(err)
	suite.False(view.Computed)
	suite.assertBalance(lines[2].LineID, 100, 110)
	suite.assertConsistent()
}

func (suite *PgxLedgerIntegrationSuite) TestSkipRecomputeThenReset() {
	lines, err := suite.ledger.CreateLines(suite.ctx, []domain.LineInput{
		signed(1, nil, "2024-01-01", 100),
		signed(1, nil, "2024-01-02", -20),
	}, domain.MutationOptions{SkipRecompute: true})
	suite.Require().NoError(err)
	suite.Empty(suite.snapshot())

	report, ok := suite.balances.ResetAndRecompute(suite.ctx)
	suite.Require().True(ok, "%+v", report)
	suite.Len(report.Stages, 3)
	suite.Equal(int64(2), report.Stages[1].Rows)
	suite.assertBalance(lines[1].LineID, 100, 80)
}

func (suite *PgxLedgerIntegrationSuite) TestIncrementalEquivalentToReset() {
	rng := rand.New(rand.NewSource(7))
	partners := []*int64{nil, int64Ptr(1), int64Ptr(2)}
	randomDate := func() time.Time {
		return day("2024-01-01").AddDate(0, 0, rng.Intn(15))
	}
	randomInput := func() domain.LineInput {
		in := domain.LineInput{
			AccountID:  int64(1 + rng.Intn(3)),
			PartnerID:  partners[rng.Intn(len(partners))],
			Date:       randomDate(),
			CurrencyID: 1,
			State:      domain.Posted,
			Debit:      decimal.New(rng.Int63n(100000), -2),
			Credit:     decimal.New(rng.Int63n(100000), -2),
		}
		if rng.Intn(5) == 0 {
			in.State = domain.Draft
		}
		return in
	}

	ids := []int64{}
	for step := 0; step < 80; step++ {
		switch op := rng.Intn(10); {
		case op < 5 || len(ids) < 3:
			for _, l := range suite.create(randomInput(), randomInput()) {
				ids = append(ids, l.LineID)
			}
		case op < 8:
			u := domain.LineUpdate{LineID: ids[rng.Intn(len(ids))]}
			switch rng.Intn(3) {
			case 0:
				account := int64(1 + rng.Intn(3))
				u.AccountID = &account
			case 1:
				d := randomDate()
				u.Date = &d
			default:
				credit := decimal.New(rng.Int63n(100000), -2)
				u.Credit = &credit
			}
			_, err := suite.ledger.UpdateLines(suite.ctx, []domain.LineUpdate{u}, domain.MutationOptions{})
			suite.Require().NoError(err)
		default:
			i := rng.Intn(len(ids))
			_, err := suite.ledger.DeleteLines(suite.ctx, []int64{ids[i]}, domain.MutationOptions{})
			suite.Require().NoError(err)
			ids = append(ids[:i], ids[i+1:]...)
		}
	}
	suite.assertConsistent()

	incremental := suite.snapshot()
	_, ok := suite.balances.ResetAndRecompute(suite.ctx)
	suite.Require().True(ok)
	suite.Equal(incremental, suite.snapshot())
}

func (suite *PgxLedgerIntegrationSuite) TestConcurrentWritersOnOnePartition() {
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			date := day("2024-01-01").AddDate(0, 0, writers-i)
			_, errs[i] = suite.ledger.CreateLines(suite.ctx, []domain.LineInput{
				{AccountID: 1, Debit: amount(int64(i + 1)), Credit: decimal.Zero, Date: date, CurrencyID: 1},
				{AccountID: 2, Debit: decimal.Zero, Credit: amount(int64(i + 1)), Date: date, CurrencyID: 1},
			}, domain.MutationOptions{})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		suite.Require().NoError(err, "writer %d", i)
	}
	suite.assertConsistent()

	closing, err := suite.reporting.ClosingBalance(suite.ctx, filter.Eq(filter.FieldAccount, 1), domain.ByAccountAndCounterparty)
	suite.Require().NoError(err)
	suite.True(closing.Equal(amount(writers*(writers+1)/2)), "closing %s", closing)
}

func (suite *PgxLedgerIntegrationSuite) TestAggregate_OpeningAndClosingOfFilteredTail() {
	partner := int64Ptr(7)
	suite.create(
		signed(1, partner, "2024-01-01", 100),
		signed(1, partner, "2024-01-05", -30),
		signed(1, partner, "2024-01-10", 10),
	)
	pred := filter.Gte(filter.FieldDate, "2024-01-05")

	opening, err := suite.reporting.OpeningBalance(suite.ctx, pred, domain.ByAccountAndCounterparty)
	suite.Require().NoError(err)
	suite.True(opening.Equal(amount(100)), "opening %s", opening)

	rows, err := suite.reporting.AggregateGroups(suite.ctx, domain.AggregateRequest{
		Filter: pred,
		Fields: []domain.AggregateField{domain.FieldOpening, domain.FieldClosing, domain.FieldMovement},
	})
	suite.Require().NoError(err)
	suite.Require().Len(rows, 1)
	suite.Equal(int64(1), *rows[0].AccountID)
	suite.Equal(int64(7), rows[0].PartnerKey)
	suite.True(rows[0].Closing.Equal(amount(80)))
	suite.True(rows[0].Movement.Equal(amount(-20)))
}

func (suite *PgxLedgerIntegrationSuite) TestAggregate_CounterpartySumsAfterPerPartitionSelection() {
	partner := int64Ptr(5)
	suite.create(
		signed(1, partner, "2024-01-01", 100),
		signed(1, partner, "2024-01-03", 10),
		signed(2, partner, "2024-01-02", 40),
		signed(2, nil, "2024-01-02", 1000),
		signed(1, partner, "2024-01-04", 5),
	)
	rows, err := suite.reporting.AggregateGroups(suite.ctx, domain.AggregateRequest{
		Filter:      filter.And(filter.Lte(filter.FieldDate, "2024-01-03"), filter.Eq(filter.FieldPartner, 5)),
		Granularity: domain.ByCounterparty,
	})
	suite.Require().NoError(err)
	suite.Require().Len(rows, 1)
	suite.Nil(rows[0].AccountID)
	suite.Equal(int64(5), rows[0].PartnerKey)
	suite.True(rows[0].Opening.IsZero())
	suite.True(rows[0].Closing.Equal(amount(150)), "closing %s", rows[0].Closing)
}

func (suite *PgxLedgerIntegrationSuite) TestListLinesPaginatesByDateThenID() {
	suite.create(
		signed(1, nil, "2024-01-03", 1),
		signed(1, nil, "2024-01-01", 1),
		signed(1, nil, "2024-01-02", 1),
		signed(1, nil, "2024-01-02", 2),
	)
	page, next, err := suite.ledger.ListLines(suite.ctx, nil, 3, nil)
	suite.Require().NoError(err)
	suite.Require().Len(page, 3)
	suite.Require().NotNil(next)
	suite.Equal(day("2024-01-01"), page[0].Date)
	suite.Equal(day("2024-01-02"), page[1].Date)
	suite.Less(page[1].LineID, page[2].LineID)

	rest, next, err := suite.ledger.ListLines(suite.ctx, nil, 3, next)
	suite.Require().NoError(err)
	suite.Require().Len(rest, 1)
	suite.Nil(next)
	suite.Equal(day("2024-01-03"), rest[0].Date)
}

func (suite *PgxLedgerIntegrationSuite) TestNumericOverflowIsValidation() {
	_, err := suite.pool.Exec(suite.ctx,
		`INSERT INTO ledger_lines (account_id, debit, date, currency_id) VALUES (1, $1::numeric, '2024-01-01', 1)`,
		"1000000000000000000")
	suite.Require().Error(err)
	suite.ErrorIs(classifyError("insert", err), apperrors.ErrValidation)
}

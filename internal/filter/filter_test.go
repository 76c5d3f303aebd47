package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type questionDialect struct{}

func (questionDialect) Placeholder(int) string { return "?" }
func (questionDialect) Bind(_ Field, v any) (any, error) { return v, nil }

func TestCompile_NilMatchesEverything(t *testing.T) {
	sql, args, err := Compile(nil, Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=1", sql)
	assert.Empty(t, args)
}

func TestCompile_DateRangeAndAccounts(t *testing.T) {
	p := And(
		Gte(FieldDate, "2024-01-05"),
		In(FieldAccount, 10, int64(11)),
	)

	sql, args, err := Compile(p, Postgres, "l", 2)
	require.NoError(t, err)
	assert.Equal(t, "(l.date >= $3) AND (l.account_id IN ($4, $5))", sql)
	require.Len(t, args, 3)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), args[0])
	assert.Equal(t, int64(10), args[1])
	assert.Equal(t, int64(11), args[2])
}

func TestCompile_PartnerUsesNormalizedKey(t *testing.T) {
	sql, args, err := Compile(Or(Eq(FieldPartner, 0), IsNull(FieldPartner)), questionDialect{}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "(partner_key = ?) OR (partner_id IS NULL)", sql)
	assert.Equal(t, []any{int64(0)}, args)
}

func TestCompile_EmptyCombinators(t *testing.T) {
	sql, _, err := Compile(And(), Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=1", sql)

	sql, _, err = Compile(Or(), Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=0", sql)

	sql, _, err = Compile(In(FieldAccount), Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=0", sql)

	sql, _, err = Compile(NotIn(FieldAccount), Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=1", sql)
}

func TestCompile_NotAndDecimal(t *testing.T) {
	sql, args, err := Compile(Not(Gt(FieldDebit, "12.50")), Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "NOT (l.debit > $1)", sql)
	require.Len(t, args, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(args[0].(decimal.Decimal)))
}

func TestCompile_RejectsUnknownFieldAndBadValues(t *testing.T) {
	_, _, err := Compile(Eq("balance", 1), Postgres, "l", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)

	_, _, err = Compile(Eq(FieldDate, "05/01/2024"), Postgres, "l", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)

	_, _, err = Compile(Eq(FieldAccount, 1.5), Postgres, "l", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)

	_, _, err = Compile(Eq(FieldState, 3), Postgres, "l", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

// decimalLimitDialect refuses decimals above one thousand.
type decimalLimitDialect struct{ questionDialect }

func (decimalLimitDialect) Bind(_ Field, v any) (any, error) {
	if d, ok := v.(decimal.Decimal); ok && d.GreaterThan(decimal.NewFromInt(1000)) {
		return nil, errors.New("out of range")
	}
	return v, nil
}

func TestCompile_BindErrorIsInvalidFilter(t *testing.T) {
	_, _, err := Compile(Lte(FieldDebit, "1000.5"), decimalLimitDialect{}, "l", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)

	_, _, err = Compile(In(FieldCredit, "1", "2000"), decimalLimitDialect{}, "l", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)

	sql, args, err := Compile(In(FieldCredit, "1", "2"), decimalLimitDialect{}, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "l.credit IN (?, ?)", sql)
	assert.Len(t, args, 2)
}

func TestParse_Document(t *testing.T) {
	doc := `{"and":[
		{"field":"date","op":">=","value":"2024-01-05"},
		{"or":[{"field":"partner_id","op":"in","value":[7, 8]},{"field":"partner_id","op":"is null"}]},
		{"not":{"field":"ref","value":"opening"}}
	]}`

	p, err := Parse([]byte(doc))
	require.NoError(t, err)

	sql, args, err := Compile(p, Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t,
		"(l.date >= $1) AND ((l.partner_key IN ($2, $3)) OR (l.partner_id IS NULL)) AND (NOT (l.ref = $4))",
		sql)
	assert.Equal(t, []any{time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), int64(7), int64(8), "opening"}, args)
}

func TestParse_Empty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	sql, _, err := Compile(p, Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=1", sql)

	p, err = Parse([]byte(`{}`))
	require.NoError(t, err)
	sql, _, err = Compile(p, Postgres, "l", 0)
	require.NoError(t, err)
	assert.Equal(t, "1=1", sql)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"malformed":       `{"field":`,
		"unknown field":   `{"field":"secret","value":1}`,
		"unknown op":      `{"field":"date","op":"~","value":"2024-01-01"}`,
		"in not array":    `{"field":"account_id","op":"in","value":3}`,
		"missing value":   `{"field":"account_id","op":"="}`,
		"two shapes":      `{"field":"account_id","value":1,"and":[]}`,
		"unknown key":     `{"fields":"account_id"}`,
		"bad array value": `{"field":"date","op":"in","value":["x"]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
		})
	}
}

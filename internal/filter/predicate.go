// Package filter provides an ad-hoc predicate tree over ledger line attributes and compiles it into
// a SQL WHERE fragment for a given storage dialect. Callers of the aggregate query layer build
// predicates (or decode them from JSON) without knowing which backend will run them.
package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage layout used for transaction dates.
const DateLayout = "2006-01-02"

// Field names a filterable ledger line column.
type Field string

const (
	FieldID       Field = "id"
	FieldAccount  Field = "account_id"
	FieldPartner  Field = "partner_id"
	FieldDate     Field = "date"
	FieldState    Field = "state"
	FieldCurrency Field = "currency_id"
	FieldDebit    Field = "debit"
	FieldCredit   Field = "credit"
	FieldRef      Field = "ref"
)

type fieldKind int

const (
	kindInt fieldKind = iota
	kindDate
	kindDecimal
	kindString
)

var fieldKinds = map[Field]fieldKind{
	FieldID:       kindInt,
	FieldAccount:  kindInt,
	FieldPartner:  kindInt,
	FieldDate:     kindDate,
	FieldState:    kindString,
	FieldCurrency: kindInt,
	FieldDebit:    kindDecimal,
	FieldCredit:   kindDecimal,
	FieldRef:      kindString,
}

// Op is a comparison operator.
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "!="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpIn      Op = "in"
	OpNotIn   Op = "not in"
	OpIsNull  Op = "is null"
	OpNotNull Op = "is not null"
)

// Predicate is a node of the filter tree.
type Predicate interface {
	compile(c *compiler) error
}

type comparison struct {
	field Field
	op    Op
	value any
}

type membership struct {
	field  Field
	negate bool
	values []any
}

type nullCheck struct {
	field Field
	null  bool
}

type conjunction []Predicate

type disjunction []Predicate

type negation struct {
	inner Predicate
}

type always struct{}

// All matches every line.
func All() Predicate { return always{} }

// Eq matches lines whose field equals value.
func Eq(field Field, value any) Predicate { return comparison{field: field, op: OpEq, value: value} }

// Ne matches lines whose field differs from value.
func Ne(field Field, value any) Predicate { return comparison{field: field, op: OpNe, value: value} }

// Gt matches lines whose field is strictly greater than value.
func Gt(field Field, value any) Predicate { return comparison{field: field, op: OpGt, value: value} }

// Gte matches lines whose field is greater than or equal to value.
func Gte(field Field, value any) Predicate { return comparison{field: field, op: OpGte, value: value} }

// Lt matches lines whose field is strictly less than value.
func Lt(field Field, value any) Predicate { return comparison{field: field, op: OpLt, value: value} }

// Lte matches lines whose field is less than or equal to value.
func Lte(field Field, value any) Predicate { return comparison{field: field, op: OpLte, value: value} }

// In matches lines whose field is one of values. An empty list matches nothing.
func In(field Field, values ...any) Predicate { return membership{field: field, values: values} }

// NotIn matches lines whose field is none of values.
func NotIn(field Field, values ...any) Predicate {
	return membership{field: field, negate: true, values: values}
}

// IsNull matches lines where field is NULL (only meaningful for partner_id).
func IsNull(field Field) Predicate { return nullCheck{field: field, null: true} }

// NotNull matches lines where field is set.
func NotNull(field Field) Predicate { return nullCheck{field: field, null: false} }

// And matches lines satisfying every predicate. And() matches everything.
func And(preds ...Predicate) Predicate { return conjunction(preds) }

// Or matches lines satisfying at least one predicate. Or() matches nothing.
func Or(preds ...Predicate) Predicate { return disjunction(preds) }

// Not negates p.
func Not(p Predicate) Predicate { return negation{inner: p} }

// Between is shorthand for from <= field <= to.
func Between(field Field, from, to any) Predicate {
	return And(Gte(field, from), Lte(field, to))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidFilter, fmt.Sprintf(format, args...))
}

func kindOf(field Field) (fieldKind, error) {
	kind, ok := fieldKinds[field]
	if !ok {
		return 0, invalid("unknown field %q", field)
	}
	return kind, nil
}

// normalizeValue converts a caller supplied value into the canonical Go type for the field:
// int64, time.Time (UTC date), decimal.Decimal or string.
func normalizeValue(field Field, v any) (any, error) {
	kind, err := kindOf(field)
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindInt:
		return toInt64(field, v)
	case kindDate:
		return toDate(field, v)
	case kindDecimal:
		return toDecimal(field, v)
	default:
		s, ok := v.(string)
		if !ok {
			return nil, invalid("field %q expects a string, got %T", field, v)
		}
		return s, nil
	}
}

func toInt64(field Field, v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		if x != float64(int64(x)) {
			return 0, invalid("field %q expects an integer, got %v", field, x)
		}
		return int64(x), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, invalid("field %q expects an integer, got %q", field, x.String())
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, invalid("field %q expects an integer, got %q", field, x)
		}
		return n, nil
	default:
		return 0, invalid("field %q expects an integer, got %T", field, v)
	}
}

func toDate(field Field, v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		y, m, d := x.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case string:
		t, err := time.Parse(DateLayout, strings.TrimSpace(x))
		if err != nil {
			return time.Time{}, invalid("field %q expects a date (YYYY-MM-DD), got %q", field, x)
		}
		return t, nil
	default:
		return time.Time{}, invalid("field %q expects a date, got %T", field, v)
	}
}

func toDecimal(field Field, v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, invalid("field %q expects a number, got %q", field, x.String())
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero, invalid("field %q expects a number, got %q", field, x)
		}
		return d, nil
	default:
		return decimal.Zero, invalid("field %q expects a number, got %T", field, v)
	}
}

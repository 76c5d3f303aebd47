package filter

import (
	"strconv"
	"strings"
)

// Dialect adapts compiled predicates to a storage engine.
type Dialect interface {
	// Placeholder returns the bind marker for the n-th (1-based) query argument.
	Placeholder(n int) string
	// Bind converts a normalized filter value into the driver value stored for field. A value the
	// engine cannot represent is an error.
	Bind(field Field, value any) (any, error)
}

type postgresDialect struct{}

// Postgres binds with $n markers and passes values through to pgx unchanged.
var Postgres Dialect = postgresDialect{}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) Bind(_ Field, value any) (any, error) { return value, nil }

// column maps a field onto the ledger_lines column the predicate reads. Counterparty comparisons
// use the normalized partner_key so that 0 selects lines without a counterparty; NULL checks read
// the raw partner_id.
func column(field Field, forNull bool) string {
	if field == FieldPartner && !forNull {
		return "partner_key"
	}
	return string(field)
}

type compiler struct {
	dialect Dialect
	alias   string
	offset  int
	args    []any
	sb      strings.Builder
}

// Compile renders p as a SQL boolean expression over the ledger_lines table aliased as alias.
// Placeholders are numbered after argOffset already-bound arguments. A nil predicate matches
// every line.
func Compile(p Predicate, d Dialect, alias string, argOffset int) (string, []any, error) {
	if p == nil {
		p = All()
	}
	c := &compiler{dialect: d, alias: alias, offset: argOffset}
	if err := p.compile(c); err != nil {
		return "", nil, err
	}
	return c.sb.String(), c.args, nil
}

func (c *compiler) col(field Field, forNull bool) string {
	if c.alias == "" {
		return column(field, forNull)
	}
	return c.alias + "." + column(field, forNull)
}

func (c *compiler) bind(field Field, v any) (string, error) {
	bound, err := c.dialect.Bind(field, v)
	if err != nil {
		return "", invalid("value of %q: %v", field, err)
	}
	c.args = append(c.args, bound)
	return c.dialect.Placeholder(c.offset + len(c.args)), nil
}

func (always) compile(c *compiler) error {
	c.sb.WriteString("1=1")
	return nil
}

var sqlOps = map[Op]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

func (p comparison) compile(c *compiler) error {
	sqlOp, ok := sqlOps[p.op]
	if !ok {
		return invalid("operator %q is not a comparison", p.op)
	}
	v, err := normalizeValue(p.field, p.value)
	if err != nil {
		return err
	}
	marker, err := c.bind(p.field, v)
	if err != nil {
		return err
	}
	c.sb.WriteString(c.col(p.field, false))
	c.sb.WriteString(" ")
	c.sb.WriteString(sqlOp)
	c.sb.WriteString(" ")
	c.sb.WriteString(marker)
	return nil
}

func (p membership) compile(c *compiler) error {
	if _, err := kindOf(p.field); err != nil {
		return err
	}
	if len(p.values) == 0 {
		if p.negate {
			c.sb.WriteString("1=1")
		} else {
			c.sb.WriteString("1=0")
		}
		return nil
	}
	c.sb.WriteString(c.col(p.field, false))
	if p.negate {
		c.sb.WriteString(" NOT IN (")
	} else {
		c.sb.WriteString(" IN (")
	}
	for i, raw := range p.values {
		v, err := normalizeValue(p.field, raw)
		if err != nil {
			return err
		}
		marker, err := c.bind(p.field, v)
		if err != nil {
			return err
		}
		if i > 0 {
			c.sb.WriteString(", ")
		}
		c.sb.WriteString(marker)
	}
	c.sb.WriteString(")")
	return nil
}

func (p nullCheck) compile(c *compiler) error {
	if _, err := kindOf(p.field); err != nil {
		return err
	}
	c.sb.WriteString(c.col(p.field, true))
	if p.null {
		c.sb.WriteString(" IS NULL")
	} else {
		c.sb.WriteString(" IS NOT NULL")
	}
	return nil
}

func (p conjunction) compile(c *compiler) error {
	return c.join(p, " AND ", "1=1")
}

func (p disjunction) compile(c *compiler) error {
	return c.join(p, " OR ", "1=0")
}

func (c *compiler) join(preds []Predicate, sep, empty string) error {
	if len(preds) == 0 {
		c.sb.WriteString(empty)
		return nil
	}
	for i, p := range preds {
		if p == nil {
			p = All()
		}
		if i > 0 {
			c.sb.WriteString(sep)
		}
		c.sb.WriteString("(")
		if err := p.compile(c); err != nil {
			return err
		}
		c.sb.WriteString(")")
	}
	return nil
}

func (p negation) compile(c *compiler) error {
	inner := p.inner
	if inner == nil {
		inner = All()
	}
	c.sb.WriteString("NOT (")
	if err := inner.compile(c); err != nil {
		return err
	}
	c.sb.WriteString(")")
	return nil
}

package filter

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Node is the JSON form of a predicate tree:
//
//	{"field": "date", "op": ">=", "value": "2024-01-05"}
//	{"and": [ ... ]}, {"or": [ ... ]}, {"not": { ... }}
//
// An empty node matches every line.
type Node struct {
	Field string          `json:"field,omitempty"`
	Op    string          `json:"op,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	And   []Node          `json:"and,omitempty"`
	Or    []Node          `json:"or,omitempty"`
	Not   *Node           `json:"not,omitempty"`
}

// Parse decodes a JSON filter document into a predicate.
func Parse(data []byte) (Predicate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return All(), nil
	}
	var n Node
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		return nil, invalid("malformed filter document: %v", err)
	}
	return n.Predicate()
}

// Predicate converts the node into a predicate tree, validating field names and operators.
func (n Node) Predicate() (Predicate, error) {
	shapes := 0
	if n.Field != "" {
		shapes++
	}
	if n.And != nil {
		shapes++
	}
	if n.Or != nil {
		shapes++
	}
	if n.Not != nil {
		shapes++
	}
	if shapes > 1 {
		return nil, invalid("a filter node must hold exactly one of field, and, or, not")
	}

	switch {
	case n.And != nil:
		preds, err := children(n.And)
		if err != nil {
			return nil, err
		}
		return And(preds...), nil
	case n.Or != nil:
		preds, err := children(n.Or)
		if err != nil {
			return nil, err
		}
		return Or(preds...), nil
	case n.Not != nil:
		inner, err := n.Not.Predicate()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case n.Field != "":
		return n.leaf()
	default:
		return All(), nil
	}
}

func children(nodes []Node) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(nodes))
	for _, child := range nodes {
		p, err := child.Predicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func (n Node) leaf() (Predicate, error) {
	field := Field(n.Field)
	if _, err := kindOf(field); err != nil {
		return nil, err
	}
	op := Op(strings.ToLower(strings.TrimSpace(n.Op)))
	if op == "" {
		op = OpEq
	}

	switch op {
	case OpIsNull:
		return IsNull(field), nil
	case OpNotNull:
		return NotNull(field), nil
	case OpIn, OpNotIn:
		var values []any
		if err := decodeValue(n.Value, &values); err != nil {
			return nil, invalid("operator %q on %q expects a JSON array: %v", op, field, err)
		}
		for _, v := range values {
			if _, err := normalizeValue(field, v); err != nil {
				return nil, err
			}
		}
		if op == OpNotIn {
			return NotIn(field, values...), nil
		}
		return In(field, values...), nil
	}

	if _, ok := sqlOps[op]; !ok {
		return nil, invalid("unknown operator %q", n.Op)
	}
	var value any
	if err := decodeValue(n.Value, &value); err != nil {
		return nil, invalid("value for %q: %v", field, err)
	}
	if _, err := normalizeValue(field, value); err != nil {
		return nil, err
	}
	return comparison{field: field, op: op, value: value}, nil
}

func decodeValue(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return invalid("missing value")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

// Package expr implements the small expression languages used by the schema
// DSL: the comparator condition grammar (`field op value`), the filter/sort
// mini-DSL for option sources, and CEL-backed custom rule expressions.
//
// The comparator grammar is deliberately evaluated by a dedicated parser so
// the DSL stays portable and independently testable.
package expr

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Op is a comparison operator of the condition grammar.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// LiteralKind tags the parsed literal variant.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBool
	LitString
	LitNumber
)

// Literal is a parsed right-hand-side value.
type Literal struct {
	Kind LiteralKind
	Bool bool
	Str  string
	Num  decimal.Decimal
}

// Condition is one parsed comparator expression: `field op value`.
type Condition struct {
	Field string
	Op    Op
	Value Literal
}

// ParseCondition parses the grammar `field op value` where op is one of
// == != > >= < <= and value is null, true, false, a 'single-quoted string'
// or a number.
func ParseCondition(input string) (*Condition, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, fmt.Errorf("empty condition")
	}

	fieldEnd := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
	if fieldEnd < 0 {
		return nil, fmt.Errorf("condition %q: expected `field op value`", input)
	}
	field := s[:fieldEnd]
	rest := strings.TrimLeft(s[fieldEnd:], " \t")

	var op Op
	// Two-character operators first so ">=" is not read as ">".
	for _, candidate := range []Op{OpEq, OpNe, OpGe, OpLe, OpGt, OpLt} {
		if strings.HasPrefix(rest, string(candidate)) {
			op = candidate
			rest = rest[len(candidate):]
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("condition %q: unknown operator", input)
	}

	lit, err := parseLiteral(strings.TrimSpace(rest))
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", input, err)
	}

	if (lit.Kind == LitNull || lit.Kind == LitBool) && op != OpEq && op != OpNe {
		return nil, fmt.Errorf("condition %q: operator %s requires a comparable literal", input, op)
	}

	return &Condition{Field: field, Op: op, Value: lit}, nil
}

func parseLiteral(s string) (Literal, error) {
	switch {
	case s == "":
		return Literal{}, fmt.Errorf("missing value literal")
	case s == "null":
		return Literal{Kind: LitNull}, nil
	case s == "true":
		return Literal{Kind: LitBool, Bool: true}, nil
	case s == "false":
		return Literal{Kind: LitBool, Bool: false}, nil
	case s[0] == '\'':
		if len(s) < 2 || s[len(s)-1] != '\'' {
			return Literal{}, fmt.Errorf("unterminated string literal %q", s)
		}
		return Literal{Kind: LitString, Str: s[1 : len(s)-1]}, nil
	default:
		num, err := decimal.NewFromString(s)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid literal %q", s)
		}
		return Literal{Kind: LitNumber, Num: num}, nil
	}
}

// Evaluate applies the condition to a snapshot of form values. A missing
// field evaluates as null.
func (c *Condition) Evaluate(values map[string]any) bool {
	val, ok := values[c.Field]
	if !ok {
		val = nil
	}

	switch c.Value.Kind {
	case LitNull:
		isNull := val == nil
		if c.Op == OpNe {
			return !isNull
		}
		return isNull

	case LitBool:
		b, ok := val.(bool)
		eq := ok && b == c.Value.Bool
		if c.Op == OpNe {
			return !eq
		}
		return eq

	case LitString:
		s, ok := coerceString(val)
		if !ok {
			return c.Op == OpNe
		}
		switch c.Op {
		case OpEq:
			return s == c.Value.Str
		case OpNe:
			return s != c.Value.Str
		case OpGt:
			return s > c.Value.Str
		case OpGe:
			return s >= c.Value.Str
		case OpLt:
			return s < c.Value.Str
		case OpLe:
			return s <= c.Value.Str
		}
		return false

	case LitNumber:
		num, ok := coerceDecimal(val)
		if !ok {
			return c.Op == OpNe
		}
		cmp := num.Cmp(c.Value.Num)
		switch c.Op {
		case OpEq:
			return cmp == 0
		case OpNe:
			return cmp != 0
		case OpGt:
			return cmp > 0
		case OpGe:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		case OpLe:
			return cmp <= 0
		}
	}
	return false
}

// EvaluateCondition parses and evaluates in one step.
func EvaluateCondition(input string, values map[string]any) (bool, error) {
	cond, err := ParseCondition(input)
	if err != nil {
		return false, err
	}
	return cond.Evaluate(values), nil
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// coerceDecimal converts common numeric representations (including numeric
// strings, which is what form inputs deliver) without float drift.
func coerceDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

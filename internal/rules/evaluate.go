package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// Degradation explains why a condition evaluated to false without matching.
type Degradation int

// Degradation reasons. DegradeNone means the condition was evaluated normally.
const (
	DegradeNone Degradation = iota
	DegradeMissingField
	DegradeNullField
	DegradeEmptyField
	DegradeFieldNotNumeric
	DegradeLiteralNotNumeric
	DegradeInvalidPattern
	DegradeInvalidOperator
	numDegradations
)

func (d Degradation) String() string {
	switch d {
	case DegradeNone:
		return "none"
	case DegradeMissingField:
		return "missing_field"
	case DegradeNullField:
		return "null_field"
	case DegradeEmptyField:
		return "empty_field"
	case DegradeFieldNotNumeric:
		return "field_not_numeric"
	case DegradeLiteralNotNumeric:
		return "literal_not_numeric"
	case DegradeInvalidPattern:
		return "invalid_pattern"
	case DegradeInvalidOperator:
		return "invalid_operator"
	}
	return fmt.Sprintf("Degradation(%d)", int(d))
}

// IsDefect reports whether the degradation points at a broken rule rather
// than at a record that simply lacks the inspected value.
func (d Degradation) IsDefect() bool {
	switch d {
	case DegradeLiteralNotNumeric, DegradeInvalidPattern, DegradeInvalidOperator:
		return true
	}
	return false
}

// Evaluate reports whether record satisfies the condition. It never panics
// and never fails: malformed input resolves to false.
func Evaluate(c Condition, record model.Record) bool {
	ok, _ := evaluate(c, record)
	return ok
}

// Combinator joins a flat list of conditions.
type Combinator string

// Supported combinators.
const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// ParseCombinator converts user input into a Combinator.
func ParseCombinator(s string) (Combinator, error) {
	switch Combinator(strings.ToUpper(strings.TrimSpace(s))) {
	case And:
		return And, nil
	case Or:
		return Or, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCombinator, s)
}

// EvaluateAll evaluates conditions joined by comb. An empty list is true;
// otherwise a combinator other than And or Or is an error.
func EvaluateAll(conds []Condition, record model.Record, comb Combinator) (bool, error) {
	return combine(conds, comb, func(c Condition) bool { return Evaluate(c, record) })
}

func combine(conds []Condition, comb Combinator, eval func(Condition) bool) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}

	switch comb {
	case And:
		for _, c := range conds {
			if !eval(c) {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, c := range conds {
			if eval(c) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownCombinator, comb)
}

func evaluate(c Condition, record model.Record) (bool, Degradation) {
	if !c.Operator.Valid() {
		return false, DegradeInvalidOperator
	}
	if !c.prepared {
		c = c.prepare()
	}

	raw, ok := record.Get(c.Field)
	if !ok {
		return false, DegradeMissingField
	}
	if isNull(raw) {
		return false, DegradeNullField
	}

	if c.Operator.IsNumeric() {
		return evaluateNumeric(c, raw)
	}

	text := stringify(raw)
	if text == "" {
		return false, DegradeEmptyField
	}
	lowered := strings.ToLower(text)

	switch c.Operator {
	case OpEquals:
		return lowered == strings.ToLower(c.Value), DegradeNone
	case OpContains:
		return strings.Contains(lowered, strings.ToLower(c.Value)), DegradeNone
	case OpStartsWith:
		return strings.HasPrefix(lowered, strings.ToLower(c.Value)), DegradeNone
	case OpEndsWith:
		return strings.HasSuffix(lowered, strings.ToLower(c.Value)), DegradeNone
	case OpRegex:
		if c.patternErr != nil || c.pattern == nil {
			return false, DegradeInvalidPattern
		}
		return c.pattern.MatchString(text), DegradeNone
	case OpInList:
		_, found := c.list[lowered]
		return found, DegradeNone
	}
	return false, DegradeInvalidOperator
}

func evaluateNumeric(c Condition, raw any) (bool, Degradation) {
	if c.numberErr != nil {
		return false, DegradeLiteralNotNumeric
	}
	value, ok := toDecimal(raw)
	if !ok {
		return false, DegradeFieldNotNumeric
	}

	switch c.Operator {
	case OpGreaterThan:
		return value.GreaterThan(c.number), DegradeNone
	case OpLessThan:
		return value.LessThan(c.number), DegradeNone
	case OpGreaterEqual:
		return value.GreaterThanOrEqual(c.number), DegradeNone
	case OpLessEqual:
		return value.LessThanOrEqual(c.number), DegradeNone
	}
	return false, DegradeInvalidOperator
}

func isNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *string:
		return t == nil
	case *decimal.Decimal:
		return t == nil
	case *float64:
		return t == nil
	case decimal.NullDecimal:
		return !t.Valid
	}
	return false
}

// stringify renders a record value the way text operators see it.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case *string:
		return *t
	case []byte:
		return string(t)
	case decimal.Decimal:
		return decimalText(t)
	case *decimal.Decimal:
		return decimalText(*t)
	case decimal.NullDecimal:
		return decimalText(t.Decimal)
	case json.Number:
		return t.String()
	case float64:
		return floatText(t, 64)
	case *float64:
		return floatText(*t, 64)
	case float32:
		return floatText(float64(t), 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// decimalText keeps the scale the amount was written with, so 19.90 stays "19.90".
func decimalText(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// floatText renders whole floats with one decimal place ("150.0").
func floatText(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// toDecimal coerces a record value into a decimal number.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		return *t, true
	case decimal.NullDecimal:
		return t.Decimal, t.Valid
	case float64:
		return decimal.NewFromFloat(t), true
	case *float64:
		return decimal.NewFromFloat(*t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt32(t), true
	case json.Number:
		d, err := parseDecimal(t.String())
		return d, err == nil
	case string:
		d, err := parseDecimal(t)
		return d, err == nil
	case *string:
		d, err := parseDecimal(*t)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// parseDecimal parses a decimal literal, tolerating surrounding whitespace.
func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

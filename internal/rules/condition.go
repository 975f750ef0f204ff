// Package rules compiles categorization rules into predicates and evaluates
// them against transaction records. Nothing in this package performs I/O.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// ErrUnknownOperator is returned by Compile when a stored rule carries a
// condition type outside the closed set. Rules that passed creation-time
// validation never produce it, so seeing it means the stored data is corrupt.
var ErrUnknownOperator = errors.New("unknown operator")

// ErrUnknownCombinator is returned when conditions are joined by anything
// other than AND or OR.
var ErrUnknownCombinator = errors.New("unsupported logical operator")

// Operator is the executable comparison of a compiled condition.
type Operator int

// Supported operators. The zero value is invalid.
const (
	OpEquals Operator = iota + 1
	OpContains
	OpStartsWith
	OpEndsWith
	OpGreaterThan
	OpLessThan
	OpGreaterEqual
	OpLessEqual
	OpRegex
	OpInList
)

var operatorNames = map[Operator]string{
	OpEquals:       "Equals",
	OpContains:     "Contains",
	OpStartsWith:   "StartsWith",
	OpEndsWith:     "EndsWith",
	OpGreaterThan:  "GreaterThan",
	OpLessThan:     "LessThan",
	OpGreaterEqual: "GreaterEqual",
	OpLessEqual:    "LessEqual",
	OpRegex:        "Regex",
	OpInList:       "InList",
}

var operatorsByCondition = map[model.ConditionType]Operator{
	model.ConditionEquals:       OpEquals,
	model.ConditionContains:     OpContains,
	model.ConditionStartsWith:   OpStartsWith,
	model.ConditionEndsWith:     OpEndsWith,
	model.ConditionGreaterThan:  OpGreaterThan,
	model.ConditionLessThan:     OpLessThan,
	model.ConditionGreaterEqual: OpGreaterEqual,
	model.ConditionLessEqual:    OpLessEqual,
	model.ConditionRegex:        OpRegex,
	model.ConditionInList:       OpInList,
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// IsText reports whether the operator compares string forms.
func (o Operator) IsText() bool {
	switch o {
	case OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegex, OpInList:
		return true
	}
	return false
}

// IsNumeric reports whether the operator compares decimal numbers.
func (o Operator) IsNumeric() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// OperatorFor maps a persisted condition type to its operator.
func OperatorFor(ct model.ConditionType) (Operator, error) {
	op, ok := operatorsByCondition[ct]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, ct)
	}
	return op, nil
}

// Condition is a compiled predicate: a field, an operator and a literal.
// Build it with NewCondition so the literal is parsed once; a literal
// Condition{} still evaluates correctly, parsing on every call.
type Condition struct {
	number     decimal.Decimal
	patternErr error
	numberErr  error
	pattern    *regexp.Regexp
	list       map[string]struct{}
	Field      model.FieldName
	Value      string
	Operator   Operator
	prepared   bool
}

// NewCondition builds a condition and precompiles its literal.
func NewCondition(field model.FieldName, op Operator, value string) Condition {
	c := Condition{
		Field:    field,
		Operator: op,
		Value:    value,
	}
	return c.prepare()
}

func (c Condition) prepare() Condition {
	switch {
	case c.Operator == OpRegex:
		c.pattern, c.patternErr = compilePattern(c.Value)
	case c.Operator == OpInList:
		c.list = splitList(c.Value)
	case c.Operator.IsNumeric():
		c.number, c.numberErr = parseDecimal(c.Value)
	}
	c.prepared = true
	return c
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value)
}

// compilePattern compiles a case-insensitive pattern.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// splitList splits a comma separated list into a lower-cased set.
func splitList(value string) map[string]struct{} {
	parts := strings.Split(value, ",")
	set := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		set[strings.ToLower(strings.TrimSpace(part))] = struct{}{}
	}
	return set
}

package model

import (
	"fmt"
	"time"
)

// ConditionType names the comparison a rule applies to a transaction field.
type ConditionType string

// Condition type constants. Values match the persisted representation.
const (
	ConditionEquals       ConditionType = "EQUALS"
	ConditionContains     ConditionType = "CONTAINS"
	ConditionStartsWith   ConditionType = "STARTS_WITH"
	ConditionEndsWith     ConditionType = "ENDS_WITH"
	ConditionGreaterThan  ConditionType = "GREATER_THAN"
	ConditionLessThan     ConditionType = "LESS_THAN"
	ConditionGreaterEqual ConditionType = "GREATER_EQUAL"
	ConditionLessEqual    ConditionType = "LESS_EQUAL"
	ConditionRegex        ConditionType = "REGEX"
	ConditionInList       ConditionType = "IN_LIST"
)

// ConditionTypes lists every supported condition type in display order.
var ConditionTypes = []ConditionType{
	ConditionContains,
	ConditionEquals,
	ConditionStartsWith,
	ConditionEndsWith,
	ConditionRegex,
	ConditionGreaterThan,
	ConditionLessThan,
	ConditionGreaterEqual,
	ConditionLessEqual,
	ConditionInList,
}

// Valid reports whether c is a member of the closed condition set.
func (c ConditionType) Valid() bool {
	switch c {
	case ConditionEquals, ConditionContains, ConditionStartsWith, ConditionEndsWith,
		ConditionGreaterThan, ConditionLessThan, ConditionGreaterEqual, ConditionLessEqual,
		ConditionRegex, ConditionInList:
		return true
	}
	return false
}

// IsNumeric reports whether the condition compares decimal numbers.
func (c ConditionType) IsNumeric() bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionGreaterEqual, ConditionLessEqual:
		return true
	}
	return false
}

// Display returns a human readable label.
func (c ConditionType) Display() string {
	switch c {
	case ConditionEquals:
		return "Equals"
	case ConditionContains:
		return "Contains"
	case ConditionStartsWith:
		return "Starts with"
	case ConditionEndsWith:
		return "Ends with"
	case ConditionGreaterThan:
		return "Greater than"
	case ConditionLessThan:
		return "Less than"
	case ConditionGreaterEqual:
		return "Greater than or equal"
	case ConditionLessEqual:
		return "Less than or equal"
	case ConditionRegex:
		return "Regular expression"
	case ConditionInList:
		return "In list"
	}
	return string(c)
}

// ParseConditionType converts a stored or user supplied value into a ConditionType.
func ParseConditionType(s string) (ConditionType, error) {
	c := ConditionType(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown condition type: %q", s)
	}
	return c, nil
}

// FieldName is a transaction record key a rule can inspect.
type FieldName string

// Field name constants. These are the record keys and must not change.
const (
	FieldDescription     FieldName = "description"
	FieldAmount          FieldName = "amount"
	FieldTransactionType FieldName = "transaction_type"
	FieldCategory        FieldName = "category"
)

// FieldNames lists every supported field.
var FieldNames = []FieldName{
	FieldDescription,
	FieldAmount,
	FieldTransactionType,
	FieldCategory,
}

// Valid reports whether f is a member of the closed field set.
func (f FieldName) Valid() bool {
	switch f {
	case FieldDescription, FieldAmount, FieldTransactionType, FieldCategory:
		return true
	}
	return false
}

// ParseFieldName converts a stored or user supplied value into a FieldName.
func ParseFieldName(s string) (FieldName, error) {
	f := FieldName(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown field name: %q", s)
	}
	return f, nil
}

// DefaultRulePriority is used when a rule is created without a priority.
const DefaultRulePriority = 1

// Rule is a named, prioritized predicate that maps transactions to a category.
type Rule struct {
	CreatedAt     time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"-"`
	TenantID      string        `json:"tenant_id" yaml:"-"`
	Name          string        `json:"name" yaml:"name"`
	ConditionType ConditionType `json:"condition_type" yaml:"condition_type"`
	FieldName     FieldName     `json:"field_name" yaml:"field_name"`
	FieldValue    string        `json:"field_value" yaml:"field_value"`
	ID            int64         `json:"id" yaml:"-"`
	CategoryID    int64         `json:"category_id" yaml:"category_id"`
	Priority      int           `json:"priority" yaml:"priority"`
	Version       int64         `json:"version" yaml:"-"`
	IsActive      bool          `json:"is_active" yaml:"is_active"`
}

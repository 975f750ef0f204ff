package rules

import (
	"strings"

	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

// ValidateRule checks the creation-time invariants of a rule definition.
// It does not check name uniqueness or category ownership, which need storage.
func ValidateRule(rule *model.Rule) error {
	if rule == nil {
		return common.NewValidationError("rule", common.ErrRequired, "")
	}
	if strings.TrimSpace(rule.TenantID) == "" {
		return common.NewValidationError("company", common.ErrMissingTenant, "")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return common.NewValidationError("name", common.ErrRequired, "")
	}
	if rule.CategoryID <= 0 {
		return common.NewValidationError("category", common.ErrRequired, "")
	}
	if !rule.ConditionType.Valid() {
		return common.NewValidationError("condition_type", common.ErrUnknownCondition, string(rule.ConditionType))
	}
	if !rule.FieldName.Valid() {
		return common.NewValidationError("field_name", common.ErrUnknownField, string(rule.FieldName))
	}
	if rule.FieldValue == "" {
		return common.NewValidationError("field_value", common.ErrRequired, "")
	}

	if rule.ConditionType == model.ConditionRegex {
		if _, err := compilePattern(rule.FieldValue); err != nil {
			return common.NewValidationError("field_value", common.ErrInvalidPattern, rule.FieldValue)
		}
	}

	if rule.FieldName == model.FieldAmount && rule.ConditionType.IsNumeric() {
		if _, err := parseDecimal(rule.FieldValue); err != nil {
			return common.NewValidationError("field_value", common.ErrNonNumericAmount, rule.FieldValue)
		}
	}

	return nil
}

package source

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// RuleSpec is a rule definition as written in a rule file. Categories are
// referenced by name so files can move between tenants.
type RuleSpec struct {
	Priority      *int   `yaml:"priority,omitempty"`
	Active        *bool  `yaml:"is_active,omitempty"`
	Name          string `yaml:"name"`
	Category      string `yaml:"category"`
	ConditionType string `yaml:"condition_type"`
	FieldName     string `yaml:"field_name"`
	FieldValue    string `yaml:"field_value"`
}

// RuleFile is the document layout of a rule file.
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// ParseRuleFile decodes a rule file, rejecting unknown keys.
func ParseRuleFile(r io.Reader) ([]RuleSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file RuleFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode rule file: %w", err)
	}

	for i, spec := range file.Rules {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("rule #%d: name is required", i+1)
		}
		if strings.TrimSpace(spec.Category) == "" {
			return nil, fmt.Errorf("rule %q: category is required", spec.Name)
		}
	}
	return file.Rules, nil
}

// Rule converts the spec into a rule for tenantID targeting categoryID.
// Missing priority and is_active take their defaults.
func (s RuleSpec) Rule(tenantID string, categoryID int64) model.Rule {
	rule := model.Rule{
		TenantID:      tenantID,
		Name:          strings.TrimSpace(s.Name),
		CategoryID:    categoryID,
		ConditionType: model.ConditionType(strings.ToUpper(strings.TrimSpace(s.ConditionType))),
		FieldName:     model.FieldName(strings.ToLower(strings.TrimSpace(s.FieldName))),
		FieldValue:    s.FieldValue,
		Priority:      model.DefaultRulePriority,
		IsActive:      true,
	}
	if s.Priority != nil {
		rule.Priority = *s.Priority
	}
	if s.Active != nil {
		rule.IsActive = *s.Active
	}
	return rule
}

// SpecFromRule builds the file form of rule, naming its category.
func SpecFromRule(rule model.Rule, category string) RuleSpec {
	priority := rule.Priority
	active := rule.IsActive
	return RuleSpec{
		Name:          rule.Name,
		Category:      category,
		ConditionType: string(rule.ConditionType),
		FieldName:     string(rule.FieldName),
		FieldValue:    rule.FieldValue,
		Priority:      &priority,
		Active:        &active,
	}
}

// WriteRuleFile encodes specs as a rule file.
func WriteRuleFile(w io.Writer, specs []RuleSpec) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(RuleFile{Rules: specs}); err != nil {
		return fmt.Errorf("failed to encode rule file: %w", err)
	}
	return enc.Close()
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-categorizer/internal/cli"
	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/source"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long: `Rules compare one transaction field against a value and send matching
transactions to a category. Higher priorities are tried first; ties are
broken by rule name.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(showRuleCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(editRuleCmd())
	cmd.AddCommand(deleteRuleCmd())
	cmd.AddCommand(importRulesCmd())
	cmd.AddCommand(exportRulesCmd())
	cmd.AddCommand(testRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	var (
		activeOnly  bool
		categoryRef string
		condition   string
		field       string
		search      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Example: `  spice rules list --active
  spice rules list --category Alimentação --condition CONTAINS
  spice rules list --field amount --search 100`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter, err := newRuleFilter(condition, field, search)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if categoryRef != "" {
				cat, err := a.resolveCategory(ctx, categoryRef)
				if err != nil {
					return err
				}
				filter.categoryID = cat.ID
			}

			rules, err := a.rules.List(ctx, a.tenant)
			if err != nil {
				return err
			}
			if activeOnly {
				rules, err = a.categorize.ActiveRules(ctx, a.tenant)
				if err != nil {
					return err
				}
			}
			rules = filter.apply(rules)
			if len(rules) == 0 {
				if filter.empty() {
					fmt.Println(cli.FormatInfo("No rules found. Use 'spice rules add' or 'spice rules import' to create some."))
				} else {
					fmt.Println(cli.FormatInfo("No rules match the given filters."))
				}
				return nil
			}

			paths, err := a.taxonomy.FullPaths(ctx, a.tenant)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Priority"),
				cli.HeaderStyle.Render("Name"),
				cli.HeaderStyle.Render("Condition"),
				cli.HeaderStyle.Render("Category"),
				cli.HeaderStyle.Render("Active"))

			for _, r := range rules {
				active := cli.SuccessStyle.Render(cli.SuccessIcon)
				if !r.IsActive {
					active = cli.SubtleStyle.Render(cli.ErrorIcon)
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
					r.ID, r.Priority, r.Name, describeCondition(r), paths[r.CategoryID], active)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active rules")
	cmd.Flags().StringVar(&categoryRef, "category", "", "Only show rules targeting this category id or name")
	cmd.Flags().StringVar(&condition, "condition", "", "Only show rules with this condition type: "+conditionHelp())
	cmd.Flags().StringVar(&field, "field", "", "Only show rules testing this transaction field")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive text to find in rule names and values")

	return cmd
}

// ruleFilter narrows a rule listing. Zero-valued fields match everything.
type ruleFilter struct {
	condition  model.ConditionType
	field      model.FieldName
	search     string
	categoryID int64
}

func newRuleFilter(condition, field, search string) (ruleFilter, error) {
	var f ruleFilter
	if condition = strings.TrimSpace(condition); condition != "" {
		c, err := model.ParseConditionType(strings.ToUpper(condition))
		if err != nil {
			return f, common.NewValidationError("condition", common.ErrUnknownCondition, condition)
		}
		f.condition = c
	}
	if field = strings.TrimSpace(field); field != "" {
		name, err := model.ParseFieldName(strings.ToLower(field))
		if err != nil {
			return f, common.NewValidationError("field", common.ErrUnknownField, field)
		}
		f.field = name
	}
	f.search = strings.ToLower(strings.TrimSpace(search))
	return f, nil
}

func (f ruleFilter) empty() bool {
	return f == ruleFilter{}
}

func (f ruleFilter) matches(r model.Rule) bool {
	if f.categoryID != 0 && r.CategoryID != f.categoryID {
		return false
	}
	if f.condition != "" && r.ConditionType != f.condition {
		return false
	}
	if f.field != "" && r.FieldName != f.field {
		return false
	}
	if f.search != "" &&
		!strings.Contains(strings.ToLower(r.Name), f.search) &&
		!strings.Contains(strings.ToLower(r.FieldValue), f.search) {
		return false
	}
	return true
}

// apply keeps the rules f matches, preserving their order.
func (f ruleFilter) apply(rules []model.Rule) []model.Rule {
	if f.empty() {
		return rules
	}
	out := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func describeCondition(r model.Rule) string {
	return fmt.Sprintf("%s %s %q", r.FieldName, strings.ToLower(r.ConditionType.Display()), r.FieldValue)
}

func showRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show rule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.resolveRule(ctx, args[0])
			if err != nil {
				return err
			}
			path, err := a.taxonomy.FullPath(ctx, a.tenant, r.CategoryID)
			if err != nil {
				return err
			}

			lines := []string{
				fmt.Sprintf("ID:        %d", r.ID),
				fmt.Sprintf("Category:  %s", path),
				fmt.Sprintf("Condition: %s", describeCondition(*r)),
				fmt.Sprintf("Priority:  %d", r.Priority),
				fmt.Sprintf("Active:    %t", r.IsActive),
				fmt.Sprintf("Version:   %d", r.Version),
				fmt.Sprintf("Updated:   %s", r.UpdatedAt.Format("2006-01-02 15:04")),
			}
			fmt.Println(cli.RenderBox(r.Name, strings.Join(lines, "\n")))
			return nil
		},
	}
}

func conditionHelp() string {
	names := make([]string, 0, len(model.ConditionTypes))
	for _, c := range model.ConditionTypes {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func addRuleCmd() *cobra.Command {
	var (
		categoryRef string
		condition   string
		field       string
		value       string
		priority    int
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a rule",
		Example: `  spice rules add Supermercado --category Alimentação --condition CONTAINS --value supermercado
  spice rules add "Alto valor" --category "Alto Valor" --condition GREATER_THAN --field amount --value 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.resolveCategory(ctx, categoryRef)
			if err != nil {
				return err
			}

			spec := source.RuleSpec{
				Name:          args[0],
				Category:      cat.Name,
				ConditionType: condition,
				FieldName:     field,
				FieldValue:    value,
				Priority:      &priority,
			}
			active := !inactive
			spec.Active = &active

			rule := spec.Rule(a.tenant, cat.ID)
			if err := a.rules.Create(ctx, &rule); err != nil {
				return friendly("create rule", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %q (ID: %d): %s → %s",
				rule.Name, rule.ID, describeCondition(rule), cat.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryRef, "category", "", "Target category id or name")
	cmd.Flags().StringVar(&condition, "condition", string(model.ConditionContains), "Condition type: "+conditionHelp())
	cmd.Flags().StringVar(&field, "field", string(model.FieldDescription), "Transaction field to test")
	cmd.Flags().StringVar(&value, "value", "", "Value to compare against")
	cmd.Flags().IntVar(&priority, "priority", model.DefaultRulePriority, "Higher priorities are tried first")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the rule disabled")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func editRuleCmd() *cobra.Command {
	var (
		name        string
		categoryRef string
		condition   string
		field       string
		value       string
		priority    int
		active      bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Edit a rule",
		Long:  `Change any attribute of a rule. Only the flags given are changed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rule, err := a.resolveRule(ctx, args[0])
			if err != nil {
				return err
			}

			if flags.Changed("name") {
				rule.Name = strings.TrimSpace(name)
			}
			if flags.Changed("category") {
				cat, err := a.resolveCategory(ctx, categoryRef)
				if err != nil {
					return err
				}
				rule.CategoryID = cat.ID
			}
			if flags.Changed("condition") {
				rule.ConditionType = model.ConditionType(strings.ToUpper(strings.TrimSpace(condition)))
			}
			if flags.Changed("field") {
				rule.FieldName = model.FieldName(strings.ToLower(strings.TrimSpace(field)))
			}
			if flags.Changed("value") {
				rule.FieldValue = value
			}
			if flags.Changed("priority") {
				rule.Priority = priority
			}
			if flags.Changed("active") {
				rule.IsActive = active
			}

			if err := a.rules.Update(ctx, rule); err != nil {
				return friendly("update rule", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated rule %q (version %d)", rule.Name, rule.Version)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New rule name")
	cmd.Flags().StringVar(&categoryRef, "category", "", "New target category id or name")
	cmd.Flags().StringVar(&condition, "condition", "", "New condition type: "+conditionHelp())
	cmd.Flags().StringVar(&field, "field", "", "New transaction field")
	cmd.Flags().StringVar(&value, "value", "", "New comparison value")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().BoolVar(&active, "active", true, "Enable or disable the rule (--active=false)")

	return cmd
}

func deleteRuleCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rule, err := a.resolveRule(ctx, args[0])
			if err != nil {
				return err
			}

			if !yes {
				ok, err := confirm(ctx, fmt.Sprintf("Delete rule %q?", rule.Name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Deletion canceled.")
					return nil
				}
			}

			if err := a.rules.Delete(ctx, a.tenant, rule.ID); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted rule %q", rule.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func importRulesCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update rules from a YAML rule file",
		Long: `Import rules from a YAML file. Rules are matched by name: existing ones
are updated, new ones are created. Categories are referenced by name and
must already exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open rule file: %w", err)
			}
			defer func() { _ = f.Close() }()

			specs, err := source.ParseRuleFile(f)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var created, updated int
			for _, spec := range specs {
				cat, err := a.store.GetCategoryByName(ctx, a.tenant, spec.Category)
				if err != nil {
					if errors.Is(err, common.ErrNotFound) {
						return common.NewUserError(fmt.Sprintf("rule %q: category %q not found", spec.Name, spec.Category), err)
					}
					return err
				}

				rule := spec.Rule(a.tenant, cat.ID)
				existing, err := a.rules.GetByName(ctx, a.tenant, rule.Name)
				switch {
				case err == nil:
					rule.ID = existing.ID
					if !dryRun {
						if err := a.rules.Update(ctx, &rule); err != nil {
							return friendly("update rule "+rule.Name, err)
						}
					}
					updated++
				case errors.Is(err, common.ErrNotFound):
					if !dryRun {
						if err := a.rules.Create(ctx, &rule); err != nil {
							return friendly("create rule "+rule.Name, err)
						}
					}
					created++
				default:
					return err
				}
			}

			msg := fmt.Sprintf("Imported %d rules (%d created, %d updated)", created+updated, created, updated)
			if dryRun {
				msg = "Dry run: " + msg
			}
			fmt.Println(cli.FormatSuccess(msg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Check the file without writing anything")

	return cmd
}

func exportRulesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all rules as a YAML rule file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rules, err := a.rules.List(ctx, a.tenant)
			if err != nil {
				return err
			}
			cats, err := a.store.ListCategories(ctx, a.tenant)
			if err != nil {
				return err
			}
			names := make(map[int64]string, len(cats))
			for _, c := range cats {
				names[c.ID] = c.Name
			}

			specs := make([]source.RuleSpec, 0, len(rules))
			for _, r := range rules {
				specs = append(specs, source.SpecFromRule(r, names[r.CategoryID]))
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return source.WriteRuleFile(w, specs)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func testRulesCmd() *cobra.Command {
	var (
		description string
		amount      string
		txnType     string
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Show which rules match a sample transaction",
		Example: `  spice rules test --description "Compra no supermercado" --amount 50.10 --type DEBIT`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			value, err := decimal.NewFromString(amount)
			if err != nil {
				return common.NewUserError("amount must be a decimal number", err)
			}
			record := model.NewRecord(description, value, txnType)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			active, err := a.categorize.ActiveRules(ctx, a.tenant)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.HeaderStyle.Render("Rule"),
				cli.HeaderStyle.Render("Condition"),
				cli.HeaderStyle.Render("Result"))
			for _, r := range active {
				matched, err := a.engine.Matches(r, record)
				result := cli.SubtleStyle.Render("no match")
				switch {
				case err != nil:
					result = cli.ErrorStyle.Render("invalid: " + err.Error())
				case matched:
					result = cli.SuccessStyle.Render("match")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, describeCondition(r), result)
			}
			_ = w.Flush()

			cat, err := a.categorize.Categorize(ctx, a.tenant, record)
			if err != nil {
				return err
			}
			path, err := a.taxonomy.FullPath(ctx, a.tenant, cat.ID)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println(cli.FormatSuccess("Category: " + path))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Transaction description")
	cmd.Flags().StringVar(&amount, "amount", "0", "Transaction amount")
	cmd.Flags().StringVar(&txnType, "type", "DEBIT", "Transaction type, e.g. DEBIT or CREDIT")

	return cmd
}

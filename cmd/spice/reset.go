package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-categorizer/internal/cli"
)

func resetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every category and rule of the tenant",
		Long: `Reset removes all categories and rules owned by the current tenant.
Other tenants in the same database are not touched.

This is a destructive operation.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.store.ListCategories(ctx, a.tenant)
			if err != nil {
				return err
			}
			ruleList, err := a.rules.List(ctx, a.tenant)
			if err != nil {
				return err
			}

			if len(cats) == 0 && len(ruleList) == 0 {
				fmt.Printf("Tenant %q has no categories or rules. Nothing to reset.\n", a.tenant)
				return nil
			}

			if !force {
				fmt.Printf("This will delete %d categories and %d rules of tenant %q.\n",
					len(cats), len(ruleList), a.tenant)
				ok, err := confirm(ctx, "Are you sure you want to continue?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Reset canceled.")
					return nil
				}
			}

			if err := a.store.DeleteTenant(ctx, a.tenant); err != nil {
				return fmt.Errorf("failed to reset tenant: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Reset tenant %q", a.tenant)))
			fmt.Println("Run 'spice categories defaults' to start over.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

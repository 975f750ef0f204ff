package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-categorizer/internal/cli"
	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "Manage the category hierarchy",
		Long:    `List, add, update, toggle and delete the tenant's categories.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(treeCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(defaultCategoriesCmd())
	cmd.AddCommand(toggleCategoriesCmd("enable", true))
	cmd.AddCommand(toggleCategoriesCmd("disable", false))
	cmd.AddCommand(pathCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		Long:  `Display every category with its full path, active rule count and number of children.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			categories, err := a.store.ListCategories(ctx, a.tenant)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println(cli.FormatInfo("No categories found. Use 'spice categories defaults' or 'spice categories add' to create some."))
				return nil
			}

			paths, err := a.taxonomy.FullPaths(ctx, a.tenant)
			if err != nil {
				return err
			}
			ruleCounts, err := a.store.CountActiveRulesByCategory(ctx, a.tenant)
			if err != nil {
				return err
			}
			childCounts := make(map[int64]int)
			for _, c := range categories {
				if c.ParentID != nil {
					childCounts[*c.ParentID]++
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Path"),
				cli.HeaderStyle.Render("Rules"),
				cli.HeaderStyle.Render("Children"),
				cli.HeaderStyle.Render("Flags"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 40),
				strings.Repeat("-", 5),
				strings.Repeat("-", 8),
				strings.Repeat("-", 16))

			for _, cat := range categories {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n",
					cat.ID, paths[cat.ID], ruleCounts[cat.ID], childCounts[cat.ID], categoryFlags(cat))
			}
			return nil
		},
	}
}

func categoryFlags(cat model.Category) string {
	var flags []string
	if cat.IsSystem {
		flags = append(flags, "system")
	}
	if !cat.IsActive {
		flags = append(flags, "inactive")
	}
	if len(flags) == 0 {
		return cli.SubtleStyle.Render("-")
	}
	return strings.Join(flags, ",")
}

func treeCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show active categories as a tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			nodes, err := a.taxonomy.Tree(ctx, a.tenant)
			if err != nil {
				return err
			}
			if len(nodes) == 0 {
				fmt.Println(cli.FormatInfo("No active categories."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Categories for " + a.tenant))
			fmt.Println(cli.RenderTree(nodes))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var (
		parentRef string
		color     string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Long:  `Create a category, optionally under an existing parent (by id or name).`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cat := &model.Category{
				TenantID: a.tenant,
				Name:     strings.TrimSpace(args[0]),
				Color:    color,
				IsActive: true,
			}
			if parentRef != "" {
				parent, err := a.resolveCategory(ctx, parentRef)
				if err != nil {
					return err
				}
				cat.ParentID = &parent.ID
			}

			if err := a.taxonomy.Save(ctx, cat); err != nil {
				return friendly("create category", err)
			}

			path, err := a.taxonomy.FullPath(ctx, a.tenant, cat.ID)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created category %q (ID: %d)", path, cat.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&parentRef, "parent", "", "Parent category id or name")
	cmd.Flags().StringVar(&color, "color", model.DefaultCategoryColor, "Hex color, e.g. #FF5722")

	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name      string
		color     string
		parentRef string
		noParent  bool
	)

	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Update a category",
		Long:  `Rename, recolor or move an existing category.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if name == "" && color == "" && parentRef == "" && !noParent {
				return errors.New("must specify --name, --color, --parent or --no-parent to update")
			}
			if parentRef != "" && noParent {
				return errors.New("--parent and --no-parent are mutually exclusive")
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.resolveCategory(ctx, args[0])
			if err != nil {
				return err
			}

			if name != "" {
				cat.Name = strings.TrimSpace(name)
			}
			if color != "" {
				cat.Color = color
			}
			switch {
			case noParent:
				cat.ParentID = nil
			case parentRef != "":
				parent, err := a.resolveCategory(ctx, parentRef)
				if err != nil {
					return err
				}
				cat.ParentID = &parent.ID
			}

			if err := a.taxonomy.Save(ctx, cat); err != nil {
				return friendly("update category", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated category %d", cat.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New category name")
	cmd.Flags().StringVar(&color, "color", "", "New hex color")
	cmd.Flags().StringVar(&parentRef, "parent", "", "New parent category id or name")
	cmd.Flags().BoolVar(&noParent, "no-parent", false, "Make the category a root")

	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a category and everything below it",
		Long: `Delete a category. Its descendants and every rule targeting them are
deleted too. System categories cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.resolveCategory(ctx, args[0])
			if err != nil {
				return err
			}

			if !yes {
				descendants, err := a.taxonomy.Descendants(ctx, a.tenant, cat.ID)
				if err != nil {
					return err
				}
				question := fmt.Sprintf("Delete %q", cat.Name)
				if len(descendants) > 0 {
					question += fmt.Sprintf(" and its %d descendants", len(descendants))
				}

				ok, err := confirm(ctx, question+"?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Deletion canceled.")
					return nil
				}
			}

			if err := a.taxonomy.Delete(ctx, a.tenant, cat.ID); err != nil {
				return friendly("delete category", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted category %q", cat.Name)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func defaultCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Create the default system categories",
		Long:  `Create Receitas, Despesas and Transferências for the tenant. Existing ones are left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.taxonomy.CreateDefaults(ctx, a.tenant)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Println(cli.FormatInfo("Default categories already exist."))
				return nil
			}
			for _, c := range created {
				fmt.Println(cli.FormatSuccess("Created " + cli.Swatch(c)))
			}
			return nil
		},
	}
}

func toggleCategoriesCmd(use string, active bool) *cobra.Command {
	verb := "Deactivate"
	if active {
		verb = "Activate"
	}

	return &cobra.Command{
		Use:   use + " <id|name>...",
		Short: verb + " one or more categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ids := make([]int64, 0, len(args))
			for _, ref := range args {
				cat, err := a.resolveCategory(ctx, ref)
				if err != nil {
					return err
				}
				ids = append(ids, cat.ID)
			}

			n, err := a.taxonomy.BulkToggle(ctx, a.tenant, ids, active)
			if err != nil {
				return friendly(strings.ToLower(verb)+" categories", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%sd %d categories", verb, n)))
			return nil
		},
	}
}

func pathCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <id|name>",
		Short: "Print the full path of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.resolveCategory(ctx, args[0])
			if err != nil {
				return err
			}
			path, err := a.taxonomy.FullPath(ctx, a.tenant, cat.ID)
			if err != nil {
				if errors.Is(err, common.ErrCircularReference) {
					return common.NewUserError("category hierarchy is corrupted", err)
				}
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}

// confirm asks question on stdin unless the context is canceled first.
func confirm(ctx context.Context, question string) (bool, error) {
	return cli.NewNonBlockingReader(os.Stdin).Confirm(ctx, os.Stdout, question)
}

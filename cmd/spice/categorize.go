package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spice-categorizer/internal/categorize"
	"github.com/Veraticus/spice-categorizer/internal/cli"
	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/source"
)

// categorizedRecord is one line of categorize output.
type categorizedRecord struct {
	Description string `json:"description" yaml:"description"`
	Amount      string `json:"amount" yaml:"amount"`
	Type        string `json:"transaction_type" yaml:"transaction_type"`
	Category    string `json:"category" yaml:"category"`
	CategoryID  int64  `json:"category_id" yaml:"category_id"`
}

func categorizeCmd() *cobra.Command {
	var (
		description string
		amount      string
		txnType     string
		format      string
		noProgress  bool
		showStats   bool
	)

	cmd := &cobra.Command{
		Use:   "categorize [file]",
		Short: "Categorize transactions",
		Long: `Categorize a single transaction given by flags, or every transaction in a
JSON, YAML or OFX/QFX file. Each transaction is assigned the category of the
first matching active rule, or the default category when nothing matches.`,
		Example: `  spice categorize --description "Uber *trip" --amount 23.90 --type DEBIT
  spice categorize statement.ofx --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var records []model.Record
			if len(args) == 1 {
				loaded, err := source.LoadRecords(ctx, args[0])
				if err != nil {
					return common.NewUserError("failed to read "+args[0], err)
				}
				records = loaded
			} else {
				if description == "" {
					return common.NewUserError("nothing to categorize", fmt.Errorf("give a file or --description"))
				}
				value, err := decimal.NewFromString(amount)
				if err != nil {
					return common.NewUserError("amount must be a decimal number", err)
				}
				records = []model.Record{model.NewRecord(description, value, txnType)}
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []categorize.BatchOption
			if len(records) > 1 && !noProgress {
				bar := newProgressBar(len(records), os.Stderr)
				opts = append(opts, categorize.WithProgress(func(int) {
					if err := bar.Add(1); err != nil {
						slog.Warn("failed to update progress bar", "error", err)
					}
				}))
			}

			results, err := a.categorize.CategorizeBatch(ctx, a.tenant, records, opts...)
			if err != nil {
				return err
			}

			paths, err := a.taxonomy.FullPaths(ctx, a.tenant)
			if err != nil {
				return err
			}

			out := make([]categorizedRecord, len(records))
			for i, rec := range records {
				out[i] = categorizedRecord{
					Description: fieldString(rec, model.FieldDescription),
					Amount:      fieldString(rec, model.FieldAmount),
					Type:        fieldString(rec, model.FieldTransactionType),
					Category:    paths[results[i].ID],
					CategoryID:  results[i].ID,
				}
			}

			if err := writeResults(cmd.OutOrStdout(), format, out); err != nil {
				return err
			}

			if showStats && len(records) > 1 {
				stats, err := a.categorize.Stats(ctx, a.tenant, results)
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, cli.FormatStats(stats))
			}

			metrics := a.engine.Metrics()
			if n := metrics.DefectCount(); n > 0 {
				slog.Warn("some rules could not be evaluated; check them with 'spice rules test'",
					"defects", n,
					"degradations", metrics.Degradations)
			}
			if metrics.CompileErrors > 0 {
				slog.Warn("some rules failed to compile and were skipped", "count", metrics.CompileErrors)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Transaction description")
	cmd.Flags().StringVar(&amount, "amount", "0", "Transaction amount")
	cmd.Flags().StringVar(&txnType, "type", "DEBIT", "Transaction type, e.g. DEBIT or CREDIT")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
	cmd.Flags().BoolVar(&showStats, "stats", true, "Print categorization coverage for files")

	return cmd
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Categorizing transactions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func fieldString(rec model.Record, field model.FieldName) string {
	v, ok := rec.Get(field)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func writeResults(w io.Writer, format string, out []categorizedRecord) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			cli.HeaderStyle.Render("Description"),
			cli.HeaderStyle.Render("Amount"),
			cli.HeaderStyle.Render("Type"),
			cli.HeaderStyle.Render("Category"))
		for _, r := range out {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Description, r.Amount, r.Type, r.Category)
		}
		return tw.Flush()
	}
	return common.NewUserError("unknown output format "+format, common.ErrInvalidConfig)
}

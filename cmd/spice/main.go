package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-categorizer/internal/cli"
	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/config"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = newRootCmd()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spice",
		Short: "🌶️  Rule-based transaction categorization",
		Long: `spice categorizes financial transactions with user-defined rules.

Categories form a per-tenant hierarchy. Rules match a transaction field
against a value and are tried from the highest priority down; the first
match wins and everything else lands in the default category.

The spice must flow!`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/spice/config.yaml)")
	cmd.PersistentFlags().String("database", "", "database path (default: "+config.DefaultDatabasePath+")")
	cmd.PersistentFlags().String("tenant", "", "tenant whose categories and rules are used")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag(config.KeyDatabasePath, cmd.PersistentFlags().Lookup("database"))
	_ = viper.BindPFlag(config.KeyTenant, cmd.PersistentFlags().Lookup("tenant"))
	_ = viper.BindPFlag(config.KeyLogLevel, cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyLogFormat, cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(categoriesCmd())
	cmd.AddCommand(rulesCmd())
	cmd.AddCommand(categorizeCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(resetCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func main() {
	handler := cli.NewInterruptHandler(os.Stderr)
	ctx, stop := handler.HandleInterrupts(context.Background())

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.Error()))
		} else {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(fmt.Sprintf("%s/.config/spice", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// SPICE_DATABASE_PATH, SPICE_CATEGORIZE_WORKERS, ...
	viper.SetEnvPrefix("SPICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := common.SetupLogger(viper.GetString(config.KeyLogLevel), viper.GetString(config.KeyLogFormat)); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	slog.Debug("configuration loaded", "file", viper.ConfigFileUsed())
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("spice %s\n", version)
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-categorizer/internal/categorize"
	"github.com/Veraticus/spice-categorizer/internal/common"
	"github.com/Veraticus/spice-categorizer/internal/config"
	"github.com/Veraticus/spice-categorizer/internal/model"
	"github.com/Veraticus/spice-categorizer/internal/rules"
	"github.com/Veraticus/spice-categorizer/internal/storage"
	"github.com/Veraticus/spice-categorizer/internal/taxonomy"
)

// app bundles the services a command needs for one tenant.
type app struct {
	cfg        *config.Config
	store      *storage.SQLiteStorage
	engine     *rules.Engine
	taxonomy   *taxonomy.Service
	categorize *categorize.Service
	rules      *categorize.RuleManager
	tenant     string
}

// openApp loads configuration, opens the migrated database and wires services.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	engine := rules.NewEngine(
		rules.WithCacheSize(cfg.RuleCacheSize),
		rules.WithLogger(slog.Default()),
	)

	svcConfig := categorize.DefaultConfig()
	svcConfig.DefaultCategoryName = cfg.DefaultCategory
	svcConfig.Workers = cfg.Workers
	svcConfig.ParallelThreshold = cfg.ParallelThreshold

	return &app{
		cfg:        cfg,
		store:      store,
		engine:     engine,
		taxonomy:   taxonomy.NewService(store),
		categorize: categorize.NewWithConfig(store, engine, svcConfig),
		rules:      categorize.NewRuleManager(store, engine),
		tenant:     cfg.Tenant,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// initStorage opens the database at dbPath and applies pending migrations.
func initStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// resolveCategory finds a category by numeric id or by exact name.
func (a *app) resolveCategory(ctx context.Context, ref string) (*model.Category, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		cat, err := a.taxonomy.Get(ctx, a.tenant, id)
		if err == nil {
			return cat, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	cat, err := a.store.GetCategoryByName(ctx, a.tenant, ref)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(fmt.Sprintf("category %q not found", ref), err)
	}
	return cat, err
}

// resolveRule finds a rule by numeric id or by exact name.
func (a *app) resolveRule(ctx context.Context, ref string) (*model.Rule, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		rule, err := a.rules.Get(ctx, a.tenant, id)
		if err == nil {
			return rule, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	rule, err := a.rules.GetByName(ctx, a.tenant, ref)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(fmt.Sprintf("rule %q not found", ref), err)
	}
	return rule, err
}

// friendly rewrites validation failures into a message naming the field.
func friendly(action string, err error) error {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return common.NewUserError(action, ve)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

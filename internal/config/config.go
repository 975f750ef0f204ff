package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-categorizer/internal/common"
)

// Configuration keys.
const (
	KeyDatabasePath      = "database.path"
	KeyTenant            = "tenant"
	KeyDefaultCategory   = "categorize.default_category"
	KeyWorkers           = "categorize.workers"
	KeyParallelThreshold = "categorize.parallel_threshold"
	KeyRuleCacheSize     = "rules.cache_size"
	KeyLogLevel          = "logging.level"
	KeyLogFormat         = "logging.format"
)

// DefaultDatabasePath is used when database.path is not configured.
const DefaultDatabasePath = "$HOME/.local/share/spice/spice.db"

// Config is the typed application configuration.
type Config struct {
	DatabasePath      string
	Tenant            string
	DefaultCategory   string
	LogLevel          string
	LogFormat         string
	Workers           int
	ParallelThreshold int
	RuleCacheSize     int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath)
	v.SetDefault(KeyTenant, "default")
	v.SetDefault(KeyDefaultCategory, "Sem Categoria")
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyParallelThreshold, 500)
	v.SetDefault(KeyRuleCacheSize, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath:      ExpandPath(v.GetString(KeyDatabasePath)),
		Tenant:            strings.TrimSpace(v.GetString(KeyTenant)),
		DefaultCategory:   strings.TrimSpace(v.GetString(KeyDefaultCategory)),
		Workers:           v.GetInt(KeyWorkers),
		ParallelThreshold: v.GetInt(KeyParallelThreshold),
		RuleCacheSize:     v.GetInt(KeyRuleCacheSize),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabasePath == "":
		return fmt.Errorf("%w: %s is empty", common.ErrInvalidConfig, KeyDatabasePath)
	case c.Tenant == "":
		return fmt.Errorf("%w: %s is empty", common.ErrInvalidConfig, KeyTenant)
	case c.DefaultCategory == "":
		return fmt.Errorf("%w: %s is empty", common.ErrInvalidConfig, KeyDefaultCategory)
	case c.Workers < 1:
		return fmt.Errorf("%w: %s must be at least 1, got %d", common.ErrInvalidConfig, KeyWorkers, c.Workers)
	case c.ParallelThreshold < 0:
		return fmt.Errorf("%w: %s cannot be negative", common.ErrInvalidConfig, KeyParallelThreshold)
	case c.RuleCacheSize < 0:
		return fmt.Errorf("%w: %s cannot be negative", common.ErrInvalidConfig, KeyRuleCacheSize)
	}

	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: invalid log format: %s", common.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

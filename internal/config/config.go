package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	Migrations string `mapstructure:"migrations"`
}

// ImportConfig tunes statement imports.
type ImportConfig struct {
	ChunkSize        int  `mapstructure:"chunk_size"`
	LookupChunkSize  int  `mapstructure:"lookup_chunk_size"`
	PreviewLimit     int  `mapstructure:"preview_limit"`
	ValidateBalances bool `mapstructure:"validate_balances"`
	MaxIDGap         int  `mapstructure:"max_id_gap"`
	MaxDayGap        int  `mapstructure:"max_day_gap"`
	NotesMinTerm     int  `mapstructure:"notes_min_term"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and env. Env var overrides use prefix COMPTES_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if p := os.Getenv("COMPTES_CONFIG"); p != "" {
		v.SetConfigFile(p)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "comptes"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("COMPTES")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing config file is fine, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "comptes", "comptes.db"))
	v.SetDefault("database.migrations", filepath.Join("internal", "database", "migrations"))
	v.SetDefault("import.chunk_size", 100)
	v.SetDefault("import.lookup_chunk_size", 500)
	v.SetDefault("import.preview_limit", 100)
	v.SetDefault("import.validate_balances", false)
	v.SetDefault("import.max_id_gap", 10)
	v.SetDefault("import.max_day_gap", 90)
	v.SetDefault("import.notes_min_term", 5)
	v.SetDefault("log.level", "info")
}

// Save writes cfg to the config file, creating its directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("COMPTES_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "comptes", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations", cfg.Database.Migrations)
	v.Set("import.chunk_size", cfg.Import.ChunkSize)
	v.Set("import.lookup_chunk_size", cfg.Import.LookupChunkSize)
	v.Set("import.preview_limit", cfg.Import.PreviewLimit)
	v.Set("import.validate_balances", cfg.Import.ValidateBalances)
	v.Set("import.max_id_gap", cfg.Import.MaxIDGap)
	v.Set("import.max_day_gap", cfg.Import.MaxDayGap)
	v.Set("import.notes_min_term", cfg.Import.NotesMinTerm)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

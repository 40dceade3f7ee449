package engine

import (
	"path/filepath"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/platform/config"
)

// Config carries engine tunables read from the environment.
type Config struct {
	DBPath            string `env:"PARLEY_DB_PATH"`
	MaxContextHistory int    `env:"PARLEY_MAX_CONTEXT_HISTORY"`
	ReplayPageSize    int    `env:"PARLEY_REPLAY_PAGE_SIZE"`
}

// LoadConfig reads PARLEY_* environment variables and fills defaults.
func LoadConfig() Config {
	var cfg Config
	_ = config.ParseEnv(&cfg)
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.DBPath == "" {
		c.DBPath = filepath.Join("data", "parley.db")
	}
	if c.MaxContextHistory <= 0 {
		c.MaxContextHistory = dialog.DefaultMaxContextHistory
	}
	if c.ReplayPageSize <= 0 {
		c.ReplayPageSize = 200
	}
	return c
}

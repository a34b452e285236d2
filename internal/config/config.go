// Package config loads campfinder's persistent configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/campfinder/internal/ranking"
)

// Config is the persistent application configuration.
type Config struct {
	// DBPath is the SQLite file. Empty means DataDir()/campfinder.db.
	DBPath string `json:"db_path,omitempty"`

	Backend BackendConfig `json:"backend"`
	Ranking RankingConfig `json:"ranking"`
	Home    HomeConfig    `json:"home"`
	Server  ServerConfig  `json:"server"`
	Sync    SyncConfig    `json:"sync"`
}

// BackendConfig points at the hosted listings table.
type BackendConfig struct {
	URL               string  `json:"url"`
	APIKey            string  `json:"api_key,omitempty"`
	Table             string  `json:"table"`
	PageSize          int     `json:"page_size"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// RankingConfig tunes the section pipeline.
type RankingConfig struct {
	NewWindowDays int `json:"new_window_days"`
	DefaultLimit  int `json:"default_limit"`
}

// SectionConfig is one homepage row.
type SectionConfig struct {
	Title      string   `json:"title"`
	Mode       string   `json:"mode"`
	Limit      int      `json:"limit,omitempty"` // zero uses Ranking.DefaultLimit
	Categories []string `json:"categories,omitempty"`
}

// HomeConfig lists the homepage rows in display order.
type HomeConfig struct {
	Sections []SectionConfig `json:"sections"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

type SyncConfig struct {
	IntervalMinutes int `json:"interval_minutes"`
}

// Environment overrides, applied after the file and .env are read.
const (
	EnvBackendURL    = "CAMPFINDER_BACKEND_URL"
	EnvBackendKey    = "CAMPFINDER_BACKEND_KEY"
	EnvDB            = "CAMPFINDER_DB"
	EnvAddr          = "CAMPFINDER_ADDR"
	EnvNewWindowDays = "CAMPFINDER_NEW_WINDOW_DAYS"
	EnvSyncInterval  = "CAMPFINDER_SYNC_INTERVAL"
	EnvHome          = "CAMPFINDER_HOME"
)

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Table:             "listings",
			PageSize:          500,
			RequestsPerSecond: 5,
		},
		Ranking: RankingConfig{
			NewWindowDays: 45,
			DefaultLimit:  12,
		},
		Home: HomeConfig{
			Sections: []SectionConfig{
				{Title: "Popular", Mode: string(ranking.ModePopular)},
				{Title: "Featured", Mode: string(ranking.ModeFeatured)},
				{Title: "New this season", Mode: string(ranking.ModeNew)},
			},
		},
		Server: ServerConfig{Addr: ":8080"},
		Sync:   SyncConfig{IntervalMinutes: 15},
	}
}

// DataDir returns ~/.campfinder, or $CAMPFINDER_HOME when set.
func DataDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".campfinder")
}

// Path returns the path to the config file.
func Path() string {
	return filepath.Join(DataDir(), "config.json")
}

// Load reads the config file (defaults when absent), then .env, then
// environment overrides.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return LoadFrom(Path())
}

// LoadFrom reads the config at path and applies environment overrides.
// A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv exports variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from CAMPFINDER_* variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		c.Backend.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendKey)); v != "" {
		c.Backend.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		c.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		c.Server.Addr = v
	}
	if err := envInt(EnvNewWindowDays, &c.Ranking.NewWindowDays); err != nil {
		return err
	}
	if err := envInt(EnvSyncInterval, &c.Sync.IntervalMinutes); err != nil {
		return err
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate rejects configurations the ranking pipeline cannot serve.
func (c *Config) Validate() error {
	var errs []error
	if c.Ranking.NewWindowDays < 0 {
		errs = append(errs, fmt.Errorf("ranking.new_window_days must not be negative"))
	}
	if c.Ranking.DefaultLimit < 0 {
		errs = append(errs, fmt.Errorf("ranking.default_limit must not be negative"))
	}
	if c.Sync.IntervalMinutes < 0 {
		errs = append(errs, fmt.Errorf("sync.interval_minutes must not be negative"))
	}
	for i, s := range c.Home.Sections {
		if _, err := ranking.ParseMode(s.Mode); err != nil {
			errs = append(errs, fmt.Errorf("home.sections[%d] %q: %w", i, s.Title, err))
		}
		if s.Limit < 0 {
			errs = append(errs, fmt.Errorf("home.sections[%d] %q: negative limit", i, s.Title))
		}
	}
	return errors.Join(errs...)
}

// Save writes the config to Path.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to path with owner-only permissions, since it
// may hold the backend key.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ResolvedDBPath returns DBPath or the default location.
func (c *Config) ResolvedDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(DataDir(), "campfinder.db")
}

// NewWindow returns the "new" section window as a duration.
func (c *Config) NewWindow() time.Duration {
	if c.Ranking.NewWindowDays <= 0 {
		return ranking.DefaultNewWindow
	}
	return time.Duration(c.Ranking.NewWindowDays) * 24 * time.Hour
}

// SyncInterval returns the coordinator's pull interval.
func (c *Config) SyncInterval() time.Duration {
	if c.Sync.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}

// SectionLimit returns s.Limit or the configured default.
func (c *Config) SectionLimit(s SectionConfig) int {
	if s.Limit > 0 {
		return s.Limit
	}
	return c.Ranking.DefaultLimit
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
)

// Index service backends.
const (
	BackendAlgolia = "algolia"
	BackendBleve   = "bleve"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheBadger = "badger"
)

// DefaultPrefix is prepended to every index name unless configured otherwise.
const DefaultPrefix = "production_"

// Config represents the complete algoliasync configuration.
type Config struct {
	Version      int                `yaml:"version" json:"version"`
	DataDir      string             `yaml:"data_dir" json:"data_dir"`
	LogLevel     string             `yaml:"log_level" json:"log_level"`
	Index        IndexConfig        `yaml:"index" json:"index"`
	Localization LocalizationConfig `yaml:"localization" json:"localization"`
	Cache        CacheConfig        `yaml:"cache" json:"cache"`
	Content      ContentConfig      `yaml:"content" json:"content"`
	ContentTypes ContentTypesConfig `yaml:"content_types" json:"content_types"`
}

// IndexConfig configures the remote index service.
type IndexConfig struct {
	// Backend is "algolia" (remote REST service) or "bleve" (local indexes under DataDir).
	Backend string `yaml:"backend" json:"backend"`

	ApplicationID string `yaml:"application_id" json:"application_id"`
	AdminAPIKey   string `yaml:"admin_api_key" json:"-"`

	// Prefix is prepended to the content type to form the index name.
	Prefix string `yaml:"prefix" json:"prefix"`

	// PerLocale appends _{locale} to index names.
	PerLocale bool `yaml:"per_locale" json:"per_locale"`

	// Host overrides the service host (tests, proxies).
	Host string `yaml:"host" json:"host"`

	Timeout string `yaml:"timeout" json:"timeout"`

	// HitsPerPage is the page size for full-scan queries.
	HitsPerPage int `yaml:"hits_per_page" json:"hits_per_page"`
}

// LocalizationConfig describes the locales content is published in.
type LocalizationConfig struct {
	// Enabled reports whether the content source exposes item locales.
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	DefaultLocale string   `yaml:"default_locale" json:"default_locale"`
	Locales       []string `yaml:"locales" json:"locales"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Path is the sqlite file or badger directory. Empty derives one from DataDir.
	Path       string `yaml:"path" json:"path"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries"`
}

// ContentConfig locates the content database.
type ContentConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	return &Config{
		Version:  1,
		DataDir:  defaultDataDir(),
		LogLevel: "info",
		Index: IndexConfig{
			Backend:     BackendAlgolia,
			Prefix:      DefaultPrefix,
			Timeout:     "30s",
			HitsPerPage: 9999,
		},
		Localization: LocalizationConfig{
			Enabled:       true,
			DefaultLocale: "en",
			Locales:       []string{"en", "fr"},
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			MaxEntries: 4096,
		},
		ContentTypes: ContentTypesConfig{
			Enabled: []string{"post", "page", "cocktail", "eat", "video"},
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".algoliasync", "data")
	}
	return filepath.Join(home, ".algoliasync", "data")
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/algoliasync/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/algoliasync/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "algoliasync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "algoliasync", "config.yaml")
	}
	return filepath.Join(home, ".config", "algoliasync", "config.yaml")
}

// ProjectConfigPath returns the project configuration file inside dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ".algoliasync.yaml")
}

// Load builds the configuration for dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/algoliasync/config.yaml)
//  3. Project config (.algoliasync.yaml or .algoliasync.yml in dir)
//  4. Environment variables (ALGOLIA_*, ALGOLIASYNC_*)
//
// Credentials are not required here; Validate checks them before the engine starts.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.deriveDefaults()

	if err := cfg.validateSettings(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	if dir == "" {
		return nil
	}
	for _, name := range []string{".algoliasync.yaml", ".algoliasync.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over the current values; keys absent from the file
// keep their previous value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// The ALGOLIA_* names match the constants of the CMS deployment.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ALGOLIA_APPLICATION_ID"); v != "" {
		c.Index.ApplicationID = v
	}
	if v := os.Getenv("ALGOLIA_ADMIN_API_KEY"); v != "" {
		c.Index.AdminAPIKey = v
	}
	if v, ok := os.LookupEnv("ALGOLIA_PREFIX"); ok {
		c.Index.Prefix = v
	}
	if v := os.Getenv("ALGOLIASYNC_INDEX_BACKEND"); v != "" {
		c.Index.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ALGOLIASYNC_INDEX_HOST"); v != "" {
		c.Index.Host = v
	}
	if v := os.Getenv("ALGOLIASYNC_PER_LOCALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Index.PerLocale = b
		}
	}
	if v := os.Getenv("ALGOLIASYNC_LOCALIZATION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Localization.Enabled = b
		}
	}
	if v := os.Getenv("ALGOLIASYNC_DEFAULT_LOCALE"); v != "" {
		c.Localization.DefaultLocale = v
	}
	if v := os.Getenv("ALGOLIASYNC_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("ALGOLIASYNC_CONTENT_DSN"); v != "" {
		c.Content.DSN = v
	}
	if v := os.Getenv("ALGOLIASYNC_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ALGOLIASYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// deriveDefaults fills paths that depend on DataDir.
func (c *Config) deriveDefaults() {
	if c.Cache.Path == "" {
		switch c.Cache.Backend {
		case CacheSQLite:
			c.Cache.Path = filepath.Join(c.DataDir, "cache.db")
		case CacheBadger:
			c.Cache.Path = filepath.Join(c.DataDir, "cache")
		}
	}
	if c.Content.DSN == "" {
		c.Content.DSN = filepath.Join(c.DataDir, "content.db")
	}
}

// validateSettings checks everything except credentials.
func (c *Config) validateSettings() error {
	switch c.Index.Backend {
	case BackendAlgolia, BackendBleve:
	default:
		return fmt.Errorf("index.backend must be 'algolia' or 'bleve', got %q", c.Index.Backend)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheSQLite, CacheBadger:
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'sqlite' or 'badger', got %q", c.Cache.Backend)
	}

	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be non-negative, got %d", c.Cache.MaxEntries)
	}
	if c.Index.HitsPerPage <= 0 {
		return fmt.Errorf("index.hits_per_page must be positive, got %d", c.Index.HitsPerPage)
	}
	if _, err := time.ParseDuration(c.Index.Timeout); err != nil {
		return fmt.Errorf("index.timeout: %w", err)
	}
	if c.Localization.Enabled && c.Localization.DefaultLocale == "" {
		return fmt.Errorf("localization.default_locale is required when localization is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return c.ContentTypes.validate()
}

// Validate checks the full configuration, including index service
// credentials. Nothing may be registered when it fails.
func (c *Config) Validate() error {
	if err := c.validateSettings(); err != nil {
		return syncerr.ConfigError("invalid configuration", err)
	}

	if c.Index.Backend == BackendAlgolia && (c.Index.ApplicationID == "" || c.Index.AdminAPIKey == "") {
		return syncerr.New(syncerr.ErrCodeMissingCredentials, "index service credentials are missing", nil).
			WithSuggestion("set ALGOLIA_APPLICATION_ID and ALGOLIA_ADMIN_API_KEY, or use index.backend: bleve")
	}
	return nil
}

// IndexName returns the index name for a content type. The locale suffix is
// only added when indexes are split per locale.
func (c *Config) IndexName(contentType, locale string) string {
	name := c.Index.Prefix + contentType
	if c.Index.PerLocale && locale != "" {
		name += "_" + locale
	}
	return name
}

// TimeoutDuration returns the parsed index service timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Index.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LocksDir returns the directory holding reindex lock files.
func (c *Config) LocksDir() string {
	return filepath.Join(c.DataDir, "locks")
}

// IndexesDir returns the directory holding local bleve indexes.
func (c *Config) IndexesDir() string {
	return filepath.Join(c.DataDir, "indexes")
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

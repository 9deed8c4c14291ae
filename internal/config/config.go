// Package config loads docindex configuration.
//
// Values are layered in increasing precedence: defaults, the user config
// (~/.config/docindex/config.yaml), the project config (config.yml or
// .docindex.yaml in the working directory), a project .env file, the
// process environment, and finally CLI flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Backends.
const (
	BackendOpenSearch = "opensearch"
	BackendBleve      = "bleve"
	BackendMemory     = "memory"
)

// Cutover modes.
const (
	ModeTwoStep = "two-step"
	ModeAtomic  = "atomic"
)

// ProjectConfigFiles are tried in order in the working directory; the first
// that exists is loaded.
var ProjectConfigFiles = []string{".docindex.yaml", ".docindex.yml", "config.yml", "config.yaml"}

// Config is the complete docindex configuration.
type Config struct {
	// IndexingDirectories are corpus subdirectories, relative to the corpus root.
	IndexingDirectories []string `yaml:"indexing_directories" json:"indexing_directories"`

	Index   IndexConfig   `yaml:"index" json:"index"`
	Bulk    BulkConfig    `yaml:"bulk" json:"bulk"`
	Cutover CutoverConfig `yaml:"cutover" json:"cutover"`
	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Walker  WalkerConfig  `yaml:"walker" json:"walker"`
	Ledger  LedgerConfig  `yaml:"ledger" json:"ledger"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Source lists the files that contributed to this configuration.
	Source []string `yaml:"-" json:"-"`
}

// IndexConfig names generations and the alias readers use.
type IndexConfig struct {
	Prefix       string `yaml:"prefix" json:"prefix"`
	Alias        string `yaml:"alias" json:"alias"`
	SuffixLength int    `yaml:"suffix_length" json:"suffix_length"`
}

// BulkConfig tunes loading.
type BulkConfig struct {
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	Workers           int           `yaml:"workers" json:"workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	MaxFailedRecords  int           `yaml:"max_failed_records" json:"max_failed_records"`
}

// CutoverConfig selects the alias switch strategy.
type CutoverConfig struct {
	Mode string `yaml:"mode" json:"mode"`
}

// EngineConfig selects and addresses the search engine.
type EngineConfig struct {
	Backend            string `yaml:"backend" json:"backend"`
	Endpoint           string `yaml:"endpoint" json:"endpoint"`
	Username           string `yaml:"username" json:"username"`
	Password           string `yaml:"password" json:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	// DataDir holds local state: the run lock, the ledger and bleve indices.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// WalkerConfig selects eligible files.
type WalkerConfig struct {
	Extensions []string `yaml:"extensions" json:"extensions"`
	Exclude    []string `yaml:"exclude" json:"exclude"`
}

// LedgerConfig configures the run history.
type LedgerConfig struct {
	// Enabled is a pointer so a project file can turn the ledger off.
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LoggingConfig configures structured logs.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  bool   `yaml:"file" json:"file"`
}

var indexNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// NewConfig returns the defaults.
func NewConfig() *Config {
	enabled := true
	return &Config{
		IndexingDirectories: []string{},
		Index: IndexConfig{
			Prefix:       "documentation_index",
			Alias:        "docs",
			SuffixLength: 8,
		},
		Bulk: BulkConfig{
			BatchSize: 5,
			Timeout:   20 * time.Second,
			Workers:   1,
		},
		Cutover: CutoverConfig{Mode: ModeTwoStep},
		Engine: EngineConfig{
			Backend: BackendOpenSearch,
			DataDir: defaultDataDir(),
		},
		Walker: WalkerConfig{
			Extensions: []string{".md", ".markdown"},
			Exclude:    []string{},
		},
		Ledger:  LedgerConfig{Enabled: &enabled},
		Logging: LoggingConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docindex", "data")
	}
	return filepath.Join(home, ".docindex", "data")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/docindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "docindex", "config.yaml")
}

// Load loads configuration for the project in dir. When explicit is set it
// replaces project file discovery and must exist. Overrides run after the
// environment and before validation; the CLI passes its flags this way.
func Load(dir, explicit string, overrides ...func(*Config)) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if !fileExists(explicit) {
			return nil, docerrors.New(docerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", explicit), nil)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	env, err := readDotEnv(dir)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return env[key]
	})
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, docerrors.ConfigError(fmt.Sprintf("invalid configuration: %v", err), err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range ProjectConfigFiles {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return docerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	c.Source = append(c.Source, path)
	return nil
}

// readDotEnv reads dir/.env without touching the process environment.
func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	if !fileExists(path) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, docerrors.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return env, nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if len(other.IndexingDirectories) > 0 {
		c.IndexingDirectories = other.IndexingDirectories
	}

	if other.Index.Prefix != "" {
		c.Index.Prefix = other.Index.Prefix
	}
	if other.Index.Alias != "" {
		c.Index.Alias = other.Index.Alias
	}
	if other.Index.SuffixLength != 0 {
		c.Index.SuffixLength = other.Index.SuffixLength
	}

	if other.Bulk.BatchSize != 0 {
		c.Bulk.BatchSize = other.Bulk.BatchSize
	}
	if other.Bulk.Timeout != 0 {
		c.Bulk.Timeout = other.Bulk.Timeout
	}
	if other.Bulk.Workers != 0 {
		c.Bulk.Workers = other.Bulk.Workers
	}
	if other.Bulk.RequestsPerSecond != 0 {
		c.Bulk.RequestsPerSecond = other.Bulk.RequestsPerSecond
	}
	if other.Bulk.MaxFailedRecords != 0 {
		c.Bulk.MaxFailedRecords = other.Bulk.MaxFailedRecords
	}

	if other.Cutover.Mode != "" {
		c.Cutover.Mode = other.Cutover.Mode
	}

	if other.Engine.Backend != "" {
		c.Engine.Backend = other.Engine.Backend
	}
	if other.Engine.Endpoint != "" {
		c.Engine.Endpoint = other.Engine.Endpoint
	}
	if other.Engine.Username != "" {
		c.Engine.Username = other.Engine.Username
	}
	if other.Engine.Password != "" {
		c.Engine.Password = other.Engine.Password
	}
	if other.Engine.InsecureSkipVerify {
		c.Engine.InsecureSkipVerify = true
	}
	if other.Engine.DataDir != "" {
		c.Engine.DataDir = other.Engine.DataDir
	}

	if len(other.Walker.Extensions) > 0 {
		c.Walker.Extensions = other.Walker.Extensions
	}
	if len(other.Walker.Exclude) > 0 {
		c.Walker.Exclude = append(c.Walker.Exclude, other.Walker.Exclude...)
	}

	if other.Ledger.Enabled != nil {
		enabled := *other.Ledger.Enabled
		c.Ledger.Enabled = &enabled
	}
	if other.Ledger.Path != "" {
		c.Ledger.Path = other.Ledger.Path
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File {
		c.Logging.File = true
	}
}

// applyEnvOverrides applies environment overrides read through getenv.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := getenv("SEARCH_ENDPOINT"); v != "" {
		c.Engine.Endpoint = v
	}
	if v := getenv("SEARCH_USER"); v != "" {
		c.Engine.Username = v
	}
	if v := getenv("SEARCH_PASS"); v != "" {
		c.Engine.Password = v
	}
	if v := getenv("DOCINDEX_BACKEND"); v != "" {
		c.Engine.Backend = strings.ToLower(v)
	}
	if v := getenv("DOCINDEX_ALIAS"); v != "" {
		c.Index.Alias = v
	}
	if v := getenv("DOCINDEX_PREFIX"); v != "" {
		c.Index.Prefix = v
	}
	if v := getenv("DOCINDEX_DATA_DIR"); v != "" {
		c.Engine.DataDir = v
	}
	if v := getenv("DOCINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.IndexingDirectories) == 0 {
		return fmt.Errorf("indexing_directories must list at least one directory")
	}
	for _, d := range c.IndexingDirectories {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("indexing_directories must not contain empty entries")
		}
	}

	if !indexNamePattern.MatchString(c.Index.Prefix) {
		return fmt.Errorf("index.prefix must be lowercase letters, digits, '_' or '-', got %q", c.Index.Prefix)
	}
	if c.Index.Alias == "" {
		return fmt.Errorf("index.alias must not be empty")
	}
	if c.Index.SuffixLength < 1 || c.Index.SuffixLength > 64 {
		return fmt.Errorf("index.suffix_length must be between 1 and 64, got %d", c.Index.SuffixLength)
	}

	if c.Bulk.BatchSize < 1 {
		return fmt.Errorf("bulk.batch_size must be positive, got %d", c.Bulk.BatchSize)
	}
	if c.Bulk.Timeout <= 0 {
		return fmt.Errorf("bulk.timeout must be positive, got %s", c.Bulk.Timeout)
	}
	if c.Bulk.Workers < 1 {
		return fmt.Errorf("bulk.workers must be positive, got %d", c.Bulk.Workers)
	}
	if c.Bulk.RequestsPerSecond < 0 {
		return fmt.Errorf("bulk.requests_per_second must be non-negative, got %f", c.Bulk.RequestsPerSecond)
	}
	if c.Bulk.MaxFailedRecords < 0 {
		return fmt.Errorf("bulk.max_failed_records must be non-negative, got %d", c.Bulk.MaxFailedRecords)
	}

	switch strings.ToLower(c.Cutover.Mode) {
	case ModeTwoStep, ModeAtomic:
	default:
		return fmt.Errorf("cutover.mode must be 'two-step' or 'atomic', got %s", c.Cutover.Mode)
	}

	switch c.Engine.Backend {
	case BackendOpenSearch, BackendBleve, BackendMemory:
	default:
		return fmt.Errorf("engine.backend must be 'opensearch', 'bleve' or 'memory', got %s", c.Engine.Backend)
	}
	if c.Engine.Backend == BackendBleve && c.Engine.DataDir == "" {
		return fmt.Errorf("engine.data_dir is required for the bleve backend")
	}

	if len(c.Walker.Extensions) == 0 {
		return fmt.Errorf("walker.extensions must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// LedgerEnabled reports whether runs are recorded.
func (c *Config) LedgerEnabled() bool {
	return c.Ledger.Enabled == nil || *c.Ledger.Enabled
}

// LedgerPath returns the ledger database path.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.Engine.DataDir, "runs.db")
}

// BleveDir returns where the bleve backend keeps its indices.
func (c *Config) BleveDir() string {
	return filepath.Join(c.Engine.DataDir, "bleve")
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Engine.Password != "" {
		out.Engine.Password = "********"
	}
	return &out
}

// YAML renders the configuration, password redacted.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

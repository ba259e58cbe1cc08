// Package config loads pyvalidate settings.
//
// Sources, lowest precedence first:
//  1. Built-in defaults
//  2. User config ($XDG_CONFIG_HOME/pyvalidate/pyvalidate.yaml)
//  3. Project config (.pyvalidate.yaml in the current directory or a parent)
//  4. An explicit file passed with --config
//  5. PYVALIDATE_* environment variables (PYVALIDATE_CATALOG_URL, ...)
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/integrations/pypi"
)

const (
	appName           = "pyvalidate"
	projectConfigName = ".pyvalidate.yaml"
	envPrefix         = "PYVALIDATE"
)

// Catalog cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Run history backends.
const (
	ResultsNone   = "none"
	ResultsFile   = "file"
	ResultsSQLite = "sqlite"
	ResultsMongo  = "mongo"
)

// Config holds all pyvalidate settings.
type Config struct {
	OutputDir    string         `mapstructure:"output_dir"`
	PackagesFile string         `mapstructure:"packages_file"`
	Python       string         `mapstructure:"python"`
	WorkDir      string         `mapstructure:"work_dir"`
	PlatformTags []string       `mapstructure:"platform_tags"`
	Catalog      CatalogConfig  `mapstructure:"catalog"`
	Timeouts     TimeoutsConfig `mapstructure:"timeouts"`
	Results      ResultsConfig  `mapstructure:"results"`
	Server       ServerConfig   `mapstructure:"server"`
}

// CatalogConfig configures the release catalog client.
type CatalogConfig struct {
	URL      string        `mapstructure:"url"`
	Cache    string        `mapstructure:"cache"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	CacheDir string        `mapstructure:"cache_dir"`
	RedisURL string        `mapstructure:"redis_url"`
	// Retries is the number of attempts per catalog request; 1 disables retry.
	Retries int `mapstructure:"retries"`
}

// TimeoutsConfig holds per-step timeouts. Zero means unbounded.
type TimeoutsConfig struct {
	Download time.Duration `mapstructure:"download"`
	Install  time.Duration `mapstructure:"install"`
	Test     time.Duration `mapstructure:"test"`
	Step     time.Duration `mapstructure:"step"`
}

// ResultsConfig selects where run history is kept.
type ResultsConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// ServerConfig configures the report server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from every source. explicit may be empty; when
// set, the file must exist.
func Load(explicit string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(appName)
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if project := findProjectConfig(); project != "" {
		if err := mergeFile(v, project); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}
	if explicit != "" {
		if err := mergeFile(v, explicit); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", explicit, err)
		}
	}

	bindEnv(v)
	return decode(v)
}

// LoadFromPath loads defaults plus a single file, ignoring other sources.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func mergeFile(v *viper.Viper, path string) error {
	pv := viper.New()
	pv.SetConfigFile(path)
	if err := pv.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(pv.AllSettings())
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Connection strings may reference secrets as ${VAR}.
	cfg.Catalog.RedisURL = os.ExpandEnv(cfg.Catalog.RedisURL)
	cfg.Results.MongoURI = os.ExpandEnv(cfg.Results.MongoURI)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and ranges. Errors carry INVALID_CONFIG.
func (c *Config) Validate() error {
	if err := errors.ValidateURL(c.Catalog.URL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "catalog.url")
	}
	switch c.Catalog.Cache {
	case CacheNone, CacheFile:
	case CacheRedis:
		if c.Catalog.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "catalog.redis_url is required for the redis cache")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown catalog.cache %q", c.Catalog.Cache)
	}
	if c.Catalog.Retries < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "catalog.retries must be at least 1")
	}
	if c.Catalog.CacheTTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "catalog.cache_ttl must not be negative")
	}

	t := c.Timeouts
	if t.Download < 0 || t.Install < 0 || t.Test < 0 || t.Step < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "timeouts must not be negative")
	}

	switch c.Results.Backend {
	case ResultsNone, ResultsFile, ResultsSQLite:
	case ResultsMongo:
		if c.Results.MongoURI == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "results.mongo_uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown results.backend %q", c.Results.Backend)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir: "coverage_reports",
		Python:    "python3",
		Catalog: CatalogConfig{
			URL:      pypi.DefaultBaseURL,
			Cache:    CacheNone,
			CacheTTL: 24 * time.Hour,
			Retries:  1,
		},
		Results: ResultsConfig{
			Backend:       ResultsFile,
			MongoDatabase: "pyvalidate",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("packages_file", "")
	v.SetDefault("python", d.Python)
	v.SetDefault("work_dir", "")
	v.SetDefault("platform_tags", []string{})

	v.SetDefault("catalog.url", d.Catalog.URL)
	v.SetDefault("catalog.cache", d.Catalog.Cache)
	v.SetDefault("catalog.cache_ttl", d.Catalog.CacheTTL.String())
	v.SetDefault("catalog.cache_dir", "")
	v.SetDefault("catalog.redis_url", "")
	v.SetDefault("catalog.retries", d.Catalog.Retries)

	v.SetDefault("timeouts.download", "0s")
	v.SetDefault("timeouts.install", "0s")
	v.SetDefault("timeouts.test", "0s")
	v.SetDefault("timeouts.step", "0s")

	v.SetDefault("results.backend", d.Results.Backend)
	v.SetDefault("results.path", "")
	v.SetDefault("results.mongo_uri", "")
	v.SetDefault("results.mongo_database", d.Results.MongoDatabase)

	v.SetDefault("server.addr", d.Server.Addr)
}

// UserConfigPath returns the path of the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), appName+".yaml")
}

// ProjectConfigPath returns the project config file in effect, or "".
func ProjectConfigPath() string {
	return findProjectConfig()
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// findProjectConfig searches for .pyvalidate.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// DataDir returns $XDG_DATA_HOME/pyvalidate (~/.local/share/pyvalidate).
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

// CacheDir returns the catalog file cache directory: catalog.cache_dir when
// set, else $XDG_CACHE_HOME/pyvalidate (~/.cache/pyvalidate).
func (c *Config) CacheDir() string {
	if c.Catalog.CacheDir != "" {
		return c.Catalog.CacheDir
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cache", appName)
	}
	return filepath.Join(home, ".cache", appName)
}

// ResultsPath returns the history location for the file and sqlite backends.
func (c *Config) ResultsPath() string {
	if c.Results.Path != "" {
		return c.Results.Path
	}
	if c.Results.Backend == ResultsSQLite {
		return filepath.Join(DataDir(), "runs.db")
	}
	return filepath.Join(DataDir(), "runs")
}

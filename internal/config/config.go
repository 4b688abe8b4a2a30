package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked up when none is given
const DefaultPath = "config/config.yaml"

type Config struct {
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	Repos    Repos    `yaml:"repos"`
	GitHub   GitHub   `yaml:"github"`
	Sync     Sync     `yaml:"sync"`
	Log      Log      `yaml:"log"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Cache struct {
	Path string `yaml:"path"`
}

type Repos struct {
	Titledb     Repo `yaml:"titledb"`
	Performance Repo `yaml:"performance"`
}

type Repo struct {
	URL   string `yaml:"url"`
	Path  string `yaml:"path"`
	Owner string `yaml:"owner"` // GitHub owner, derived from URL when empty
	Name  string `yaml:"name"`  // GitHub repository name, derived from URL when empty
}

// Slug returns "owner/name"
func (r Repo) Slug() string {
	return r.Owner + "/" + r.Name
}

type GitHub struct {
	Endpoint string  `yaml:"endpoint"`
	Token    string  `yaml:"token"`
	RPS      float64 `yaml:"rps"`
	Burst    int     `yaml:"burst"`
	PageSize int     `yaml:"page_size"`
}

type Sync struct {
	BatchSize int `yaml:"batch_size"`
}

type Log struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Filename   string `yaml:"filename"`    // log file path, empty for stdout only
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`    // compress rotated files
}

var config *Config

// Load loads the configuration from the default config file
func Load() (*Config, error) {
	return LoadFromFile(DefaultPath)
}

// LoadFromFile loads the configuration from the specified file. A missing file
// yields the defaults. Environment variables override file values.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureDirs(cfg); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	config = cfg
	return cfg, nil
}

// Get returns the last loaded configuration
func Get() *Config {
	return config
}

// Validate checks the settings that have no sensible default
func (c *Config) Validate() error {
	if c.Repos.Titledb.URL == "" {
		return errors.New("repos.titledb.url is required")
	}
	if c.Repos.Performance.URL == "" {
		return errors.New("repos.performance.url is required")
	}
	if c.Repos.Performance.Owner == "" || c.Repos.Performance.Name == "" {
		return fmt.Errorf("cannot derive GitHub owner/name from %q, set repos.performance.owner and name", c.Repos.Performance.URL)
	}
	if c.Sync.BatchSize < 0 {
		return errors.New("sync.batch_size must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("NXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github.token", "NXSYNC_GITHUB_TOKEN", "GITHUB_TOKEN")

	setString(v, "database.path", &cfg.Database.Path)
	setString(v, "cache.path", &cfg.Cache.Path)
	setString(v, "repos.titledb.url", &cfg.Repos.Titledb.URL)
	setString(v, "repos.performance.url", &cfg.Repos.Performance.URL)
	setString(v, "github.endpoint", &cfg.GitHub.Endpoint)
	setString(v, "github.token", &cfg.GitHub.Token)
	setString(v, "log.level", &cfg.Log.Level)
	setString(v, "log.filename", &cfg.Log.Filename)
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/nxsync.db"
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "data/cache"
	}
	if cfg.Repos.Titledb.Path == "" {
		cfg.Repos.Titledb.Path = "data/repos/titledb"
	}
	if cfg.Repos.Performance.Path == "" {
		cfg.Repos.Performance.Path = "data/repos/performance"
	}
	perf := &cfg.Repos.Performance
	if perf.Owner == "" || perf.Name == "" {
		owner, name := ownerAndName(perf.URL)
		if perf.Owner == "" {
			perf.Owner = owner
		}
		if perf.Name == "" {
			perf.Name = name
		}
	}
	if cfg.GitHub.Endpoint == "" {
		cfg.GitHub.Endpoint = "https://api.github.com/graphql"
	}
	if cfg.GitHub.RPS <= 0 {
		cfg.GitHub.RPS = 2
	}
	if cfg.GitHub.Burst <= 0 {
		cfg.GitHub.Burst = 1
	}
	if cfg.GitHub.PageSize <= 0 {
		cfg.GitHub.PageSize = 50
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 500
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSize == 0 {
		cfg.Log.MaxSize = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAge == 0 {
		cfg.Log.MaxAge = 28
	}
}

// ownerAndName extracts "owner" and "name" from a GitHub clone URL
func ownerAndName(raw string) (string, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], strings.TrimSuffix(parts[len(parts)-1], ".git")
}

// ensureDirs creates the parent directories of everything the sync writes
func ensureDirs(cfg *Config) error {
	dirs := []string{
		filepath.Dir(cfg.Database.Path),
		cfg.Cache.Path,
		filepath.Dir(cfg.Repos.Titledb.Path),
		filepath.Dir(cfg.Repos.Performance.Path),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

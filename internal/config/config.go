package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go-covid-pipeline/pkg/utils"
)

const (
	defaultCachePath    = "data/owid-covid-data.csv"
	defaultSourceURL    = "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/owid-covid-data.csv"
	defaultDBPath       = "pipeline.db"
	defaultExportDir    = "exports"
	defaultHTTPAddr     = ":8080"
	defaultFetchTimeout = 2 * time.Minute
	defaultLogLevel     = "info"

	envPrefix = "COVID_"
)

// Config holds every setting of the CLI and the API server.
type Config struct {
	CachePath    string        `yaml:"cache_path"`
	SourceURL    string        `yaml:"source_url"`
	DBPath       string        `yaml:"db_path"`
	ExportDir    string        `yaml:"export_dir"`
	HTTPAddr     string        `yaml:"http_addr"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CachePath:    defaultCachePath,
		SourceURL:    defaultSourceURL,
		DBPath:       defaultDBPath,
		ExportDir:    defaultExportDir,
		HTTPAddr:     defaultHTTPAddr,
		FetchTimeout: defaultFetchTimeout,
		LogLevel:     defaultLogLevel,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if path
// is non-empty), then COVID_* environment variables. A .env file in the working
// directory is loaded into the environment first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.CachePath = getenv("CACHE_PATH", c.CachePath)
	c.SourceURL = getenv("SOURCE_URL", c.SourceURL)
	c.DBPath = getenv("DB_PATH", c.DBPath)
	c.ExportDir = getenv("EXPORT_DIR", c.ExportDir)
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.FetchTimeout = utils.ParseDuration(getenv("FETCH_TIMEOUT", ""), c.FetchTimeout)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
}

// Validate rejects settings no command can work with.
func (c Config) Validate() error {
	if c.CachePath == "" && c.SourceURL == "" {
		return fmt.Errorf("either cache_path or source_url must be set")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative, got %s", c.FetchTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

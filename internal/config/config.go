// Package config loads and validates relay configuration via Viper.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Extract ExtractConfig `mapstructure:"extract"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Publish PublishConfig `mapstructure:"publish"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ScrapeConfig governs upstream fetch behavior and the key quota.
type ScrapeConfig struct {
	Endpoint             string `mapstructure:"endpoint"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	DirectTimeoutSeconds int    `mapstructure:"direct_timeout_seconds"`
	MonthlyCap           int    `mapstructure:"monthly_cap"`
	UserAgent            string `mapstructure:"user_agent"`
	BatchConcurrency     int    `mapstructure:"batch_concurrency"`
}

// ExtractConfig tunes the extraction pipeline thresholds.
type ExtractConfig struct {
	MinParagraphLen   int `mapstructure:"min_paragraph_len"`
	LooseParagraphLen int `mapstructure:"loose_paragraph_len"`
	RawExcerptLen     int `mapstructure:"raw_excerpt_len"`
}

// LedgerConfig selects and configures key-usage persistence.
type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// ArchiveConfig controls best-effort raw HTML capture.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PublishConfig controls best-effort completion events.
type PublishConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGERELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 90)
	v.SetDefault("scrape.endpoint", "https://api.scraperapi.com/")
	v.SetDefault("scrape.timeout_seconds", 60)
	v.SetDefault("scrape.direct_timeout_seconds", 15)
	v.SetDefault("scrape.monthly_cap", 1000)
	v.SetDefault("scrape.batch_concurrency", 4)
	v.SetDefault("extract.min_paragraph_len", 50)
	v.SetDefault("extract.loose_paragraph_len", 20)
	v.SetDefault("extract.raw_excerpt_len", 2000)
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "key_usage.json")
	v.SetDefault("ledger.table", "key_ledger")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.dir", "captures")
	v.SetDefault("archive.prefix", "captures")
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.topic", "scrape-events")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Scrape.MonthlyCap <= 0 {
		return fmt.Errorf("scrape.monthly_cap must be > 0")
	}
	switch c.Ledger.Backend {
	case "file":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path must be set for the file backend")
		}
	case "postgres":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be file or postgres")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "local":
			if c.Archive.Dir == "" {
				return fmt.Errorf("archive.dir must be set for the local backend")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend must be local or gcs")
		}
	}
	if c.Publish.Enabled && c.Publish.ProjectID == "" {
		return fmt.Errorf("publish.project_id must be set when publishing is enabled")
	}
	return nil
}

// keyEnvPrefix names the numbered credential entries, e.g.
// SCRAPER_API_KEY_1, SCRAPER_API_KEY_2, ...
const keyEnvPrefix = "SCRAPER_API_KEY_"

// keyEnvSingle is the plain single-credential entry accepted when no
// numbered entries exist.
const keyEnvSingle = "SCRAPER_API_KEY"

// LoadKeys reads the credential pool from the environment. Numbered
// entries are returned in ascending suffix order; suffix order defines
// rotation order. An empty result puts the relay in direct-fetch mode.
func LoadKeys(environ []string) []string {
	type numbered struct {
		n     int
		value string
	}
	var found []numbered
	single := ""
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || value == "" {
			continue
		}
		if name == keyEnvSingle {
			single = value
			continue
		}
		suffix, hasPrefix := strings.CutPrefix(name, keyEnvPrefix)
		if !hasPrefix {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		found = append(found, numbered{n: n, value: value})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	keys := make([]string, 0, len(found))
	for _, f := range found {
		keys = append(keys, f.value)
	}
	if len(keys) == 0 && single != "" {
		keys = append(keys, single)
	}
	return keys
}

// LoadKeysFromEnv is LoadKeys over the process environment.
func LoadKeysFromEnv() []string {
	return LoadKeys(os.Environ())
}

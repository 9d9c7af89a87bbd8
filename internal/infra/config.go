package infra

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Sensitive or deploy-specific
// values can be overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	Auction struct {
		GracePeriodSec  int `yaml:"grace_period_sec"`
		ExtensionSec    int `yaml:"extension_sec"`
		MaxDurationDays int `yaml:"max_duration_days"`
	} `yaml:"auction"`

	Mint struct {
		Owner      string          `yaml:"owner"`      // hex address that controls the sale
		Collection string          `yaml:"collection"` // hex address of the sale collection
		Price      decimal.Decimal `yaml:"price"`
		Supply     uint64          `yaml:"supply"`
		QuotaEach  uint64          `yaml:"quota_each"`
	} `yaml:"mint"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Media struct {
		CacheDir    string `yaml:"cache_dir"`
		URLTemplate string `yaml:"url_template"` // e.g. "https://cdn.example.com/%s/%d.png"
		ThumbSize   int    `yaml:"thumb_size"`
	} `yaml:"media"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment overrides
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// GracePeriod returns the configured anti-sniping grace window.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Auction.GracePeriodSec) * time.Second
}

// Extension returns the configured deadline extension.
func (c *Config) Extension() time.Duration {
	return time.Duration(c.Auction.ExtensionSec) * time.Second
}

// MaxDuration returns the configured upper bound on auction durations, zero
// when unset.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Auction.MaxDurationDays) * 24 * time.Hour
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address is required")
	}
	if c.Auction.GracePeriodSec < 0 || c.Auction.ExtensionSec < 0 || c.Auction.MaxDurationDays < 0 {
		return fmt.Errorf("auction timing values must not be negative")
	}
	if c.Auction.GracePeriodSec > 0 && c.Auction.ExtensionSec == 0 {
		return fmt.Errorf("extension is required when a grace period is set")
	}
	if c.Mint.Price.IsNegative() {
		return fmt.Errorf("mint price must not be negative")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal path is required")
	}
	if c.Media.URLTemplate != "" && c.Media.CacheDir == "" {
		return fmt.Errorf("media cache dir is required when a URL template is set")
	}
	return nil
}

// overrideWithEnv replaces settings for which environment variables exist.
func overrideWithEnv(cfg *Config) {
	if listen := os.Getenv("AUCTION_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if path := os.Getenv("AUCTION_JOURNAL_PATH"); path != "" {
		cfg.Journal.Path = path
	}
	if level := os.Getenv("AUCTION_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

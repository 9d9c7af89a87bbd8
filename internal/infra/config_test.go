package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

const validYAML = `
app:
  name: auction
  version: "1.0"
server:
  listen: ":8080"
auction:
  grace_period_sec: 300
  extension_sec: 120
  max_duration_days: 14
mint:
  price: "0.5"
journal:
  path: data/journal.db
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("parses and converts durations", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Server.Listen != ":8080" {
			t.Fatalf("listen = %q", cfg.Server.Listen)
		}
		if cfg.GracePeriod() != 5*time.Minute || cfg.Extension() != 2*time.Minute {
			t.Fatalf("timing %v/%v", cfg.GracePeriod(), cfg.Extension())
		}
		if cfg.MaxDuration() != 14*24*time.Hour {
			t.Fatalf("max duration %v", cfg.MaxDuration())
		}
		if !cfg.Mint.Price.Equal(mustDec(t, "0.5")) {
			t.Fatalf("price %s", cfg.Mint.Price)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("env overrides win", func(t *testing.T) {
		t.Setenv("AUCTION_LISTEN", ":9090")
		t.Setenv("AUCTION_JOURNAL_PATH", "/tmp/override.db")
		cfg, err := LoadConfig(writeConfig(t, validYAML))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Server.Listen != ":9090" || cfg.Journal.Path != "/tmp/override.db" {
			t.Fatalf("overrides not applied: %q %q", cfg.Server.Listen, cfg.Journal.Path)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing listen", `
journal:
  path: data/journal.db
`},
		{"missing journal path", `
server:
  listen: ":8080"
`},
		{"negative grace period", `
server:
  listen: ":8080"
journal:
  path: data/journal.db
auction:
  grace_period_sec: -1
`},
		{"negative max duration", `
server:
  listen: ":8080"
journal:
  path: data/journal.db
auction:
  max_duration_days: -1
`},
		{"grace without extension", `
server:
  listen: ":8080"
journal:
  path: data/journal.db
auction:
  grace_period_sec: 300
`},
		{"media template without cache dir", `
server:
  listen: ":8080"
journal:
  path: data/journal.db
media:
  url_template: "https://cdn.example.com/%s/%d.png"
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

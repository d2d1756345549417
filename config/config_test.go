package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesConfig(t *testing.T) {
	path := writeConfig(t, `
RPCAddress = ":9000"
MetricsAddress = ":9100"
DataDir = "/tmp/hodl-test"
Environment = "staging"
RPCAuthToken = "secret"
MinInitialPenaltyPercent = 5
MinCommitPeriodSeconds = 60
MaxCommitPeriodSeconds = 3600

[[Assets]]
Symbol = "HODL"
TransferFeeBPS = 0

[[Assets]]
Symbol = "FEE"
TransferFeeBPS = 250
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" {
		t.Fatalf("RPCAddress = %q", cfg.RPCAddress)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("Environment = %q", cfg.Environment)
	}
	if len(cfg.Assets) != 2 || cfg.Assets[1].TransferFeeBPS != 250 {
		t.Fatalf("Assets = %+v", cfg.Assets)
	}
	params := cfg.Params()
	if params.MinInitialPenaltyPercent != 5 || params.MinCommitPeriod != 60 || params.MaxCommitPeriod != 3600 {
		t.Fatalf("params = %+v", params)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Assets) == 0 {
		t.Fatal("default config has no assets")
	}

	// Reloading the generated file round-trips.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.RPCAddress != cfg.RPCAddress || again.DataDir != cfg.DataDir {
		t.Fatalf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		return &Config{
			RPCAddress:               ":8080",
			DataDir:                  "./data",
			MinInitialPenaltyPercent: 1,
			MinCommitPeriodSeconds:   10,
			MaxCommitPeriodSeconds:   100,
			Assets:                   []Asset{{Symbol: "HODL"}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty rpc address", func(c *Config) { c.RPCAddress = " " }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero min penalty", func(c *Config) { c.MinInitialPenaltyPercent = 0 }},
		{"penalty above cap", func(c *Config) { c.MinInitialPenaltyPercent = 101 }},
		{"inverted commit bounds", func(c *Config) { c.MaxCommitPeriodSeconds = 5 }},
		{"no assets", func(c *Config) { c.Assets = nil }},
		{"blank asset symbol", func(c *Config) { c.Assets = []Asset{{Symbol: "  "}} }},
		{"duplicate asset", func(c *Config) { c.Assets = []Asset{{Symbol: "HODL"}, {Symbol: "HODL"}} }},
		{"fee too high", func(c *Config) { c.Assets = []Asset{{Symbol: "HODL", TransferFeeBPS: 10_000}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("validation passed, want error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
}

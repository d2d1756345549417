package config

import (
	"os"
	"path/filepath"
	"strings"

	"hodlpool/native/hodl"

	"github.com/BurntSushi/toml"
)

// Asset declares a token the pool service accepts, together with the transfer
// fee its ledger charges in basis points. A non-zero fee exercises the
// fee-on-transfer tolerance of the deposit path.
type Asset struct {
	Symbol         string `toml:"Symbol"`
	TransferFeeBPS uint64 `toml:"TransferFeeBPS"`
}

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`
	RPCAuthToken   string `toml:"RPCAuthToken"`

	MinInitialPenaltyPercent uint64 `toml:"MinInitialPenaltyPercent"`
	MinCommitPeriodSeconds   uint64 `toml:"MinCommitPeriodSeconds"`
	MaxCommitPeriodSeconds   uint64 `toml:"MaxCommitPeriodSeconds"`

	Assets []Asset `toml:"Assets"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Params maps the commitment bounds into engine parameters.
func (c *Config) Params() hodl.Params {
	return hodl.Params{
		MinInitialPenaltyPercent: c.MinInitialPenaltyPercent,
		MinCommitPeriod:          c.MinCommitPeriodSeconds,
		MaxCommitPeriod:          c.MaxCommitPeriodSeconds,
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	defaults := hodl.DefaultParams()
	cfg := &Config{
		RPCAddress:               ":8080",
		MetricsAddress:           ":9090",
		DataDir:                  "./hodl-data",
		Environment:              "local",
		MinInitialPenaltyPercent: defaults.MinInitialPenaltyPercent,
		MinCommitPeriodSeconds:   defaults.MinCommitPeriod,
		MaxCommitPeriodSeconds:   defaults.MaxCommitPeriod,
		Assets: []Asset{
			{Symbol: "HODL", TransferFeeBPS: 0},
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

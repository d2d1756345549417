package config

import (
	"fmt"
	"strings"

	"hodlpool/native/hodl"
)

const maxTransferFeeBPS = 10_000

// Validate checks the configuration for internal consistency before the
// service starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MinInitialPenaltyPercent > hodl.MaxInitialPenaltyPercent {
		return fmt.Errorf("config: MinInitialPenaltyPercent exceeds %d", hodl.MaxInitialPenaltyPercent)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("config: at least one asset must be configured")
	}
	seen := make(map[string]struct{}, len(c.Assets))
	for i, asset := range c.Assets {
		symbol := strings.TrimSpace(asset.Symbol)
		if symbol == "" {
			return fmt.Errorf("config: asset %d has an empty symbol", i)
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: duplicate asset symbol %q", symbol)
		}
		seen[symbol] = struct{}{}
		if asset.TransferFeeBPS >= maxTransferFeeBPS {
			return fmt.Errorf("config: asset %q transfer fee must be below %d bps", symbol, maxTransferFeeBPS)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/oprollup/oprollup/rollup"
)

// fileConfig is the YAML shape of a settlement config override file:
//
//	operator_bond_wei: "1000000000000000000"
//	challenge_period: 50400
type fileConfig struct {
	OperatorBondWei string `yaml:"operator_bond_wei"`
	ChallengePeriod uint64 `yaml:"challenge_period"`
}

// loadConfig returns the default settlement config, overridden by the YAML
// file at path when one is given.
func loadConfig(path string) (rollup.SettlementConfig, error) {
	cfg := rollup.DefaultSettlementConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return rollup.SettlementConfig{}, fmt.Errorf("reading config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return rollup.SettlementConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	if fc.OperatorBondWei != "" {
		bond, err := uint256.FromDecimal(fc.OperatorBondWei)
		if err != nil {
			return rollup.SettlementConfig{}, fmt.Errorf("parsing operator_bond_wei: %w", err)
		}
		cfg.OperatorBond = bond
	}
	if fc.ChallengePeriod != 0 {
		cfg.ChallengePeriod = fc.ChallengePeriod
	}
	if err := cfg.Validate(); err != nil {
		return rollup.SettlementConfig{}, err
	}
	return cfg, nil
}

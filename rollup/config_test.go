package rollup

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestDefaultSettlementConfig(t *testing.T) {
	cfg := DefaultSettlementConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	oneUnit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
	if !cfg.OperatorBond.Eq(oneUnit) {
		t.Errorf("bond = %s, want 1e18", cfg.OperatorBond)
	}
	if cfg.ChallengePeriod != 50400 {
		t.Errorf("challenge period = %d, want 50400", cfg.ChallengePeriod)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SettlementConfig
		want error
	}{
		{"nil bond", SettlementConfig{ChallengePeriod: 10}, ErrConfigZeroBond},
		{"zero bond", SettlementConfig{OperatorBond: new(uint256.Int), ChallengePeriod: 10}, ErrConfigZeroBond},
		{"zero window", SettlementConfig{OperatorBond: uint256.NewInt(1)}, ErrConfigZeroWindow},
		{"valid", SettlementConfig{OperatorBond: uint256.NewInt(1), ChallengePeriod: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

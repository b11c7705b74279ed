package rollup

import (
	"errors"

	"github.com/holiman/uint256"
)

// Settlement configuration errors.
var (
	ErrConfigZeroBond   = errors.New("rollup: operator bond must be positive")
	ErrConfigZeroWindow = errors.New("rollup: challenge period must be positive")
)

// DefaultChallengePeriod is the challenge window in host blocks, roughly
// seven days at 12-second blocks.
const DefaultChallengePeriod = 50400

// SettlementConfig controls the settlement contract parameters.
type SettlementConfig struct {
	// OperatorBond is the minimum native value escrowed per block submission.
	OperatorBond *uint256.Int

	// ChallengePeriod is the number of host blocks after submission during
	// which a block may be challenged.
	ChallengePeriod uint64
}

// DefaultSettlementConfig returns the production parameters: a one-unit
// (1e18 wei) bond and a ~7 day challenge window.
func DefaultSettlementConfig() SettlementConfig {
	bond := new(uint256.Int)
	bond.Exp(uint256.NewInt(10), uint256.NewInt(18))
	return SettlementConfig{
		OperatorBond:    bond,
		ChallengePeriod: DefaultChallengePeriod,
	}
}

// Validate checks the configuration for usability.
func (c SettlementConfig) Validate() error {
	if c.OperatorBond == nil || c.OperatorBond.IsZero() {
		return ErrConfigZeroBond
	}
	if c.ChallengePeriod == 0 {
		return ErrConfigZeroWindow
	}
	return nil
}

package rollup

import (
	"github.com/holiman/uint256"

	"github.com/oprollup/oprollup/core/types"
)

// EventType identifies a settlement event.
type EventType uint8

const (
	EventDeposit EventType = iota + 1
	EventRollupBlockSubmitted
	EventChallenge
	EventBlockFinalized
	EventWithdrawalRequested
	EventWithdrawalProcessed
)

// String returns the event name as emitted at the ABI boundary.
func (t EventType) String() string {
	switch t {
	case EventDeposit:
		return "Deposit"
	case EventRollupBlockSubmitted:
		return "RollupBlockSubmitted"
	case EventChallenge:
		return "Challenge"
	case EventBlockFinalized:
		return "BlockFinalized"
	case EventWithdrawalRequested:
		return "WithdrawalRequested"
	case EventWithdrawalProcessed:
		return "WithdrawalProcessed"
	default:
		return "Unknown"
	}
}

// Event is one entry in the settlement event log. Fields not meaningful for
// a given type are zero.
type Event struct {
	// Type identifies the event.
	Type EventType

	// User is the depositor, challenger, or withdrawer.
	User types.Address

	// Operator is the block proposer, for submission, challenge, and
	// finalization events.
	Operator types.Address

	// Amount is the value moved, where applicable.
	Amount *uint256.Int

	// BlockNumber is the rollup block the event concerns.
	BlockNumber uint64

	// StateRoot and TxRoot are set on submission events.
	StateRoot types.Hash
	TxRoot    types.Hash

	// RequestID is set on withdrawal events.
	RequestID types.Hash
}

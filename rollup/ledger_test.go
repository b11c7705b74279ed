package rollup

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/oprollup/oprollup/core/types"
)

func TestMemoryLedgerCreditAndTransfer(t *testing.T) {
	ledger := NewMemoryLedger()
	alice := types.BytesToAddress([]byte{0x01})
	bob := types.BytesToAddress([]byte{0x02})

	ledger.Mint(alice, uint256.NewInt(100))
	if err := ledger.Credit(alice, uint256.NewInt(60)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := ledger.ContractBalance(); got.Uint64() != 60 {
		t.Errorf("contract balance = %d, want 60", got.Uint64())
	}
	if got := ledger.BalanceOf(alice); got.Uint64() != 40 {
		t.Errorf("alice balance = %d, want 40", got.Uint64())
	}

	if err := ledger.Credit(alice, uint256.NewInt(50)); err != ErrLedgerInsufficient {
		t.Errorf("over-credit: expected ErrLedgerInsufficient, got %v", err)
	}

	if err := ledger.Transfer(bob, uint256.NewInt(25)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := ledger.BalanceOf(bob); got.Uint64() != 25 {
		t.Errorf("bob balance = %d, want 25", got.Uint64())
	}
	if err := ledger.Transfer(bob, uint256.NewInt(100)); err != ErrLedgerInsufficient {
		t.Errorf("over-transfer: expected ErrLedgerInsufficient, got %v", err)
	}
	if err := ledger.Transfer(types.Address{}, uint256.NewInt(1)); err != ErrLedgerZeroAddress {
		t.Errorf("zero recipient: expected ErrLedgerZeroAddress, got %v", err)
	}
}

func TestBlockClock(t *testing.T) {
	clock := NewBlockClock(100, 1000)
	if clock.BlockNumber() != 100 || clock.Timestamp() != 1000 {
		t.Fatal("clock must start at the given block and timestamp")
	}
	clock.Advance(5)
	if clock.BlockNumber() != 105 {
		t.Errorf("block = %d, want 105", clock.BlockNumber())
	}
	if clock.Timestamp() != 1060 {
		t.Errorf("timestamp = %d, want 1060 (12s blocks)", clock.Timestamp())
	}
}

func TestWithdrawalIDUniqueness(t *testing.T) {
	alice := types.BytesToAddress([]byte{0x01})
	base := withdrawalID(alice, uint256.NewInt(10), 1, 1000)

	if withdrawalID(alice, uint256.NewInt(10), 1, 1000) != base {
		t.Error("id must be deterministic")
	}
	if withdrawalID(alice, uint256.NewInt(11), 1, 1000) == base {
		t.Error("id must bind the amount")
	}
	if withdrawalID(alice, uint256.NewInt(10), 2, 1000) == base {
		t.Error("id must bind the rollup block number")
	}
	if withdrawalID(alice, uint256.NewInt(10), 1, 1001) == base {
		t.Error("id must bind the timestamp")
	}
}

package rollup

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/oprollup/oprollup/core/types"
)

// Ledger errors.
var (
	ErrLedgerInsufficient = errors.New("rollup: insufficient native balance for transfer")
	ErrLedgerZeroAddress  = errors.New("rollup: transfer to zero address")
)

// LedgerBridge is the settlement contract's view of the host ledger. Credit
// records native value arriving with a payable operation; Transfer sends
// native value out. Both must be atomic: a returned error means no value
// moved.
type LedgerBridge interface {
	Credit(from types.Address, amount *uint256.Int) error
	Transfer(to types.Address, amount *uint256.Int) error
}

// Host provides the settlement contract's clock: the monotonic block counter
// that measures the challenge window, and a timestamp mixed into withdrawal
// request ids.
type Host interface {
	BlockNumber() uint64
	Timestamp() uint64
}

// MemoryLedger is an in-process LedgerBridge tracking the contract's native
// balance and per-address external balances. Thread-safe. It backs tests and
// the CLI simulation driver.
type MemoryLedger struct {
	mu       sync.Mutex
	contract *uint256.Int
	external map[types.Address]*uint256.Int
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		contract: new(uint256.Int),
		external: make(map[types.Address]*uint256.Int),
	}
}

// Mint seeds an external address with native value, so a simulated caller
// has something to deposit or bond.
func (l *MemoryLedger) Mint(addr types.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceLocked(addr).Add(l.balanceLocked(addr), amount)
}

// Credit moves native value from an external address into the contract.
func (l *MemoryLedger) Credit(from types.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(from)
	if bal.Lt(amount) {
		return ErrLedgerInsufficient
	}
	bal.Sub(bal, amount)
	l.contract.Add(l.contract, amount)
	return nil
}

// Transfer moves native value from the contract to an external address.
func (l *MemoryLedger) Transfer(to types.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return ErrLedgerZeroAddress
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.contract.Lt(amount) {
		return ErrLedgerInsufficient
	}
	l.contract.Sub(l.contract, amount)
	bal := l.balanceLocked(to)
	bal.Add(bal, amount)
	return nil
}

// ContractBalance returns the contract's native balance.
func (l *MemoryLedger) ContractBalance() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.contract)
}

// BalanceOf returns an external address's native balance.
func (l *MemoryLedger) BalanceOf(addr types.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balanceLocked(addr))
}

func (l *MemoryLedger) balanceLocked(addr types.Address) *uint256.Int {
	bal, ok := l.external[addr]
	if !ok {
		bal = new(uint256.Int)
		l.external[addr] = bal
	}
	return bal
}

// BlockClock is a manually advanced Host for tests and simulations.
type BlockClock struct {
	mu        sync.Mutex
	block     uint64
	timestamp uint64
}

// NewBlockClock creates a clock at the given host block and timestamp.
func NewBlockClock(block, timestamp uint64) *BlockClock {
	return &BlockClock{block: block, timestamp: timestamp}
}

// Advance moves the clock forward by n blocks (12 seconds each).
func (c *BlockClock) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block += n
	c.timestamp += n * 12
}

// BlockNumber returns the current host block.
func (c *BlockClock) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

// Timestamp returns the current host timestamp.
func (c *BlockClock) Timestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp
}

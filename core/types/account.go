package types

import "github.com/holiman/uint256"

// Account is the layer-2 state of a single principal: a non-negative balance
// and a nonce that only grows. The zero value is a usable empty account.
type Account struct {
	// Balance is the account balance in wei.
	Balance *uint256.Int

	// Nonce counts successful outbound transfers, starting at 0.
	Nonce uint64
}

// NewAccount creates an account with the given balance and nonce. A nil
// balance is treated as zero.
func NewAccount(balance *uint256.Int, nonce uint64) Account {
	if balance == nil {
		balance = new(uint256.Int)
	}
	return Account{Balance: new(uint256.Int).Set(balance), Nonce: nonce}
}

// Copy returns a deep copy of the account.
func (a Account) Copy() Account {
	return NewAccount(a.Balance, a.Nonce)
}

// BalanceOrZero returns the balance, substituting zero for nil. Accounts
// travel through proofs as values; this keeps arithmetic nil-safe.
func (a Account) BalanceOrZero() *uint256.Int {
	if a.Balance == nil {
		return new(uint256.Int)
	}
	return a.Balance
}

// Equal reports whether two accounts have the same balance and nonce.
func (a Account) Equal(b Account) bool {
	return a.Nonce == b.Nonce && a.BalanceOrZero().Eq(b.BalanceOrZero())
}

// Encode serializes the account as balance(32) || nonce(32), the canonical
// per-account encoding committed under an address in a state leaf.
func (a Account) Encode() []byte {
	buf := make([]byte, 64)
	bal := a.BalanceOrZero().Bytes32()
	copy(buf[:32], bal[:])
	nonce := new(uint256.Int).SetUint64(a.Nonce).Bytes32()
	copy(buf[32:], nonce[:])
	return buf
}

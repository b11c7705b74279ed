// Package core implements deterministic single-transaction execution over an
// account pair. Execution is pure: inputs are never mutated, the first failed
// check decides the result, and both accounts pass through unchanged on any
// non-success outcome.
package core

import (
	"github.com/holiman/uint256"

	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/crypto"
)

// TxResult classifies the outcome of executing one transaction.
type TxResult uint8

const (
	// TxSuccess means the transfer applied.
	TxSuccess TxResult = iota

	// TxInsufficientBalance means the sender cannot cover amount + fee.
	TxInsufficientBalance

	// TxInvalidNonce means the transaction nonce does not match the sender
	// account nonce.
	TxInvalidNonce

	// TxInvalidSignature means the transaction failed the structural checks
	// (zero or identical addresses, zero amount). Execute does not verify the
	// signature; VerifySignature does that separately.
	TxInvalidSignature
)

// String returns the result name.
func (r TxResult) String() string {
	switch r {
	case TxSuccess:
		return "Success"
	case TxInsufficientBalance:
		return "InsufficientBalance"
	case TxInvalidNonce:
		return "InvalidNonce"
	case TxInvalidSignature:
		return "InvalidSignature"
	default:
		return "Unknown"
	}
}

// Execute applies tx to the sender and recipient accounts, returning the
// updated accounts and the result. Checks run in order; the first failure
// decides the result and leaves both accounts unchanged:
//
//  1. structure: non-zero distinct addresses, positive amount
//  2. nonce equality
//  3. balance covers amount + fee
//
// On success the sender loses amount + fee and its nonce increments; the
// recipient gains amount with its nonce untouched. Arithmetic is
// overflow-checked; a transfer that would wrap is rejected.
func Execute(tx *types.Transaction, from, to types.Account) (types.Account, types.Account, TxResult) {
	newFrom := from.Copy()
	newTo := to.Copy()

	if !validStructure(tx) {
		return newFrom, newTo, TxInvalidSignature
	}
	if tx.Nonce != from.Nonce {
		return newFrom, newTo, TxInvalidNonce
	}

	need, overflow := new(uint256.Int).AddOverflow(tx.Amount, feeOrZero(tx))
	if overflow || from.BalanceOrZero().Lt(need) {
		return newFrom, newTo, TxInsufficientBalance
	}
	credited, overflow := new(uint256.Int).AddOverflow(to.BalanceOrZero(), tx.Amount)
	if overflow {
		return newFrom, newTo, TxInsufficientBalance
	}

	newFrom.Balance = new(uint256.Int).Sub(from.BalanceOrZero(), need)
	newFrom.Nonce = from.Nonce + 1
	newTo.Balance = credited
	return newFrom, newTo, TxSuccess
}

// VerifySignature reports whether the transaction carries a valid 65-byte
// signature whose recovered signer is the non-zero From address. Recovery
// runs over the prefixed signing hash.
func VerifySignature(tx *types.Transaction) bool {
	if tx == nil || len(tx.Signature) != crypto.SignatureLength {
		return false
	}
	signer, err := crypto.RecoverAddress(tx.PrefixedSigningHash(), tx.Signature)
	if err != nil {
		return false
	}
	return !signer.IsZero() && signer == tx.From
}

// validStructure checks the execution-time transaction invariants:
// from != 0, to != 0, from != to, amount > 0.
func validStructure(tx *types.Transaction) bool {
	if tx == nil {
		return false
	}
	if tx.From.IsZero() || tx.To.IsZero() || tx.From == tx.To {
		return false
	}
	return tx.Amount != nil && !tx.Amount.IsZero()
}

func feeOrZero(tx *types.Transaction) *uint256.Int {
	if tx.Fee == nil {
		return new(uint256.Int)
	}
	return tx.Fee
}

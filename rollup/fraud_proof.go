// fraud_proof.go implements the fraud-proof verifier for the settlement
// contract. Given a transaction, inclusion proofs against the claimed
// pre- and post-state roots, and a Merkle proof that the transaction was in
// the committed batch, the verifier re-executes the transaction and decides
// whether the operator's state transition was fraudulent. Verification is a
// pure function of the proof bundle; it performs no state writes.
package rollup

import (
	"errors"

	"github.com/oprollup/oprollup/core"
	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/merkle"
	"github.com/oprollup/oprollup/state"
)

// FraudKind classifies the fraud detected by the verifier.
type FraudKind uint8

const (
	// NoFraud means the operator's transition checked out.
	NoFraud FraudKind = iota

	// InvalidTransaction means the batch commitment and the transaction
	// disagree: either the prover supplied a transaction that is not in the
	// batch (challenge rejected), or the operator included a transaction
	// that should have failed.
	InvalidTransaction

	// InvalidPreState means the pre-state proofs do not justify the claimed
	// input accounts.
	InvalidPreState

	// InvalidPostState means the operator's post-state proofs do not match
	// the correctly recomputed accounts.
	InvalidPostState

	// InvalidStateTransition means the recomputed post-state root differs
	// from the root the operator submitted.
	InvalidStateTransition

	// IncorrectExecution is reserved for execution-trace disputes.
	IncorrectExecution
)

// String returns the fraud kind name.
func (k FraudKind) String() string {
	switch k {
	case NoFraud:
		return "NoFraud"
	case InvalidTransaction:
		return "InvalidTransaction"
	case InvalidPreState:
		return "InvalidPreState"
	case InvalidPostState:
		return "InvalidPostState"
	case InvalidStateTransition:
		return "InvalidStateTransition"
	case IncorrectExecution:
		return "IncorrectExecution"
	default:
		return "Unknown"
	}
}

// Fraud proof errors. These mark malformed bundles; a well-formed bundle
// that merely fails to prove fraud yields a FraudResult, not an error.
var (
	ErrFraudProofNil      = errors.New("fraud_proof: nil fraud proof")
	ErrFraudProofNoTx     = errors.New("fraud_proof: missing transaction")
	ErrFraudProofNoProofs = errors.New("fraud_proof: missing account proofs")
	ErrFraudProofNoRoot   = errors.New("fraud_proof: zero state root")
)

// FraudProof is the self-contained witness a challenger submits: everything
// needed to re-derive the correct post-state for a single transaction
// against the claimed pre-state.
type FraudProof struct {
	// Transaction is the allegedly mis-executed transaction.
	Transaction *types.Transaction

	// PreStateRoot is the state root the batch executed against.
	PreStateRoot types.Hash

	// ClaimedPostStateRoot is the root the operator submitted.
	ClaimedPostStateRoot types.Hash

	// FromAccountProof and ToAccountProof prove the sender and recipient
	// accounts against PreStateRoot.
	FromAccountProof *state.AccountProof
	ToAccountProof   *state.AccountProof

	// ClaimedFromAccountProof and ClaimedToAccountProof prove the operator's
	// claimed post accounts against ClaimedPostStateRoot.
	ClaimedFromAccountProof *state.AccountProof
	ClaimedToAccountProof   *state.AccountProof

	// TransactionIndex is the transaction's position in the batch.
	TransactionIndex uint64

	// TransactionRoot is the committed batch root.
	TransactionRoot types.Hash

	// TransactionMerkleProof proves the transaction leaf under
	// TransactionRoot.
	TransactionMerkleProof *merkle.Proof
}

// FraudResult is the verifier's verdict.
type FraudResult struct {
	// IsFraud is true when the operator's transition is provably wrong.
	IsFraud bool

	// Kind classifies the verdict.
	Kind FraudKind

	// Reason is a short human-readable explanation.
	Reason string

	// CorrectPostStateRoot is the re-derived correct root, set when the
	// verdict pins one down.
	CorrectPostStateRoot types.Hash
}

// VerifyFraudProof decides whether the proof bundle demonstrates operator
// fraud. The checks run in order:
//
//  1. the transaction must be included in the committed batch, otherwise the
//     challenge itself is rejected;
//  2. the pre-state proofs must justify the input accounts;
//  3. the transaction is re-executed and the correct post-state root is
//     recomputed over the two affected accounts in ascending address order;
//  4. the recomputed root must match the operator's claim, the operator's
//     post-state proofs must match the recomputed accounts, and the
//     re-execution must have succeeded.
//
// An error reports a structurally unusable bundle, never a verdict.
func VerifyFraudProof(fp *FraudProof) (FraudResult, error) {
	if fp == nil {
		return FraudResult{}, ErrFraudProofNil
	}
	if fp.Transaction == nil {
		return FraudResult{}, ErrFraudProofNoTx
	}
	if fp.FromAccountProof == nil || fp.ToAccountProof == nil ||
		fp.ClaimedFromAccountProof == nil || fp.ClaimedToAccountProof == nil {
		return FraudResult{}, ErrFraudProofNoProofs
	}
	if fp.PreStateRoot.IsZero() || fp.ClaimedPostStateRoot.IsZero() {
		return FraudResult{}, ErrFraudProofNoRoot
	}

	tx := fp.Transaction

	// 1. Batch inclusion. A transaction outside the committed batch proves
	// nothing about the operator; the challenge is rejected.
	leaf := tx.MerkleLeaf()
	if !merkle.VerifyProof(leaf, fp.TransactionRoot, fp.TransactionMerkleProof) {
		return FraudResult{
			IsFraud: false,
			Kind:    InvalidTransaction,
			Reason:  "Transaction not in claimed batch",
		}, nil
	}

	// 2. Pre-state consistency. The proofs must name the transaction's own
	// accounts and verify against the pre-state root.
	if fp.FromAccountProof.Address != tx.From || fp.ToAccountProof.Address != tx.To ||
		!state.VerifyAccountProof(fp.FromAccountProof, fp.PreStateRoot) ||
		!state.VerifyAccountProof(fp.ToAccountProof, fp.PreStateRoot) {
		return FraudResult{
			IsFraud: true,
			Kind:    InvalidPreState,
			Reason:  "Pre-state proofs do not justify input accounts",
		}, nil
	}

	// 3. Re-execute with the proven pre-state accounts.
	newFrom, newTo, result := core.Execute(tx, fp.FromAccountProof.Account, fp.ToAccountProof.Account)

	// 4. Recompute the correct post-state root over the two affected
	// accounts in ascending address order. A structurally invalid
	// transaction leaves the state untouched, so the correct root is the
	// pre-state root itself.
	correctRoot := fp.PreStateRoot
	if tx.From != tx.To {
		addrs, accounts := sortAccountPair(tx.From, newFrom, tx.To, newTo)
		computed, err := state.ComputeStateRoot(addrs, accounts)
		if err != nil {
			return FraudResult{}, err
		}
		correctRoot = computed
	}

	// 5. Root comparison.
	if correctRoot != fp.ClaimedPostStateRoot {
		return FraudResult{
			IsFraud:              true,
			Kind:                 InvalidStateTransition,
			Reason:               "Claimed post-state root does not match re-execution",
			CorrectPostStateRoot: correctRoot,
		}, nil
	}

	// 6. Post-state consistency. The operator's claimed accounts must equal
	// the recomputed ones and verify against the claimed root.
	if fp.ClaimedFromAccountProof.Address != tx.From || fp.ClaimedToAccountProof.Address != tx.To ||
		!fp.ClaimedFromAccountProof.Account.Equal(newFrom) ||
		!fp.ClaimedToAccountProof.Account.Equal(newTo) ||
		!state.VerifyAccountProof(fp.ClaimedFromAccountProof, fp.ClaimedPostStateRoot) ||
		!state.VerifyAccountProof(fp.ClaimedToAccountProof, fp.ClaimedPostStateRoot) {
		return FraudResult{
			IsFraud: true,
			Kind:    InvalidPostState,
			Reason:  "Claimed post-state accounts are inconsistent",
		}, nil
	}

	// 7. A transaction that should have failed does not belong in a batch.
	if result != core.TxSuccess {
		return FraudResult{
			IsFraud:              true,
			Kind:                 InvalidTransaction,
			Reason:               "Batch includes a transaction that fails execution: " + result.String(),
			CorrectPostStateRoot: fp.PreStateRoot,
		}, nil
	}

	return FraudResult{Kind: NoFraud}, nil
}

// sortAccountPair orders the two affected accounts by ascending address.
func sortAccountPair(aAddr types.Address, a types.Account, bAddr types.Address, b types.Account) ([]types.Address, []types.Account) {
	if aAddr.Less(bAddr) {
		return []types.Address{aAddr, bAddr}, []types.Account{a, b}
	}
	return []types.Address{bAddr, aAddr}, []types.Account{b, a}
}

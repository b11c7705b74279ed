// Package state commits the layer-2 account set to a single root. Accounts
// are hashed into leaves and Merkleized in strict ascending address order;
// the root is what operators advance and what fraud proofs argue about.
package state

import (
	"errors"

	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/crypto"
	"github.com/oprollup/oprollup/merkle"
)

// State commitment errors.
var (
	ErrLengthMismatch  = errors.New("state: address and account vectors differ in length")
	ErrEmptyState      = errors.New("state: account set must be non-empty")
	ErrUnsorted        = errors.New("state: addresses must be strictly ascending")
	ErrAccountNotFound = errors.New("state: account not in address vector")
	ErrRootMismatch    = errors.New("state: recomputed root does not match expected root")
)

// genesisSeed is hashed to produce the pre-state root of an empty rollup.
const genesisSeed = "GENESIS"

// GenesisRoot returns the state root before any batch: Keccak256("GENESIS").
// It is a sentinel, never derived from an empty leaf set.
func GenesisRoot() types.Hash {
	return crypto.Keccak256Hash([]byte(genesisSeed))
}

// AccountLeaf hashes an account into its commitment leaf:
// Keccak256(address || balance || nonce) with balance and nonce as 32-byte
// big-endian words.
func AccountLeaf(addr types.Address, acct types.Account) types.Hash {
	return crypto.Keccak256Hash(addr[:], acct.Encode())
}

// ComputeStateRoot commits the account set. addrs[i] owns accounts[i].
// Addresses must be strictly ascending; duplicates and empty sets are
// rejected.
func ComputeStateRoot(addrs []types.Address, accounts []types.Account) (types.Hash, error) {
	if len(addrs) != len(accounts) {
		return types.Hash{}, ErrLengthMismatch
	}
	if len(addrs) == 0 {
		return types.Hash{}, ErrEmptyState
	}
	leaves := make([]types.Hash, len(addrs))
	for i, addr := range addrs {
		if i > 0 && !addrs[i-1].Less(addr) {
			return types.Hash{}, ErrUnsorted
		}
		leaves[i] = AccountLeaf(addr, accounts[i])
	}
	return merkle.ComputeRoot(leaves)
}

// AccountProof is an inclusion proof binding an account's data to a state
// root.
type AccountProof struct {
	// Address is the account owner.
	Address types.Address

	// Account is the committed balance and nonce.
	Account types.Account

	// Proof is the Merkle path against the sorted leaf vector.
	Proof *merkle.Proof
}

// GenerateAccountProof builds the inclusion proof for target within the
// committed set. The set is recomputed and must reproduce expectedRoot;
// a target absent from addrs is an error.
func GenerateAccountProof(target types.Address, addrs []types.Address, accounts []types.Account, expectedRoot types.Hash) (*AccountProof, error) {
	root, err := ComputeStateRoot(addrs, accounts)
	if err != nil {
		return nil, err
	}
	if root != expectedRoot {
		return nil, ErrRootMismatch
	}

	index := -1
	for i, addr := range addrs {
		if addr == target {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrAccountNotFound
	}

	leaves := make([]types.Hash, len(addrs))
	for i, addr := range addrs {
		leaves[i] = AccountLeaf(addr, accounts[i])
	}
	proof, err := merkle.GenerateProof(leaves, index)
	if err != nil {
		return nil, err
	}
	return &AccountProof{
		Address: target,
		Account: accounts[index].Copy(),
		Proof:   proof,
	}, nil
}

// VerifyAccountProof recomputes the leaf from the proof's account data and
// verifies the Merkle path against root.
func VerifyAccountProof(p *AccountProof, root types.Hash) bool {
	if p == nil || p.Proof == nil {
		return false
	}
	return merkle.VerifyProof(AccountLeaf(p.Address, p.Account), root, p.Proof)
}

// Package merkle implements the binary Merkle commitment used for batch and
// state roots. Internal nodes are Keccak256(left || right) with raw
// concatenation. Odd-sized levels promote the unpaired last node unchanged to
// the next level; it is not duplicated, so a leaf on a promoted path yields a
// proof shorter than the tree depth.
package merkle

import (
	"errors"

	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/crypto"
)

// Merkle commitment errors.
var (
	ErrNoLeaves        = errors.New("merkle: leaf vector must be non-empty")
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
)

// Proof is an inclusion proof for a single leaf. Siblings are ordered
// leaf-to-root. Index packs the left/right direction bits for exactly the
// levels that contributed a sibling: bit i is the position (0 = left) of the
// running hash when Siblings[i] is absorbed. Levels where the leaf's node was
// promoted contribute neither a sibling nor a bit.
type Proof struct {
	Siblings []types.Hash
	Index    uint64
}

// ComputeRoot computes the Merkle root over the ordered leaf vector.
// A single leaf is its own root. An empty vector is an error; commitments
// over nothing are meaningless here (the state layer substitutes a genesis
// sentinel instead).
func ComputeRoot(leaves []types.Hash) (types.Hash, error) {
	if len(leaves) == 0 {
		return types.Hash{}, ErrNoLeaves
	}
	level := append([]types.Hash(nil), leaves...)
	for len(level) > 1 {
		level = reduceLevel(level)
	}
	return level[0], nil
}

// TreeDepth returns the depth of a tree over n leaves: 0 for n <= 1,
// otherwise the number of (ceiling) halvings required to reach 1.
func TreeDepth(n int) int {
	if n <= 1 {
		return 0
	}
	depth := 0
	for n > 1 {
		n = (n + 1) / 2
		depth++
	}
	return depth
}

// GenerateProof builds the inclusion proof for the leaf at index. At each
// level the sibling at index^1 is appended when it exists; the unpaired last
// node of an odd level is promoted and contributes nothing.
func GenerateProof(leaves []types.Hash, index int) (*Proof, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	if index < 0 || index >= len(leaves) {
		return nil, ErrIndexOutOfRange
	}

	proof := &Proof{}
	level := append([]types.Hash(nil), leaves...)
	idx := index
	for len(level) > 1 {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof.Index |= uint64(idx&1) << uint(len(proof.Siblings))
			proof.Siblings = append(proof.Siblings, level[sibling])
		}
		level = reduceLevel(level)
		idx >>= 1
	}
	return proof, nil
}

// VerifyProof checks that leaf is committed under root by the given proof.
// Walking leaf-to-root: if the current index bit is 0 the running hash is the
// left child, otherwise the right. An empty proof with index 0 verifies iff
// the leaf is itself the root.
func VerifyProof(leaf, root types.Hash, proof *Proof) bool {
	if proof == nil {
		return false
	}
	h := leaf
	idx := proof.Index
	for _, sibling := range proof.Siblings {
		if idx&1 == 0 {
			h = hashPair(h, sibling)
		} else {
			h = hashPair(sibling, h)
		}
		idx >>= 1
	}
	if idx != 0 {
		return false
	}
	return h == root
}

// reduceLevel pairs adjacent nodes into parents, promoting an unpaired last
// node unchanged.
func reduceLevel(level []types.Hash) []types.Hash {
	next := make([]types.Hash, 0, (len(level)+1)/2)
	for i := 0; i+1 < len(level); i += 2 {
		next = append(next, hashPair(level[i], level[i+1]))
	}
	if len(level)%2 == 1 {
		next = append(next, level[len(level)-1])
	}
	return next
}

// hashPair computes the parent hash Keccak256(left || right).
func hashPair(left, right types.Hash) types.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

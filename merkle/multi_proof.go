// Merkle multi-proof generation and verification.
//
// A multi-proof demonstrates that several leaves exist at specific positions
// under one root, using the minimal sibling set: siblings shared between the
// proved leaves' paths, or derivable from the proved leaves themselves, are
// never included. The reduction replays ComputeRoot level by level, so the
// promotion rule for odd-sized levels is honored exactly.
package merkle

import (
	"errors"
	"sort"

	"github.com/oprollup/oprollup/core/types"
)

// Multi-proof errors.
var (
	ErrMultiNoIndices  = errors.New("merkle: no leaf indices provided")
	ErrMultiLeafCount  = errors.New("merkle: leaf count must be positive")
	ErrMultiIndexRange = errors.New("merkle: proved leaf index out of range")
)

// IndexedLeaf is a proved leaf and its position in the leaf vector.
type IndexedLeaf struct {
	Index int
	Hash  types.Hash
}

// LevelNode is a sibling node pinned to its level and position. Level 0 is
// the leaf level.
type LevelNode struct {
	Level int
	Index int
	Hash  types.Hash
}

// MultiProof proves a set of leaves against a root committed over LeafCount
// leaves.
type MultiProof struct {
	LeafCount int
	Leaves    []IndexedLeaf
	Siblings  []LevelNode
}

// GenerateMultiProof builds a multi-proof for the given leaf positions.
// Duplicate indices are collapsed.
func GenerateMultiProof(leaves []types.Hash, indices []int) (*MultiProof, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	if len(indices) == 0 {
		return nil, ErrMultiNoIndices
	}

	idxSet := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(leaves) {
			return nil, ErrIndexOutOfRange
		}
		idxSet[i] = true
	}
	sorted := make([]int, 0, len(idxSet))
	for i := range idxSet {
		sorted = append(sorted, i)
	}
	sort.Ints(sorted)

	proof := &MultiProof{LeafCount: len(leaves)}
	for _, i := range sorted {
		proof.Leaves = append(proof.Leaves, IndexedLeaf{Index: i, Hash: leaves[i]})
	}

	level := append([]types.Hash(nil), leaves...)
	known := idxSet
	for depth := 0; len(level) > 1; depth++ {
		next := make(map[int]bool, len(known))
		for _, idx := range sortedKeys(known) {
			sib := idx ^ 1
			if sib < len(level) && !known[sib] {
				proof.Siblings = append(proof.Siblings, LevelNode{
					Level: depth,
					Index: sib,
					Hash:  level[sib],
				})
			}
			next[idx>>1] = true
		}
		level = reduceLevel(level)
		known = next
	}
	return proof, nil
}

// VerifyMultiProof checks that every proved leaf is committed under root.
// The reduction is replayed bottom-up; a level that cannot be completed from
// the proved leaves plus the supplied siblings fails verification.
func VerifyMultiProof(root types.Hash, proof *MultiProof) bool {
	if proof == nil || proof.LeafCount <= 0 || len(proof.Leaves) == 0 {
		return false
	}

	known := make(map[int]types.Hash, len(proof.Leaves))
	for _, leaf := range proof.Leaves {
		if leaf.Index < 0 || leaf.Index >= proof.LeafCount {
			return false
		}
		known[leaf.Index] = leaf.Hash
	}

	siblings := make(map[[2]int]types.Hash, len(proof.Siblings))
	for _, n := range proof.Siblings {
		siblings[[2]int{n.Level, n.Index}] = n.Hash
	}

	size := proof.LeafCount
	for depth := 0; size > 1; depth++ {
		next := make(map[int]types.Hash, len(known))
		for _, idx := range sortedHashKeys(known) {
			h := known[idx]
			sib := idx ^ 1
			if sib >= size {
				// Unpaired last node: promoted unchanged.
				next[idx>>1] = h
				continue
			}
			if _, done := next[idx>>1]; done {
				continue // other half of the pair already combined
			}
			sibHash, ok := known[sib]
			if !ok {
				sibHash, ok = siblings[[2]int{depth, sib}]
			}
			if !ok {
				return false
			}
			if idx&1 == 0 {
				next[idx>>1] = hashPair(h, sibHash)
			} else {
				next[idx>>1] = hashPair(sibHash, h)
			}
		}
		known = next
		size = (size + 1) / 2
	}

	computed, ok := known[0]
	return ok && computed == root
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedHashKeys(set map[int]types.Hash) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

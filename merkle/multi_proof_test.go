package merkle

import (
	"testing"

	"github.com/oprollup/oprollup/core/types"
)

func TestMultiProofRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		indices []int
	}{
		{"single leaf of one", 1, []int{0}},
		{"one of two", 2, []int{1}},
		{"both of two", 2, []int{0, 1}},
		{"adjacent pair", 8, []int{2, 3}},
		{"distant pair", 8, []int{0, 7}},
		{"promoted leaf", 5, []int{4}},
		{"mixed with promotion", 5, []int{1, 4}},
		{"all leaves", 6, []int{0, 1, 2, 3, 4, 5}},
		{"duplicates collapse", 7, []int{3, 3, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls := leaves(tt.size)
			root, err := ComputeRoot(ls)
			if err != nil {
				t.Fatalf("root: %v", err)
			}
			proof, err := GenerateMultiProof(ls, tt.indices)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if !VerifyMultiProof(root, proof) {
				t.Error("multi-proof did not verify")
			}
		})
	}
}

func TestMultiProofSharedSiblingsOmitted(t *testing.T) {
	// Proving both halves of a pair needs no sibling for that pair.
	ls := leaves(4)
	proof, err := GenerateMultiProof(ls, []int{0, 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, n := range proof.Siblings {
		if n.Level == 0 {
			t.Errorf("leaf-level sibling %d should be derivable from the proved pair", n.Index)
		}
	}
}

func TestMultiProofRejectsTampering(t *testing.T) {
	ls := leaves(8)
	root, _ := ComputeRoot(ls)
	proof, _ := GenerateMultiProof(ls, []int{2, 5})

	tampered := *proof
	tampered.Leaves = append([]IndexedLeaf(nil), proof.Leaves...)
	tampered.Leaves[0].Hash = leaf(99)
	if VerifyMultiProof(root, &tampered) {
		t.Error("tampered leaf must not verify")
	}

	truncated := *proof
	truncated.Siblings = proof.Siblings[:len(proof.Siblings)-1]
	if VerifyMultiProof(root, &truncated) {
		t.Error("missing sibling must not verify")
	}

	if VerifyMultiProof(root, nil) {
		t.Error("nil proof must not verify")
	}
}

func TestMultiProofErrors(t *testing.T) {
	ls := leaves(4)
	if _, err := GenerateMultiProof(nil, []int{0}); err != ErrNoLeaves {
		t.Errorf("expected ErrNoLeaves, got %v", err)
	}
	if _, err := GenerateMultiProof(ls, nil); err != ErrMultiNoIndices {
		t.Errorf("expected ErrMultiNoIndices, got %v", err)
	}
	if _, err := GenerateMultiProof(ls, []int{4}); err != ErrIndexOutOfRange {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if VerifyMultiProof(types.Hash{}, &MultiProof{LeafCount: 2, Leaves: []IndexedLeaf{{Index: 5}}}) {
		t.Error("out-of-range proved index must not verify")
	}
}

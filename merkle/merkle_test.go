package merkle

import (
	"testing"

	"github.com/oprollup/oprollup/core/types"
	"github.com/oprollup/oprollup/crypto"
)

func leaf(b byte) types.Hash {
	return crypto.Keccak256Hash([]byte{b})
}

func leaves(n int) []types.Hash {
	out := make([]types.Hash, n)
	for i := range out {
		out[i] = leaf(byte(i))
	}
	return out
}

func TestComputeRootEmpty(t *testing.T) {
	if _, err := ComputeRoot(nil); err != ErrNoLeaves {
		t.Fatalf("expected ErrNoLeaves, got %v", err)
	}
}

func TestComputeRootSingleLeaf(t *testing.T) {
	l := leaf(7)
	root, err := ComputeRoot([]types.Hash{l})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != l {
		t.Error("single leaf must be its own root")
	}
}

func TestComputeRootPair(t *testing.T) {
	a, b := leaf(0), leaf(1)
	root, err := ComputeRoot([]types.Hash{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := crypto.Keccak256Hash(a[:], b[:])
	if root != want {
		t.Error("pair root must be H(a || b)")
	}
}

func TestComputeRootOddPromotion(t *testing.T) {
	a, b, c := leaf(0), leaf(1), leaf(2)
	root, err := ComputeRoot([]types.Hash{a, b, c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ab := crypto.Keccak256Hash(a[:], b[:])
	want := crypto.Keccak256Hash(ab[:], c[:])
	if root != want {
		t.Error("odd level must promote the unpaired node, root = H(H(a||b) || c)")
	}
}

func TestTreeDepth(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {7, 3}, {8, 3}, {9, 4}, {1024, 10},
	}
	for _, tt := range tests {
		if got := TreeDepth(tt.n); got != tt.want {
			t.Errorf("TreeDepth(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestGenerateProofBounds(t *testing.T) {
	ls := leaves(3)
	if _, err := GenerateProof(nil, 0); err != ErrNoLeaves {
		t.Errorf("expected ErrNoLeaves, got %v", err)
	}
	if _, err := GenerateProof(ls, -1); err != ErrIndexOutOfRange {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := GenerateProof(ls, 3); err != ErrIndexOutOfRange {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestProofRoundTripAllSizes(t *testing.T) {
	for n := 1; n <= 16; n++ {
		ls := leaves(n)
		root, err := ComputeRoot(ls)
		if err != nil {
			t.Fatalf("size %d: %v", n, err)
		}
		for i := 0; i < n; i++ {
			proof, err := GenerateProof(ls, i)
			if err != nil {
				t.Fatalf("size %d index %d: %v", n, i, err)
			}
			if len(proof.Siblings) > TreeDepth(n) {
				t.Errorf("size %d index %d: proof longer than depth", n, i)
			}
			if !VerifyProof(ls[i], root, proof) {
				t.Errorf("size %d index %d: proof did not verify", n, i)
			}
		}
	}
}

func TestProofSingleLeaf(t *testing.T) {
	l := leaf(9)
	proof, err := GenerateProof([]types.Hash{l}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proof.Siblings) != 0 || proof.Index != 0 {
		t.Fatal("single-leaf proof must be empty with index 0")
	}
	if !VerifyProof(l, l, proof) {
		t.Error("empty proof must verify when leaf == root")
	}
	if VerifyProof(l, leaf(10), proof) {
		t.Error("empty proof must fail when leaf != root")
	}
}

func TestProofPromotedLeafShorterThanDepth(t *testing.T) {
	// In a 3-leaf tree, leaf 2 is promoted at the bottom level: its proof
	// has a single sibling while the depth is 2.
	ls := leaves(3)
	proof, err := GenerateProof(ls, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proof.Siblings) != 1 {
		t.Fatalf("expected 1 sibling for promoted leaf, got %d", len(proof.Siblings))
	}
	root, _ := ComputeRoot(ls)
	if !VerifyProof(ls[2], root, proof) {
		t.Error("promoted-leaf proof did not verify")
	}
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	ls := leaves(8)
	root, _ := ComputeRoot(ls)
	proof, _ := GenerateProof(ls, 3)

	if VerifyProof(leaf(99), root, proof) {
		t.Error("wrong leaf must not verify")
	}

	bad := &Proof{Siblings: append([]types.Hash(nil), proof.Siblings...), Index: proof.Index}
	bad.Siblings[0] = leaf(98)
	if VerifyProof(ls[3], root, bad) {
		t.Error("tampered sibling must not verify")
	}

	flipped := &Proof{Siblings: proof.Siblings, Index: proof.Index ^ 1}
	if VerifyProof(ls[3], root, flipped) {
		t.Error("flipped direction bit must not verify")
	}

	if VerifyProof(ls[3], root, nil) {
		t.Error("nil proof must not verify")
	}
}

func TestVerifyProofRejectsExcessIndexBits(t *testing.T) {
	ls := leaves(4)
	root, _ := ComputeRoot(ls)
	proof, _ := GenerateProof(ls, 0)
	proof.Index |= 1 << 40
	if VerifyProof(ls[0], root, proof) {
		t.Error("index bits beyond the proof length must not verify")
	}
}

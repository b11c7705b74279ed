package crypto

import (
	"math/big"
	"testing"

	"github.com/oprollup/oprollup/core/types"
)

func TestSignRecoverRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	want := PubkeyToAddress(&key.PublicKey)

	digest := Keccak256Hash([]byte("settlement digest"))
	sig, err := Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}

	got, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != want {
		t.Errorf("recovered %s, want %s", got, want)
	}
}

func TestRecoverAddressRejectsBadSignatures(t *testing.T) {
	key, _ := GenerateKey()
	digest := Keccak256Hash([]byte("digest"))
	sig, _ := Sign(digest, key)

	if _, err := RecoverAddress(digest, sig[:64]); err != ErrSigInvalidLength {
		t.Errorf("short signature: expected ErrSigInvalidLength, got %v", err)
	}

	// High-S variant of a valid signature is malleable and must be rejected.
	s := new(big.Int).SetBytes(sig[32:64])
	highS := new(big.Int).Sub(secp256k1N, s)
	malleable := append([]byte(nil), sig...)
	highS.FillBytes(malleable[32:64])
	malleable[64] ^= 1
	if _, err := RecoverAddress(digest, malleable); err != ErrSigInvalidValues {
		t.Errorf("high-S signature: expected ErrSigInvalidValues, got %v", err)
	}

	zeroed := append([]byte(nil), sig...)
	for i := 0; i < 32; i++ {
		zeroed[i] = 0
	}
	if _, err := RecoverAddress(digest, zeroed); err != ErrSigInvalidValues {
		t.Errorf("zero R: expected ErrSigInvalidValues, got %v", err)
	}
}

func TestRecoverAddressWrongDigest(t *testing.T) {
	key, _ := GenerateKey()
	want := PubkeyToAddress(&key.PublicKey)
	digest := Keccak256Hash([]byte("signed"))
	sig, _ := Sign(digest, key)

	other := Keccak256Hash([]byte("not signed"))
	got, err := RecoverAddress(other, sig)
	if err == nil && got == want {
		t.Error("recovery over a different digest must not yield the signer")
	}
}

func TestValidateSignatureValues(t *testing.T) {
	one := big.NewInt(1)
	tests := []struct {
		name string
		v    byte
		r, s *big.Int
		want bool
	}{
		{"valid minimal", 0, one, one, true},
		{"v too large", 2, one, one, false},
		{"zero r", 0, new(big.Int), one, false},
		{"zero s", 1, one, new(big.Int), false},
		{"r at curve order", 0, new(big.Int).Set(secp256k1N), one, false},
		{"s above half order", 0, one, new(big.Int).Add(secp256k1halfN, one), false},
		{"s at half order", 1, one, new(big.Int).Set(secp256k1halfN), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateSignatureValues(tt.v, tt.r, tt.s); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPubkeyToAddressNil(t *testing.T) {
	if addr := PubkeyToAddress(nil); !addr.IsZero() {
		t.Error("nil public key must map to the zero address")
	}
	if (types.Address{}).IsZero() != true {
		t.Error("zero address must report IsZero")
	}
}

// ECDSA signing and recovery over secp256k1 for settlement transactions.
//
// Signatures are 65 bytes [R || S || V] with V as a raw recovery ID (0 or 1).
// S is required to be in the lower half of the curve order per EIP-2, which
// prevents signature malleability on the batch commitment. The curve
// arithmetic is delegated to go-ethereum's secp256k1 implementation.
package crypto

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/oprollup/oprollup/core/types"
)

// SignatureLength is the size of a compact [R || S || V] signature.
const SignatureLength = 65

// Signature recovery errors.
var (
	ErrSigInvalidLength = errors.New("crypto: signature must be 65 bytes")
	ErrSigInvalidValues = errors.New("crypto: invalid signature component values")
	ErrSigRecoverFailed = errors.New("crypto: public key recovery failed")
)

// secp256k1N is the order of the secp256k1 curve.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// secp256k1halfN is half the order, used for the low-S check.
var secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// Sign produces a 65-byte [R || S || V] signature over a 32-byte digest.
// The returned V is a raw recovery ID (0 or 1) and S is low per EIP-2.
func Sign(digest types.Hash, prv *ecdsa.PrivateKey) ([]byte, error) {
	return gethcrypto.Sign(digest[:], prv)
}

// RecoverAddress recovers the signer address from a 32-byte digest and a
// 65-byte signature. The signature components are validated before recovery;
// a malleable (high-S) signature is rejected.
func RecoverAddress(digest types.Hash, sig []byte) (types.Address, error) {
	if len(sig) != SignatureLength {
		return types.Address{}, ErrSigInvalidLength
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ValidateSignatureValues(sig[64], r, s) {
		return types.Address{}, ErrSigInvalidValues
	}
	pub, err := gethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return types.Address{}, ErrSigRecoverFailed
	}
	return PubkeyToAddress(pub), nil
}

// ValidateSignatureValues checks r, s, v for correctness:
// v is 0 or 1, r and s are in [1, n-1], and s is in the lower half.
func ValidateSignatureValues(v byte, r, s *big.Int) bool {
	if v > 1 {
		return false
	}
	if r.Sign() <= 0 || r.Cmp(secp256k1N) >= 0 {
		return false
	}
	if s.Sign() <= 0 || s.Cmp(secp256k1N) >= 0 {
		return false
	}
	return s.Cmp(secp256k1halfN) <= 0
}

// PubkeyToAddress derives the address from a public key:
// Keccak256(pubkey[1:])[12:].
func PubkeyToAddress(pub *ecdsa.PublicKey) types.Address {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return types.Address{}
	}
	raw := gethcrypto.FromECDSAPub(pub)
	return types.BytesToAddress(Keccak256(raw[1:])[12:])
}

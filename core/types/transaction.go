package types

import (
	"errors"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// Transaction is a layer-2 value transfer. The signature authorizes the
// transfer but is excluded from the canonical serialization and from the
// batch Merkle leaf.
type Transaction struct {
	// From is the sender address.
	From Address

	// To is the recipient address.
	To Address

	// Amount is the transferred value in wei. Must be positive at execution.
	Amount *uint256.Int

	// Nonce must equal the sender account nonce at execution.
	Nonce uint64

	// Fee is the operator fee in wei, debited from the sender.
	Fee *uint256.Int

	// Signature is the 65-byte [R || S || V] signature over the prefixed
	// signing hash. Not part of the canonical serialization.
	Signature []byte
}

// TxEncodedSize is the canonical serialization size:
// from(20) + to(20) + amount(32) + nonce(32) + fee(32).
const TxEncodedSize = 136

// signedMessagePrefix is the host prefix applied before signature recovery
// over the 32-byte transaction hash.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

var (
	ErrTxEncodingShort = errors.New("types: transaction encoding must be 136 bytes")
)

// TransactionTypeHash is the domain separator mixed into the signing hash.
var TransactionTypeHash = keccakHash([]byte(
	"Transaction(address from,address to,uint256 amount,uint256 nonce,uint256 fee)",
))

// Serialize returns the canonical encoding of the transaction tuple
// (from, to, amount, nonce, fee). The signature is not included.
func (tx *Transaction) Serialize() []byte {
	buf := make([]byte, TxEncodedSize)
	copy(buf[0:20], tx.From[:])
	copy(buf[20:40], tx.To[:])
	amount := amountOrZero(tx.Amount).Bytes32()
	copy(buf[40:72], amount[:])
	nonce := new(uint256.Int).SetUint64(tx.Nonce).Bytes32()
	copy(buf[72:104], nonce[:])
	fee := amountOrZero(tx.Fee).Bytes32()
	copy(buf[104:136], fee[:])
	return buf
}

// DeserializeTransaction decodes a canonical transaction encoding. The
// signature field of the result is nil; it is not part of the encoding.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	if len(data) != TxEncodedSize {
		return nil, ErrTxEncodingShort
	}
	tx := &Transaction{
		Amount: new(uint256.Int).SetBytes(data[40:72]),
		Fee:    new(uint256.Int).SetBytes(data[104:136]),
	}
	copy(tx.From[:], data[0:20])
	copy(tx.To[:], data[20:40])
	nonce := new(uint256.Int).SetBytes(data[72:104])
	tx.Nonce = nonce.Uint64()
	return tx, nil
}

// MerkleLeaf returns the batch commitment leaf for the transaction:
// Keccak256 of the canonical serialization.
func (tx *Transaction) MerkleLeaf() Hash {
	return keccakHash(tx.Serialize())
}

// SigningHash returns the hash the sender signs over:
// Keccak256(typeHash || from || to || amount || nonce || fee).
func (tx *Transaction) SigningHash() Hash {
	amount := amountOrZero(tx.Amount).Bytes32()
	nonce := new(uint256.Int).SetUint64(tx.Nonce).Bytes32()
	fee := amountOrZero(tx.Fee).Bytes32()
	return keccakHash(
		TransactionTypeHash[:],
		tx.From[:],
		tx.To[:],
		amount[:],
		nonce[:],
		fee[:],
	)
}

// PrefixedSigningHash applies the host signed-message prefix to the signing
// hash. Signature recovery runs over this digest.
func (tx *Transaction) PrefixedSigningHash() Hash {
	h := tx.SigningHash()
	return keccakHash([]byte(signedMessagePrefix), h[:])
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	cp := &Transaction{
		From:   tx.From,
		To:     tx.To,
		Amount: new(uint256.Int).Set(amountOrZero(tx.Amount)),
		Nonce:  tx.Nonce,
		Fee:    new(uint256.Int).Set(amountOrZero(tx.Fee)),
	}
	if tx.Signature != nil {
		cp.Signature = append([]byte(nil), tx.Signature...)
	}
	return cp
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// keccakHash hashes with Keccak256 directly via sha3, keeping this package
// free of a dependency on the crypto package.
func keccakHash(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return BytesToHash(d.Sum(nil))
}

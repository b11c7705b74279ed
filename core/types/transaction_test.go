package types

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
)

func testTx() *Transaction {
	return &Transaction{
		From:      HexToAddress("0x1111111111111111111111111111111111111111"),
		To:        HexToAddress("0x2222222222222222222222222222222222222222"),
		Amount:    uint256.NewInt(1_000_000),
		Nonce:     7,
		Fee:       uint256.NewInt(25),
		Signature: bytes.Repeat([]byte{0xab}, 65),
	}
}

func TestSerializeLayout(t *testing.T) {
	tx := testTx()
	enc := tx.Serialize()
	if len(enc) != TxEncodedSize {
		t.Fatalf("encoded size = %d, want %d", len(enc), TxEncodedSize)
	}
	if !bytes.Equal(enc[0:20], tx.From[:]) {
		t.Error("from not at offset 0")
	}
	if !bytes.Equal(enc[20:40], tx.To[:]) {
		t.Error("to not at offset 20")
	}
	amount := tx.Amount.Bytes32()
	if !bytes.Equal(enc[40:72], amount[:]) {
		t.Error("amount not at offset 40")
	}
	if enc[103] != 7 {
		t.Error("nonce not big-endian at offset 72")
	}
	if enc[135] != 25 {
		t.Error("fee not big-endian at offset 104")
	}
}

func TestSerializeExcludesSignature(t *testing.T) {
	tx := testTx()
	withSig := tx.Serialize()
	tx.Signature = nil
	withoutSig := tx.Serialize()
	if !bytes.Equal(withSig, withoutSig) {
		t.Error("signature must not affect the canonical serialization")
	}
}

func TestDeserializeRoundTrip(t *testing.T) {
	tx := testTx()
	decoded, err := DeserializeTransaction(tx.Serialize())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if decoded.From != tx.From || decoded.To != tx.To {
		t.Error("addresses did not round-trip")
	}
	if !decoded.Amount.Eq(tx.Amount) || !decoded.Fee.Eq(tx.Fee) {
		t.Error("amounts did not round-trip")
	}
	if decoded.Nonce != tx.Nonce {
		t.Error("nonce did not round-trip")
	}
	if decoded.Signature != nil {
		t.Error("signature must not appear after deserialization")
	}
}

func TestDeserializeRejectsBadLength(t *testing.T) {
	for _, n := range []int{0, 1, 135, 137} {
		if _, err := DeserializeTransaction(make([]byte, n)); err != ErrTxEncodingShort {
			t.Errorf("length %d: expected ErrTxEncodingShort, got %v", n, err)
		}
	}
}

func TestMerkleLeafDeterministic(t *testing.T) {
	a := testTx()
	b := testTx()
	b.Signature = nil // leaf must not see the signature
	if a.MerkleLeaf() != b.MerkleLeaf() {
		t.Error("leaf must be independent of the signature")
	}
	b.Amount = uint256.NewInt(2)
	if a.MerkleLeaf() == b.MerkleLeaf() {
		t.Error("leaf must depend on the amount")
	}
}

func TestSigningHashDomainSeparated(t *testing.T) {
	tx := testTx()
	if tx.SigningHash() == BytesToHash(tx.Serialize()[:32]) {
		t.Error("signing hash must not be raw serialization bytes")
	}
	if tx.SigningHash() == tx.MerkleLeaf() {
		t.Error("signing hash must differ from the batch leaf")
	}
	if tx.PrefixedSigningHash() == tx.SigningHash() {
		t.Error("prefixed hash must differ from the bare signing hash")
	}

	other := testTx()
	other.Nonce++
	if tx.SigningHash() == other.SigningHash() {
		t.Error("signing hash must depend on the nonce")
	}
}

func TestTransactionCopy(t *testing.T) {
	tx := testTx()
	cp := tx.Copy()
	cp.Amount.SetUint64(1)
	cp.Signature[0] = 0
	if tx.Amount.Uint64() != 1_000_000 {
		t.Error("copy must not alias the amount")
	}
	if tx.Signature[0] != 0xab {
		t.Error("copy must not alias the signature")
	}
}

func TestNilAmountsSerializeAsZero(t *testing.T) {
	tx := &Transaction{
		From: HexToAddress("0x01"),
		To:   HexToAddress("0x02"),
	}
	decoded, err := DeserializeTransaction(tx.Serialize())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !decoded.Amount.IsZero() || !decoded.Fee.IsZero() {
		t.Error("nil amounts must encode as zero")
	}
}

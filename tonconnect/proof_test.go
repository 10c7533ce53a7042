package tonconnect

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const testProofDomain = "dapp.example"

// signedProofWithData builds a wallet account whose state init wraps
// the given data cell, plus a valid ton_proof over a fresh payload.
func signedProofWithData(t *testing.T, dataOf func(pub ed25519.PublicKey) *cell.Cell) (*Account, *TonProof) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	code := cell.BeginCell().MustStoreUInt(0xC0DE, 32).EndCell()
	data := dataOf(pub)
	stateInit := cell.BeginCell().
		MustStoreBoolBit(false).
		MustStoreBoolBit(false).
		MustStoreBoolBit(true).MustStoreRef(code).
		MustStoreBoolBit(true).MustStoreRef(data).
		MustStoreBoolBit(false).
		EndCell()

	addrHash := stateInit.Hash()
	account := &Account{
		Address:         fmt.Sprintf("0:%x", addrHash),
		WalletStateInit: base64.StdEncoding.EncodeToString(stateInit.ToBOC()),
		PublicKey:       hex.EncodeToString(pub),
	}

	payload, err := GenerateProofPayload(time.Hour)
	require.NoError(t, err)

	proof := &TonProof{
		Timestamp: time.Now().Unix(),
		Domain:    ProofDomain{LengthBytes: len(testProofDomain), Value: testProofDomain},
		Payload:   payload,
	}
	msg := proofMessage(0, addrHash, proof)
	proof.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))
	return account, proof
}

// signedProof uses the v3/v4 wallet data layout.
func signedProof(t *testing.T) (*Account, *TonProof) {
	t.Helper()
	return signedProofWithData(t, func(pub ed25519.PublicKey) *cell.Cell {
		return cell.BeginCell().
			MustStoreUInt(0, 32).
			MustStoreUInt(698983191, 32).
			MustStoreSlice(pub, 256).
			EndCell()
	})
}

func TestProofVerify(t *testing.T) {
	account, proof := signedProof(t)
	v := NewProofVerifier(testProofDomain, nil)
	assert.NoError(t, v.Verify(context.Background(), account, proof))
}

func TestProofVerifyPublicKeyFromStateInit(t *testing.T) {
	account, proof := signedProof(t)
	account.PublicKey = ""
	v := NewProofVerifier(testProofDomain, nil)
	assert.NoError(t, v.Verify(context.Background(), account, proof))
}

func TestProofVerifyPublicKeyFromV5StateInit(t *testing.T) {
	// v5 wallet data leads with an auth bit, so the key sits one bit
	// further in than in v3/v4.
	account, proof := signedProofWithData(t, func(pub ed25519.PublicKey) *cell.Cell {
		return cell.BeginCell().
			MustStoreBoolBit(true).
			MustStoreUInt(0, 32).
			MustStoreUInt(0x7FFFFF11, 32).
			MustStoreSlice(pub, 256).
			MustStoreBoolBit(false).
			EndCell()
	})
	account.PublicKey = ""

	v := NewProofVerifier(testProofDomain, nil)
	assert.NoError(t, v.Verify(context.Background(), account, proof))
}

func TestProofVerifyRejectsWrongDomain(t *testing.T) {
	account, proof := signedProof(t)
	v := NewProofVerifier("other.example", nil)
	assert.ErrorIs(t, v.Verify(context.Background(), account, proof), ErrProofDomain)
}

func TestProofVerifyRejectsTamperedSignature(t *testing.T) {
	account, proof := signedProof(t)
	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	require.NoError(t, err)
	sig[0] ^= 1
	proof.Signature = base64.StdEncoding.EncodeToString(sig)

	v := NewProofVerifier(testProofDomain, nil)
	assert.ErrorIs(t, v.Verify(context.Background(), account, proof), ErrProofSignature)
}

func TestProofVerifyRejectsReplay(t *testing.T) {
	account, proof := signedProof(t)
	v := NewProofVerifier(testProofDomain, NewMemoryStorage())

	ctx := context.Background()
	require.NoError(t, v.Verify(ctx, account, proof))
	assert.ErrorIs(t, v.Verify(ctx, account, proof), ErrProofReplay)
}

func TestProofVerifyRejectsForeignStateInit(t *testing.T) {
	account, proof := signedProof(t)
	other, _ := signedProof(t)
	account.WalletStateInit = other.WalletStateInit

	v := NewProofVerifier(testProofDomain, nil)
	assert.ErrorIs(t, v.Verify(context.Background(), account, proof), ErrProofStateInit)
}

func TestProofPayloadExpiry(t *testing.T) {
	fresh, err := GenerateProofPayload(time.Hour)
	require.NoError(t, err)
	assert.False(t, payloadExpired(fresh))

	stale := make([]byte, 16)
	binary.BigEndian.PutUint64(stale[8:], uint64(time.Now().Add(-time.Minute).Unix()))
	assert.True(t, payloadExpired(hex.EncodeToString(stale)))

	assert.True(t, payloadExpired("tooshort"))
}

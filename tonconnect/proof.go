package tonconnect

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tonkeeper/tongo"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	tonProofPrefix   = "ton-proof-item-v2/"
	tonConnectPrefix = "ton-connect"

	// defaultProofLifetime bounds both payload freshness and the
	// wallet-signed timestamp.
	defaultProofLifetime = time.Hour
)

var (
	ErrProofExpired   = errors.New("tonconnect: proof expired")
	ErrProofDomain    = errors.New("tonconnect: proof domain mismatch")
	ErrProofSignature = errors.New("tonconnect: proof signature invalid")
	ErrProofReplay    = errors.New("tonconnect: proof payload already used")
	ErrProofStateInit = errors.New("tonconnect: state init does not match address")
)

// GenerateProofPayload builds a ton_proof challenge: eight random
// bytes followed by a big-endian expiry timestamp, hex encoded.
func GenerateProofPayload(lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = defaultProofLifetime
	}
	payload := make([]byte, 16)
	if _, err := rand.Read(payload[:8]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(payload[8:], uint64(time.Now().Add(lifetime).Unix()))
	return hex.EncodeToString(payload), nil
}

// payloadExpired checks the expiry stamp embedded in a generated
// payload. Foreign payloads without the stamp are rejected.
func payloadExpired(payload string) bool {
	if len(payload) < 32 {
		return true
	}
	raw, err := hex.DecodeString(payload[16:32])
	if err != nil {
		return true
	}
	expiry := int64(binary.BigEndian.Uint64(raw))
	return time.Now().Unix() > expiry
}

// ProofVerifier validates ton_proof items against a dapp domain and
// guards challenge payloads against replay through storage.
type ProofVerifier struct {
	domain   string
	lifetime time.Duration
	storage  Storage
}

// NewProofVerifier builds a verifier for the given dapp domain.
// Storage may be nil to disable replay protection.
func NewProofVerifier(domain string, storage Storage) *ProofVerifier {
	return &ProofVerifier{domain: domain, lifetime: defaultProofLifetime, storage: storage}
}

// Verify checks a connect handshake's ton_proof item: payload expiry
// and replay, signed timestamp, domain binding, state init address
// match and the ed25519 signature itself.
func (v *ProofVerifier) Verify(ctx context.Context, account *Account, proof *TonProof) error {
	if account == nil || proof == nil {
		return errors.New("tonconnect: proof or account missing")
	}

	if payloadExpired(proof.Payload) {
		return ErrProofExpired
	}
	if time.Now().After(time.Unix(proof.Timestamp, 0).Add(v.lifetime)) {
		return ErrProofExpired
	}
	if proof.Domain.Value != v.domain {
		return fmt.Errorf("%w: got %q, want %q", ErrProofDomain, proof.Domain.Value, v.domain)
	}

	addr, err := tongo.ParseAddress(account.Address)
	if err != nil {
		return fmt.Errorf("parse account address: %w", err)
	}

	if err := verifyStateInit(account.WalletStateInit, addr.ID.Address[:]); err != nil {
		return err
	}

	keys, err := accountPublicKeys(account)
	if err != nil {
		return err
	}

	sig, err := proof.SignatureBytes()
	if err != nil {
		return fmt.Errorf("decode proof signature: %w", err)
	}

	msg := proofMessage(addr.ID.Workchain, addr.ID.Address[:], proof)
	verified := false
	for _, key := range keys {
		if ed25519.Verify(key, msg, sig) {
			verified = true
			break
		}
	}
	if !verified {
		return ErrProofSignature
	}

	if v.storage != nil {
		if err := v.markPayloadUsed(ctx, proof.Payload); err != nil {
			return err
		}
	}
	return nil
}

// markPayloadUsed records the challenge so a captured proof cannot be
// presented twice.
func (v *ProofVerifier) markPayloadUsed(ctx context.Context, payload string) error {
	key := storageKey("proof", payload)
	if _, err := v.storage.Get(ctx, key); err == nil {
		return ErrProofReplay
	} else if !errors.Is(err, ErrStorageKeyNotFound) {
		return err
	}
	return v.storage.Set(ctx, key, time.Now().UTC().Format(time.RFC3339))
}

// proofMessage assembles the byte string wallets sign for ton_proof.
func proofMessage(workchain int32, addrHash []byte, proof *TonProof) []byte {
	wc := make([]byte, 4)
	binary.BigEndian.PutUint32(wc, uint32(workchain))

	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, uint64(proof.Timestamp))

	dl := make([]byte, 4)
	binary.LittleEndian.PutUint32(dl, uint32(proof.Domain.LengthBytes))

	m := []byte(tonProofPrefix)
	m = append(m, wc...)
	m = append(m, addrHash...)
	m = append(m, dl...)
	m = append(m, []byte(proof.Domain.Value)...)
	m = append(m, ts...)
	m = append(m, []byte(proof.Payload)...)
	inner := sha256.Sum256(m)

	full := []byte{0xff, 0xff}
	full = append(full, []byte(tonConnectPrefix)...)
	full = append(full, inner[:]...)
	outer := sha256.Sum256(full)
	return outer[:]
}

// accountPublicKeys takes the key the wallet reported, falling back to
// extracting candidates from the state init data cell.
func accountPublicKeys(account *Account) ([]ed25519.PublicKey, error) {
	if account.PublicKey != "" {
		raw, err := hex.DecodeString(account.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("decode account public key: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("account public key must be %d bytes", ed25519.PublicKeySize)
		}
		return []ed25519.PublicKey{ed25519.PublicKey(raw)}, nil
	}
	return publicKeysFromStateInit(account.WalletStateInit)
}

// verifyStateInit checks that the hash of the wallet's claimed state
// init equals the account address hash.
func verifyStateInit(stateInitBOC string, addrHash []byte) error {
	c, err := parseStateInitCell(stateInitBOC)
	if err != nil {
		return err
	}
	hash := c.Hash()
	if len(hash) != len(addrHash) {
		return ErrProofStateInit
	}
	for i := range hash {
		if hash[i] != addrHash[i] {
			return ErrProofStateInit
		}
	}
	return nil
}

// publicKeysFromStateInit digs ed25519 key candidates out of the
// wallet data cell. The v3/v4 layout (seqno, subwallet id, key) and
// the v5 layout with a leading auth bit both parse structurally, so
// every candidate is returned and checked against the signature.
func publicKeysFromStateInit(stateInitBOC string) ([]ed25519.PublicKey, error) {
	c, err := parseStateInitCell(stateInitBOC)
	if err != nil {
		return nil, err
	}
	s := c.BeginParse()

	// state init: split_depth, special, code, data, libraries
	if has, err := s.LoadBoolBit(); err != nil {
		return nil, fmt.Errorf("parse state init: %w", err)
	} else if has {
		if _, err := s.LoadUInt(5); err != nil {
			return nil, fmt.Errorf("parse state init: %w", err)
		}
	}
	if has, err := s.LoadBoolBit(); err != nil {
		return nil, fmt.Errorf("parse state init: %w", err)
	} else if has {
		// tick and tock bits
		if _, err := s.LoadUInt(2); err != nil {
			return nil, fmt.Errorf("parse state init: %w", err)
		}
	}
	hasCode, err := s.LoadBoolBit()
	if err != nil {
		return nil, fmt.Errorf("parse state init: %w", err)
	}
	if hasCode {
		if _, err := s.LoadRef(); err != nil {
			return nil, fmt.Errorf("parse state init: %w", err)
		}
	}
	hasData, err := s.LoadBoolBit()
	if err != nil {
		return nil, fmt.Errorf("parse state init: %w", err)
	}
	if !hasData {
		return nil, errors.New("tonconnect: state init has no data cell")
	}
	dataRef, err := s.LoadRef()
	if err != nil {
		return nil, fmt.Errorf("parse state init: %w", err)
	}
	data, err := dataRef.ToCell()
	if err != nil {
		return nil, fmt.Errorf("parse state init: %w", err)
	}

	// v3/v4 store seqno and subwallet id before the key, v5 has an
	// extra auth bit in front.
	var keys []ed25519.PublicKey
	for _, skip := range []uint{64, 65} {
		key, err := readKeyAfter(data.BeginParse(), skip)
		if err == nil {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("tonconnect: unrecognized wallet data layout")
	}
	return keys, nil
}

// readKeyAfter skips the wallet counters and loads 256 bits of key.
func readKeyAfter(s *cell.Slice, skip uint) (ed25519.PublicKey, error) {
	if _, err := s.LoadUInt(skip); err != nil {
		return nil, err
	}
	raw, err := s.LoadSlice(256)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(raw), nil
}

func parseStateInitCell(stateInitBOC string) (*cell.Cell, error) {
	if stateInitBOC == "" {
		return nil, errors.New("tonconnect: state init missing")
	}
	raw, err := base64.StdEncoding.DecodeString(stateInitBOC)
	if err != nil {
		return nil, fmt.Errorf("decode state init: %w", err)
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return nil, fmt.Errorf("parse state init boc: %w", err)
	}
	return c, nil
}

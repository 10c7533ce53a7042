package tonconnect

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// Session holds the x25519 keypair of one bridge session plus the
// connected wallet's public key once known.
type Session struct {
	publicKey  *[32]byte
	privateKey *[32]byte

	// WalletKey is the wallet side's session public key. Nil until the
	// wallet has connected.
	WalletKey *[32]byte
}

// NewSession generates a fresh session keypair.
func NewSession() (*Session, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate session keypair: %w", err)
	}
	return &Session{publicKey: pub, privateKey: priv}, nil
}

// SessionFromKey restores a session from a hex private key and an
// optional hex wallet public key.
func SessionFromKey(privateKeyHex, walletKeyHex string) (*Session, error) {
	priv, err := decodeKey(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("session private key: %w", err)
	}
	s := &Session{privateKey: priv, publicKey: new([32]byte)}
	// Curve25519 base point scalar multiplication recovers the public
	// half.
	pub, _, err := box.GenerateKey(deterministicReader{key: priv})
	if err != nil {
		return nil, err
	}
	s.publicKey = pub
	if walletKeyHex != "" {
		wk, err := decodeKey(walletKeyHex)
		if err != nil {
			return nil, fmt.Errorf("wallet public key: %w", err)
		}
		s.WalletKey = wk
	}
	return s, nil
}

// deterministicReader feeds a fixed 32-byte key into box.GenerateKey
// so the derived public key matches the stored private key.
type deterministicReader struct{ key *[32]byte }

func (r deterministicReader) Read(p []byte) (int, error) {
	return copy(p, r.key[:]), nil
}

// ID is the hex session id used as client_id on the bridge.
func (s *Session) ID() string {
	return hex.EncodeToString(s.publicKey[:])
}

// PrivateKeyHex serializes the private key for storage.
func (s *Session) PrivateKeyHex() string {
	return hex.EncodeToString(s.privateKey[:])
}

// SetWalletKey records the wallet's session public key from its hex
// form.
func (s *Session) SetWalletKey(h string) error {
	k, err := decodeKey(h)
	if err != nil {
		return fmt.Errorf("wallet public key: %w", err)
	}
	s.WalletKey = k
	return nil
}

// Encrypt seals msg for the wallet and returns it base64 encoded with
// the random nonce prepended.
func (s *Session) Encrypt(msg []byte) (string, error) {
	if s.WalletKey == nil {
		return "", errors.New("tonconnect: wallet key not set")
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := box.Seal(nonce[:], msg, &nonce, s.WalletKey, s.privateKey)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 bridge payload from the wallet using the
// stored wallet key.
func (s *Session) Decrypt(payload string) ([]byte, error) {
	if s.WalletKey == nil {
		return nil, errors.New("tonconnect: wallet key not set")
	}
	return s.open(payload, s.WalletKey)
}

// DecryptFrom opens a payload sealed by the hex sender key carried in
// the bridge envelope.
func (s *Session) DecryptFrom(payload, senderKeyHex string) ([]byte, error) {
	key, err := decodeKey(senderKeyHex)
	if err != nil {
		return nil, fmt.Errorf("sender public key: %w", err)
	}
	return s.open(payload, key)
}

func (s *Session) open(payload string, sender *[32]byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode bridge payload: %w", err)
	}
	if len(raw) < 24 {
		return nil, errors.New("tonconnect: bridge payload too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	msg, ok := box.Open(nil, raw[24:], &nonce, sender, s.privateKey)
	if !ok {
		return nil, errors.New("tonconnect: bridge payload authentication failed")
	}
	return msg, nil
}

func decodeKey(h string) (*[32]byte, error) {
	raw, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	var k [32]byte
	copy(k[:], raw)
	return &k, nil
}

package solana

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair is an ed25519 signing key and its address.
type Keypair struct {
	private ed25519.PrivateKey
	public  PublicKey
}

// KeypairFromBase58 decodes a 64 byte secret key in the wallet export format.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return KeypairFromPrivateKey(ed25519.PrivateKey(raw)), nil
}

// KeypairFromPrivateKey wraps an existing ed25519 key.
func KeypairFromPrivateKey(priv ed25519.PrivateKey) *Keypair {
	kp := &Keypair{private: priv}
	copy(kp.public[:], priv.Public().(ed25519.PublicKey))
	return kp
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return KeypairFromPrivateKey(priv), nil
}

// PublicKey returns the wallet address.
func (k *Keypair) PublicKey() PublicKey {
	return k.public
}

// Sign signs message bytes.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

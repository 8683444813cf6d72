// Package keys implements the curve25519 key material used by the
// end-to-end encryption bridge: identity keys, one-time pre-keys, and the
// signed pre-key.
package keys

import (
	"crypto/rand"
	"fmt"
	"io"

	"go.mau.fi/libsignal/ecc"
	"golang.org/x/crypto/curve25519"
)

// KeyPair is a raw curve25519 key pair.
type KeyPair struct {
	Pub  *[32]byte
	Priv *[32]byte
}

// NewKeyPair generates a fresh curve25519 key pair, clamping the private
// scalar per RFC 7748 before deriving the public point.
func NewKeyPair() (*KeyPair, error) {
	var priv, pub [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, fmt.Errorf("keys: generating private scalar: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	curve25519.ScalarBaseMult(&pub, &priv)
	return &KeyPair{Pub: &pub, Priv: &priv}, nil
}

// Sign signs toSign's public key with kp's private key, in the
// type-byte-prefixed form the Signal pre-key signature scheme expects.
func (kp *KeyPair) Sign(toSign *KeyPair) []byte {
	prefixed := make([]byte, 33)
	prefixed[0] = ecc.DjbType
	copy(prefixed[1:], toSign.Pub[:])
	sig := ecc.CalculateSignature(ecc.NewDjbECPrivateKey(*kp.Priv), prefixed)
	return sig[:]
}

// IdentityKeyPair is the long-lived curve25519 identity key pair.
type IdentityKeyPair = KeyPair

// PreKey is a one-time pre-key: a key pair plus the numeric id the server
// and peers reference it by.
type PreKey struct {
	KeyPair
	ID uint32
}

// NewPreKey generates a pre-key with the given id.
func NewPreKey(id uint32) (*PreKey, error) {
	kp, err := NewKeyPair()
	if err != nil {
		return nil, err
	}
	return &PreKey{KeyPair: *kp, ID: id}, nil
}

// SignedPreKey is a medium-lived pre-key whose public key is signed by the
// owning identity key.
type SignedPreKey struct {
	KeyPair
	ID        uint32
	Signature []byte
}

// NewSignedPreKey generates a signed pre-key with the given id, signed by
// identity.
func NewSignedPreKey(identity *IdentityKeyPair, id uint32) (*SignedPreKey, error) {
	kp, err := NewKeyPair()
	if err != nil {
		return nil, err
	}
	return &SignedPreKey{
		KeyPair:   *kp,
		ID:        id,
		Signature: identity.Sign(kp),
	}, nil
}

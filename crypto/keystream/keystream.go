// Package keystream implements the per-direction frame cipher: RC4 with
// 768 bytes of keystream dropped before first use, plus a truncated
// HMAC-SHA1 tag over each frame and a monotonic sequence counter.
package keystream

import (
	"crypto/hmac"
	"crypto/rc4"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMACMismatch is returned by Decode when the embedded MAC tag doesn't
// match the ciphertext. This is fatal to the stream.
var ErrMACMismatch = errors.New("keystream: MAC verification failed")

// MACSize is the number of leading bytes of the HMAC-SHA1 digest that are
// embedded in each encrypted frame.
const MACSize = 4

// dropBytes is the amount of RC4 keystream discarded before first use.
const dropBytes = 768

// KeyStream is a single-direction RC4 cipher plus HMAC-SHA1 MAC with a
// monotonic sequence counter. Reader and writer each own their own
// instance; sequence numbers MUST NOT be reused across directions.
type KeyStream struct {
	cipher *rc4.Cipher
	macKey []byte
	seq    uint32
}

// New builds a KeyStream from a 20-byte cipher key and a 20-byte MAC key, as
// produced by KeyDerivation.DeriveKeys. The first dropBytes of RC4 output
// are discarded immediately.
func New(cipherKey, macKey []byte) (*KeyStream, error) {
	c, err := rc4.NewCipher(cipherKey)
	if err != nil {
		return nil, fmt.Errorf("keystream: %w", err)
	}
	discard := make([]byte, dropBytes)
	c.XORKeyStream(discard, discard)
	mac := make([]byte, len(macKey))
	copy(mac, macKey)
	return &KeyStream{cipher: c, macKey: mac}, nil
}

func (k *KeyStream) mac(ciphertext []byte) []byte {
	h := hmac.New(sha1.New, k.macKey)
	h.Write(ciphertext)
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], k.seq)
	h.Write(seqBytes[:])
	return h.Sum(nil)[:MACSize]
}

// Encode RC4-enciphers buf in place and returns the 4-byte MAC tag computed
// over the resulting ciphertext and the current sequence number. The
// sequence counter is incremented afterward.
func (k *KeyStream) Encode(buf []byte) (tag []byte) {
	k.cipher.XORKeyStream(buf, buf)
	tag = k.mac(buf)
	k.seq++
	return tag
}

// Decode verifies tag against an HMAC computed over buf and the current
// sequence number, then RC4-deciphers buf in place. The sequence counter is
// incremented only on success, so a MAC failure does not advance the
// reader.
func (k *KeyStream) Decode(buf, tag []byte) error {
	expected := k.mac(buf)
	if !hmac.Equal(expected, tag) {
		return ErrMACMismatch
	}
	k.cipher.XORKeyStream(buf, buf)
	k.seq++
	return nil
}

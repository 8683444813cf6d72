// Package kdf derives the four keystream keys from the login secret.
package kdf

import (
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

// iterations is fixed at 2 per the legacy protocol's handshake — a
// deliberately weak iteration count inherited from the original mobile
// client, not a choice this module gets to make.
const iterations = 2

const keyLen = 20

// Keys holds the four 20-byte keystream keys derived from the handshake
// password and nonce: WriterCipher/WriterMAC for the outbound KeyStream,
// ReaderCipher/ReaderMAC for the inbound one.
type Keys struct {
	WriterCipher []byte
	WriterMAC    []byte
	ReaderCipher []byte
	ReaderMAC    []byte
}

// DeriveKeys runs PBKDF2-SHA1 four times over password, using nonce||byte(j)
// as the salt for j in 1..4.
func DeriveKeys(password, nonce []byte) Keys {
	derive := func(j byte) []byte {
		salt := append(append([]byte{}, nonce...), j)
		return pbkdf2.Key(password, salt, iterations, keyLen, sha1.New)
	}
	return Keys{
		WriterCipher: derive(1),
		WriterMAC:    derive(2),
		ReaderCipher: derive(3),
		ReaderMAC:    derive(4),
	}
}

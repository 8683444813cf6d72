package kdf

import "testing"

func TestDeriveKeysProducesFourDistinctTwentyByteKeys(t *testing.T) {
	keys := DeriveKeys([]byte("hunter2"), []byte("some-nonce"))

	all := [][]byte{keys.WriterCipher, keys.WriterMAC, keys.ReaderCipher, keys.ReaderMAC}
	for i, k := range all {
		if len(k) != keyLen {
			t.Fatalf("key %d has length %d, want %d", i, len(k), keyLen)
		}
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if string(all[i]) == string(all[j]) {
				t.Fatalf("keys %d and %d are identical, expected distinct salts", i, j)
			}
		}
	}
}

func TestDeriveKeysIsDeterministic(t *testing.T) {
	password := []byte("hunter2")
	nonce := []byte("fixed-nonce")

	a := DeriveKeys(password, nonce)
	b := DeriveKeys(password, nonce)

	if string(a.WriterCipher) != string(b.WriterCipher) ||
		string(a.WriterMAC) != string(b.WriterMAC) ||
		string(a.ReaderCipher) != string(b.ReaderCipher) ||
		string(a.ReaderMAC) != string(b.ReaderMAC) {
		t.Fatal("DeriveKeys is not deterministic for identical inputs")
	}
}

func TestDeriveKeysDependsOnNonce(t *testing.T) {
	password := []byte("hunter2")

	a := DeriveKeys(password, []byte("nonce-one"))
	b := DeriveKeys(password, []byte("nonce-two"))

	if string(a.WriterCipher) == string(b.WriterCipher) {
		t.Fatal("expected different nonces to produce different keys")
	}
}

package keystream

import (
	"bytes"
	"testing"
)

func testKeys() (cipherKey, macKey []byte) {
	cipherKey = make([]byte, 20)
	macKey = make([]byte, 20)
	for i := range cipherKey {
		cipherKey[i] = byte(i + 1)
		macKey[i] = byte(i + 50)
	}
	return cipherKey, macKey
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cipherKey, macKey := testKeys()
	writer, err := New(cipherKey, macKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reader, err := New(cipherKey, macKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plaintext := []byte("hello from the legacy protocol")
	buf := append([]byte{}, plaintext...)
	tag := writer.Encode(buf)

	if err := reader.Decode(buf, tag); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(buf, plaintext) {
		t.Fatalf("decoded %q, want %q", buf, plaintext)
	}
}

func TestDecodeRejectsBadTag(t *testing.T) {
	cipherKey, macKey := testKeys()
	writer, _ := New(cipherKey, macKey)
	reader, _ := New(cipherKey, macKey)

	buf := []byte("a message")
	tag := writer.Encode(buf)
	tag[0] ^= 0xFF

	if err := reader.Decode(buf, tag); err != ErrMACMismatch {
		t.Fatalf("expected ErrMACMismatch, got %v", err)
	}
}

func TestSequenceNumbersAdvanceInLockstep(t *testing.T) {
	cipherKey, macKey := testKeys()
	writer, _ := New(cipherKey, macKey)
	reader, _ := New(cipherKey, macKey)

	for i := 0; i < 10; i++ {
		plaintext := []byte{byte(i), byte(i + 1), byte(i + 2)}
		buf := append([]byte{}, plaintext...)
		tag := writer.Encode(buf)
		if err := reader.Decode(buf, tag); err != nil {
			t.Fatalf("iter %d: Decode: %v", i, err)
		}
		if !bytes.Equal(buf, plaintext) {
			t.Fatalf("iter %d: decoded %q, want %q", i, buf, plaintext)
		}
	}
}

func TestDifferentKeysProduceDifferentCiphertext(t *testing.T) {
	cipherKey1, macKey1 := testKeys()
	cipherKey2, macKey2 := testKeys()
	cipherKey2[0] ^= 0xFF

	ks1, _ := New(cipherKey1, macKey1)
	ks2, _ := New(cipherKey2, macKey2)

	buf1 := []byte("identical plaintext")
	buf2 := append([]byte{}, buf1...)
	ks1.Encode(buf1)
	ks2.Encode(buf2)

	if bytes.Equal(buf1, buf2) {
		t.Fatal("expected different ciphertexts for different keys")
	}
}

package sqlstore

import (
	"bytes"
	"testing"
)

func TestKeyPairFromRowsRejectsShortKeys(t *testing.T) {
	_, err := keyPairFromRows(make([]byte, 31), make([]byte, 32))
	if err != ErrInvalidLength {
		t.Fatalf("expected ErrInvalidLength for short pub, got %v", err)
	}
	_, err = keyPairFromRows(make([]byte, 32), make([]byte, 10))
	if err != ErrInvalidLength {
		t.Fatalf("expected ErrInvalidLength for short priv, got %v", err)
	}
}

func TestKeyPairFromRowsCopiesBytes(t *testing.T) {
	pub := bytes.Repeat([]byte{0xAB}, 32)
	priv := bytes.Repeat([]byte{0xCD}, 32)
	pair, err := keyPairFromRows(pub, priv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub[0] = 0x00
	if pair.Pub[0] != 0xAB {
		t.Fatalf("keyPairFromRows must copy, not alias, the row bytes")
	}
	if !bytes.Equal(pair.Priv[:], priv) {
		t.Fatalf("priv mismatch")
	}
}

func TestUpgradesListIsNonEmpty(t *testing.T) {
	if len(upgrades) == 0 {
		t.Fatal("expected at least one migration")
	}
}

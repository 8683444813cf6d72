package wacore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadCachedNonce(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.cfg.ChallengeFile = filepath.Join(t.TempDir(), "challenge")
	cli.nonce = bytes.Repeat([]byte{0xCC}, 32)

	cli.saveCachedNonce()

	data, err := os.ReadFile(cli.cfg.ChallengeFile)
	if err != nil {
		t.Fatalf("reading saved challenge file: %v", err)
	}
	if !bytes.Equal(data, cli.nonce) {
		t.Fatalf("saved nonce mismatch")
	}

	cli.nonce = nil
	cli.loadCachedNonce()
	if !bytes.Equal(cli.nonce, bytes.Repeat([]byte{0xCC}, 32)) {
		t.Fatalf("loadCachedNonce didn't restore the saved nonce")
	}
}

func TestLoadCachedNonceMissingFileIsNotAnError(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.cfg.ChallengeFile = filepath.Join(t.TempDir(), "does-not-exist")

	cli.loadCachedNonce()
	if cli.nonce != nil {
		t.Fatalf("expected nonce to stay nil when the challenge file doesn't exist")
	}
}

func TestSaveCachedNonceNoopWithoutChallengeFile(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.nonce = []byte{1, 2, 3}

	cli.saveCachedNonce()
}

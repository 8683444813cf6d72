package binary

import (
	"testing"

	"go.mau.fi/wacore/crypto/keystream"
)

func pairedKeyStreams(t *testing.T) (writer, reader *keystream.KeyStream) {
	t.Helper()
	cipherKey := make([]byte, 20)
	macKey := make([]byte, 20)
	for i := range cipherKey {
		cipherKey[i] = byte(i + 1)
		macKey[i] = byte(i + 100)
	}
	w, err := keystream.New(cipherKey, macKey)
	if err != nil {
		t.Fatalf("keystream.New writer: %v", err)
	}
	r, err := keystream.New(cipherKey, macKey)
	if err != nil {
		t.Fatalf("keystream.New reader: %v", err)
	}
	return w, r
}

func TestEncryptedFrameRoundTrip(t *testing.T) {
	writer, reader := pairedKeyStreams(t)
	n := Node{Tag: "iq", Attrs: AttrsFrom("id", "1", "type", "set")}

	frame, err := EncodeFrame(n, writer)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, consumed, err := DecodeFrame(frame, reader)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed %d, want %d", consumed, len(frame))
	}
	if got.Tag != "iq" || got.Attr("id") != "1" {
		t.Fatalf("decoded node mismatch: %+v", got)
	}
}

func TestEncryptedFrameSequenceLockstep(t *testing.T) {
	writer, reader := pairedKeyStreams(t)
	for i := 0; i < 5; i++ {
		n := Node{Tag: "ping"}
		frame, err := EncodeFrame(n, writer)
		if err != nil {
			t.Fatalf("EncodeFrame iter %d: %v", i, err)
		}
		if _, _, err := DecodeFrame(frame, reader); err != nil {
			t.Fatalf("DecodeFrame iter %d: %v", i, err)
		}
	}
}

func TestEncryptedFrameTamperedMACRejected(t *testing.T) {
	writer, reader := pairedKeyStreams(t)
	n := Node{Tag: "iq", Attrs: AttrsFrom("id", "1")}
	frame, err := EncodeFrame(n, writer)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	// Flip a bit inside the MAC tag, which immediately follows the 3-byte
	// frame header.
	frame[frameHeaderSize] ^= 0xFF

	if _, _, err := DecodeFrame(frame, reader); err != keystream.ErrMACMismatch {
		t.Fatalf("expected ErrMACMismatch, got %v", err)
	}
}

func TestEncryptedFrameMACFailureDoesNotAdvanceSequence(t *testing.T) {
	// A MAC failure is fatal to the stream, but the reader's
	// sequence counter specifically must not tick forward on a rejected
	// frame: decoding the same tampered bytes twice must fail identically
	// both times, and once the tampering is undone the frame must still
	// decode, which it can only do if the reader is still in step with the
	// writer.
	writer, reader := pairedKeyStreams(t)

	bad, err := EncodeFrame(Node{Tag: "ping"}, writer)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	bad[frameHeaderSize] ^= 0xFF

	if _, _, err := DecodeFrame(bad, reader); err != keystream.ErrMACMismatch {
		t.Fatalf("expected ErrMACMismatch, got %v", err)
	}
	if _, _, err := DecodeFrame(bad, reader); err != keystream.ErrMACMismatch {
		t.Fatalf("expected ErrMACMismatch on second attempt, got %v", err)
	}

	bad[frameHeaderSize] ^= 0xFF
	if _, _, err := DecodeFrame(bad, reader); err != nil {
		t.Fatalf("restored frame should decode after the rejected attempts, got %v", err)
	}
}

func TestDecodeFrameShortBufferReturnsErrNotEnoughData(t *testing.T) {
	frame, err := EncodeFrame(Node{Tag: "ping"}, nil)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	_, _, err = DecodeFrame(frame[:len(frame)-1], nil)
	if err != ErrNotEnoughData {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
}

package binary

import (
	"fmt"

	"go.mau.fi/wacore/crypto/keystream"
)

// frameHeaderSize is the fixed 3-byte length prefix every frame carries.
// Bit 0x80 of the first byte marks the frame as encrypted; the remaining
// 20 bits are the body length.
const frameHeaderSize = 3

const encryptedFlag = 0x80

// EncodeFrame serializes n and wraps it in the 3-byte length-prefixed frame
// envelope. When ks is non-nil, the body is RC4-enciphered
// and a 4-byte HMAC tag is spliced in at the front of the ciphertext
// (MAC precedes the ciphered payload), and the encrypted bit is set.
func EncodeFrame(n Node, ks *keystream.KeyStream) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteNode(n); err != nil {
		return nil, err
	}
	body := w.Bytes()

	if ks == nil {
		return wrapFrame(body, false), nil
	}

	tag := ks.Encode(body)
	encrypted := make([]byte, 0, len(tag)+len(body))
	encrypted = append(encrypted, tag...)
	encrypted = append(encrypted, body...)
	return wrapFrame(encrypted, true), nil
}

func wrapFrame(body []byte, encrypted bool) []byte {
	n := len(body)
	header := [frameHeaderSize]byte{
		byte(n >> 16 & 0x0F),
		byte(n >> 8 & 0xFF),
		byte(n & 0xFF),
	}
	if encrypted {
		header[0] |= encryptedFlag
	}
	out := make([]byte, 0, frameHeaderSize+n)
	out = append(out, header[:]...)
	out = append(out, body...)
	return out
}

// DecodeFrame reads one frame's worth of bytes from buf, returning the
// decoded node, the number of bytes consumed from buf, and an error. A
// buf shorter than the declared frame length returns ErrNotEnoughData and
// consumes nothing, so callers can retry once more bytes arrive.
func DecodeFrame(buf []byte, ks *keystream.KeyStream) (n *Node, consumed int, err error) {
	if len(buf) < frameHeaderSize {
		return nil, 0, ErrNotEnoughData
	}
	encrypted := buf[0]&encryptedFlag != 0
	length := (int(buf[0]&0x0F) << 16) | (int(buf[1]) << 8) | int(buf[2])
	total := frameHeaderSize + length
	if len(buf) < total {
		return nil, 0, ErrNotEnoughData
	}
	body := make([]byte, length)
	copy(body, buf[frameHeaderSize:total])

	if encrypted {
		if ks == nil {
			return nil, 0, fmt.Errorf("binary: encrypted frame received before keystream installed")
		}
		if length < keystream.MACSize {
			return nil, 0, ErrInvalidNode
		}
		tag := body[:keystream.MACSize]
		ciphertext := body[keystream.MACSize:]
		if err := ks.Decode(ciphertext, tag); err != nil {
			return nil, 0, err
		}
		body = ciphertext
	}

	node, err := NewReader(body).ReadNode()
	if err != nil {
		return nil, 0, err
	}
	return node, total, nil
}

package wacore

import (
	"errors"
	"fmt"

	"go.mau.fi/wacore/binary"
)

// Protocol/transport-level errors.
var (
	ErrNotConnected    = errors.New("wacore: not connected")
	ErrAlreadyLoggedIn = errors.New("wacore: already logged in")
)

// ErrUnknownToken and friends from the binary codec are surfaced as-is;
// re-exported here so callers don't need to import the binary package just
// to compare errors.
var (
	ErrUnknownToken   = binary.ErrUnknownToken
	ErrInvalidNode    = binary.ErrInvalidNode
	ErrStreamEnd      = binary.ErrStreamEnd
	ErrLengthTooLarge = binary.ErrLengthTooLarge
)

// AuthError wraps a <failure> node received during the handshake.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("wacore: authentication failed: %s", e.Reason)
}

// RequestError wraps an <iq type="error"> response.
type RequestError struct {
	Code int
	Text string
}

func (e *RequestError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("wacore: request failed with code %d", e.Code)
	}
	return fmt.Sprintf("wacore: request failed with code %d: %s", e.Code, e.Text)
}

// DisconnectedError is returned to any RequestTracker waiter still pending
// when the transport goes away.
type DisconnectedError struct {
	Action string
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("wacore: disconnected while waiting for %s", e.Action)
}

// MediaError is returned by RequestUpload when an upload cannot start (no
// MediaStore configured, or the file cannot be read). Failures after the
// upload slot is requested are delivered as events.MediaErrorEvent instead.
// Neither closes the session.
type MediaError struct {
	Op  string
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("wacore: media %s failed: %v", e.Op, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// EncryptionError wraps a decryption failure, a missing session, or a
// pre-key mismatch. It is logged and the affected message is dropped; it is
// never fatal to the session.
type EncryptionError struct {
	JID string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("wacore: encryption error for %s: %v", e.JID, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// Package store defines the KeyStore contract and a
// libsignal-facing adapter over it. Persistent backends (see
// store/sqlstore) implement KeyStore; the in-memory signal store wrapper
// here (Signal) turns any KeyStore into a go.mau.fi/libsignal
// store.SignalProtocol, the interface the encryption bridge's
// session-builder and cipher need.
package store

import (
	"context"

	"go.mau.fi/wacore/keys"
	"go.mau.fi/wacore/types"
)

// KeyStore is the persistence contract external to this module. A
// relational backing is natural but not required — callers may implement
// it over any associative store.
type KeyStore interface {
	StoreLocalIdentity(ctx context.Context, registrationID uint32, pair *keys.IdentityKeyPair) error
	GetLocalIdentity(ctx context.Context) (uint32, *keys.IdentityKeyPair, error)

	StorePreKey(ctx context.Context, id uint32, record *keys.PreKey) error
	GetPreKey(ctx context.Context, id uint32) (*keys.PreKey, error)
	DeletePreKey(ctx context.Context, id uint32) error

	StoreSignedPreKey(ctx context.Context, id uint32, record *keys.SignedPreKey) error
	GetSignedPreKey(ctx context.Context, id uint32) (*keys.SignedPreKey, error)

	StoreSession(ctx context.Context, jid types.JID, deviceID uint16, session []byte) error
	LoadSession(ctx context.Context, jid types.JID, deviceID uint16) ([]byte, error)
}

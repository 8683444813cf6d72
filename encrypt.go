package wacore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.mau.fi/libsignal/ecc"
	"go.mau.fi/libsignal/keys/identity"
	"go.mau.fi/libsignal/keys/prekey"
	"go.mau.fi/libsignal/protocol"
	"go.mau.fi/libsignal/serialize"
	"go.mau.fi/libsignal/session"
	"go.mau.fi/util/random"

	"go.mau.fi/wacore/keys"
	waLog "go.mau.fi/wacore/log"
	"go.mau.fi/wacore/store"
	"go.mau.fi/wacore/types"
)

// signalSerializer is the wire serializer every session.Builder/Cipher call
// below is constructed with, matching store.SignalProtobufSerializer so
// records read back the same way they were written.
var signalSerializer = serialize.NewProtoBufSerializer()

// ErrNoSession is returned by EncryptForRecipient when neither a cached nor
// a persisted session exists for the recipient; the caller must fetch a
// pre-key bundle and retry.
var ErrNoSession = errors.New("wacore: no signal session established")

// PendingRecipientCount is how many one-time pre-keys PublishPreKeys
// generates on first registration, and the target handleEncryptReplenish
// tops back up to.
const PendingRecipientCount = 200

// EncryptionBridge owns the Signal/Axolotl session state for every
// recipient this session has exchanged encrypted messages with: the local
// identity, a libsignal store adapter, a decoded-session cache, and the
// per-JID pending-plaintext queues used while a pre-key bundle fetch is in
// flight.
type EncryptionBridge struct {
	keyStore store.KeyStore
	log      waLog.Logger

	mu             sync.Mutex
	signal         *store.Signal
	registrationID uint32
	identityPair   *keys.IdentityKeyPair

	pendingLock    sync.Mutex
	pending        map[string][][]byte
	skipEncryption map[string]bool
	requested      map[string][]types.JID
}

// NewEncryptionBridge builds a bridge over keyStore. The local identity is
// not generated or loaded until ensureIdentity's first call, since at
// construction time (NewClient) it isn't yet known whether this is a fresh
// registration or a returning session.
func NewEncryptionBridge(keyStore store.KeyStore, log waLog.Logger) *EncryptionBridge {
	if log == nil {
		log = waLog.Noop
	}
	return &EncryptionBridge{
		keyStore:       keyStore,
		log:            log,
		pending:        make(map[string][][]byte),
		skipEncryption: make(map[string]bool),
		requested:      make(map[string][]types.JID),
	}
}

// ensureIdentity loads the persisted identity key pair and registration id,
// generating and persisting a fresh pair on first use.
func (b *EncryptionBridge) ensureIdentity(ctx context.Context) (*store.Signal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signal != nil {
		return b.signal, nil
	}

	regID, pair, err := b.keyStore.GetLocalIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("wacore: loading local identity: %w", err)
	}
	if pair == nil {
		pair, err = keys.NewKeyPair()
		if err != nil {
			return nil, fmt.Errorf("wacore: generating identity key pair: %w", err)
		}
		regID = binary.BigEndian.Uint32(random.Bytes(4)) & 0x3fff
		if err := b.keyStore.StoreLocalIdentity(ctx, regID, pair); err != nil {
			return nil, fmt.Errorf("wacore: persisting local identity: %w", err)
		}
	}

	signalIdentity := identity.NewKeyPair(
		identity.NewKey(ecc.NewDjbECPublicKey(*pair.Pub)),
		ecc.NewDjbECPrivateKey(*pair.Priv),
	)
	b.registrationID = regID
	b.identityPair = pair
	b.signal = store.NewSignal(b.keyStore, regID, signalIdentity, store.NewSessionCache())
	return b.signal, nil
}

// IdentityPair returns the local identity key pair, loading or generating
// it first if needed. Used by PublishPreKeys to sign the signed pre-key.
func (b *EncryptionBridge) IdentityPair(ctx context.Context) (*keys.IdentityKeyPair, error) {
	if _, err := b.ensureIdentity(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identityPair, nil
}

// RegistrationID returns the local registration id, loading or generating
// the identity first if needed.
func (b *EncryptionBridge) RegistrationID(ctx context.Context) (uint32, error) {
	if _, err := b.ensureIdentity(ctx); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registrationID, nil
}

// EncryptForRecipient encrypts plaintext for to, using a cached or persisted
// session, and returns the serialized ciphertext with its enc type for the
// caller to wrap in an `<enc>` node. It returns ErrNoSession if neither
// exists; the caller is then responsible for enqueuing the plaintext and
// fetching a pre-key bundle.
func (b *EncryptionBridge) EncryptForRecipient(ctx context.Context, to types.JID, plaintext []byte) ([]byte, string, error) {
	signal, err := b.ensureIdentity(ctx)
	if err != nil {
		return nil, "", err
	}
	address := to.SignalAddress()

	has, err := signal.ContainsSession(ctx, address)
	if err != nil {
		return nil, "", fmt.Errorf("wacore: checking session with %s: %w", to, err)
	}
	if !has {
		return nil, "", ErrNoSession
	}

	builder := session.NewBuilderFromSignal(signal, address, signalSerializer)
	cipher := session.NewCipher(builder, address)
	ciphertext, err := cipher.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, "", fmt.Errorf("wacore: encrypting for %s: %w", to, err)
	}

	encType := "msg"
	if ciphertext.Type() == protocol.PREKEY_TYPE {
		encType = "pkmsg"
	}
	return ciphertext.Serialize(), encType, nil
}

// ProcessBundle establishes an outbound session with from from a fetched
// pre-key bundle.
func (b *EncryptionBridge) ProcessBundle(ctx context.Context, from types.JID, bundle *prekey.Bundle) error {
	signal, err := b.ensureIdentity(ctx)
	if err != nil {
		return err
	}
	builder := session.NewBuilderFromSignal(signal, from.SignalAddress(), signalSerializer)
	if err := builder.ProcessBundle(ctx, bundle); err != nil {
		return fmt.Errorf("wacore: processing prekey bundle for %s: %w", from, err)
	}
	return nil
}

// DecryptInbound decrypts an inbound `<enc>` payload from from. isPreKey
// distinguishes type="pkmsg" (establishes a new inbound session) from
// type="msg" (continues an existing one).
func (b *EncryptionBridge) DecryptInbound(ctx context.Context, from types.JID, payload []byte, isPreKey bool) ([]byte, error) {
	signal, err := b.ensureIdentity(ctx)
	if err != nil {
		return nil, err
	}
	address := from.SignalAddress()
	builder := session.NewBuilderFromSignal(signal, address, signalSerializer)
	cipher := session.NewCipher(builder, address)

	if isPreKey {
		msg, err := protocol.NewPreKeySignalMessageFromBytes(payload, signalSerializer.PreKeySignalMessage, signalSerializer.SignalMessage)
		if err != nil {
			return nil, fmt.Errorf("wacore: parsing prekey message from %s: %w", from, err)
		}
		plaintext, _, err := cipher.DecryptMessageReturnKey(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("wacore: decrypting prekey message from %s: %w", from, err)
		}
		return plaintext, nil
	}

	msg, err := protocol.NewSignalMessageFromBytes(payload, signalSerializer.SignalMessage)
	if err != nil {
		return nil, fmt.Errorf("wacore: parsing message from %s: %w", from, err)
	}
	plaintext, err := cipher.Decrypt(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("wacore: decrypting message from %s: %w", from, err)
	}
	return plaintext, nil
}

// EnqueuePending appends plaintext to jid's pending queue, to be delivered
// once a session is established or the JID is marked skip-encryption.
func (b *EncryptionBridge) EnqueuePending(jid types.JID, plaintext []byte) {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	key := jid.String()
	b.pending[key] = append(b.pending[key], plaintext)
}

// ShouldSkipEncryption reports whether a prior pre-key fetch found the
// server holds no keys for jid, meaning plaintext should be sent
// unencrypted.
func (b *EncryptionBridge) ShouldSkipEncryption(jid types.JID) bool {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	return b.skipEncryption[jid.String()]
}

// RecordFetch associates a pre-key fetch IQ's id with the JIDs it
// requested bundles for, so the dispatch table can route the eventual
// response back to DrainPending.
func (b *EncryptionBridge) RecordFetch(id string, jids []types.JID) {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	b.requested[id] = jids
}

// TakeFetch removes and returns the JIDs recorded under id, if any.
func (b *EncryptionBridge) TakeFetch(id string) ([]types.JID, bool) {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	jids, ok := b.requested[id]
	delete(b.requested, id)
	return jids, ok
}

// HasFetch reports whether id is a pending pre-key fetch, without consuming
// it. Used by the dispatch table to recognize the response node.
func (b *EncryptionBridge) HasFetch(id string) bool {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	_, ok := b.requested[id]
	return ok
}

// MarkSkipEncryption records that jid has no pre-keys available and drains
// its pending queue, returning the plaintexts to send unencrypted.
func (b *EncryptionBridge) MarkSkipEncryption(jid types.JID) [][]byte {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	b.skipEncryption[jid.String()] = true
	queued := b.pending[jid.String()]
	delete(b.pending, jid.String())
	return queued
}

// DrainPending removes and returns jid's queued plaintexts, for delivery
// now that a session has been established.
func (b *EncryptionBridge) DrainPending(jid types.JID) [][]byte {
	b.pendingLock.Lock()
	defer b.pendingLock.Unlock()
	queued := b.pending[jid.String()]
	delete(b.pending, jid.String())
	return queued
}

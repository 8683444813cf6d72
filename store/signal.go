package store

import (
	"context"
	"fmt"

	"go.mau.fi/libsignal/ecc"
	groupRecord "go.mau.fi/libsignal/groups/state/record"
	"go.mau.fi/libsignal/keys/identity"
	"go.mau.fi/libsignal/protocol"
	"go.mau.fi/libsignal/serialize"
	"go.mau.fi/libsignal/state/record"
	"go.mau.fi/libsignal/state/store"

	"go.mau.fi/wacore/types"
)

// SignalProtobufSerializer is the wire serializer libsignal's record types
// use to (de)serialize themselves to the bytes KeyStore.StoreSession persists.
var SignalProtobufSerializer = serialize.NewProtoBufSerializer()

// Signal adapts a KeyStore (plus an in-memory trusted-identity cache,
// since the KeyStore contract has no identity-trust operation) into the
// store.SignalProtocol interface go.mau.fi/libsignal's session builder and
// cipher require.
type Signal struct {
	Backend        KeyStore
	RegistrationID uint32
	Identity       *identity.KeyPair
	Cache          *SessionCache

	trustedIdentities map[string][]byte
}

var _ store.SignalProtocol = (*Signal)(nil)

// NewSignal wraps backend with the given local registration id and identity
// key pair (as loaded from, or freshly generated and persisted to, backend
// by the encryption bridge's first-login publication flow). LoadSession and
// StoreSession keep each session record they handle in cache, ContainsSession
// consults it first, and DeleteSession evicts from it, sparing a KeyStore
// round-trip and a protobuf decode on every subsequent encrypted send to the
// same recipient.
func NewSignal(backend KeyStore, registrationID uint32, id *identity.KeyPair, cache *SessionCache) *Signal {
	return &Signal{
		Backend:           backend,
		RegistrationID:    registrationID,
		Identity:          id,
		Cache:             cache,
		trustedIdentities: make(map[string][]byte),
	}
}

func (s *Signal) GetIdentityKeyPair() *identity.KeyPair {
	return s.Identity
}

func (s *Signal) GetLocalRegistrationID() uint32 {
	return s.RegistrationID
}

func (s *Signal) SaveIdentity(ctx context.Context, address *protocol.SignalAddress, identityKey *identity.Key) error {
	pub := identityKey.PublicKey().PublicKey()
	s.trustedIdentities[address.String()] = pub[:]
	return nil
}

// IsTrustedIdentity reports true for any identity not previously seen
// (trust-on-first-use), matching how a freshly paired mobile client accepts
// the first identity key it observes for a JID.
func (s *Signal) IsTrustedIdentity(ctx context.Context, address *protocol.SignalAddress, identityKey *identity.Key) (bool, error) {
	known, ok := s.trustedIdentities[address.String()]
	if !ok {
		return true, nil
	}
	want := identityKey.PublicKey().PublicKey()
	return string(known) == string(want[:]), nil
}

func (s *Signal) LoadPreKey(ctx context.Context, id uint32) (*record.PreKey, error) {
	pk, err := s.Backend.GetPreKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store: loading prekey %d: %w", id, err)
	}
	if pk == nil {
		return nil, nil
	}
	return record.NewPreKey(pk.ID, ecc.NewECKeyPair(
		ecc.NewDjbECPublicKey(*pk.Pub),
		ecc.NewDjbECPrivateKey(*pk.Priv),
	), nil), nil
}

func (s *Signal) RemovePreKey(ctx context.Context, id uint32) error {
	return s.Backend.DeletePreKey(ctx, id)
}

func (s *Signal) StorePreKey(ctx context.Context, id uint32, preKeyRecord *record.PreKey) error {
	panic("store: StorePreKey is not called on this path; pre-keys are written via KeyStore.StorePreKey at generation time")
}

func (s *Signal) ContainsPreKey(ctx context.Context, id uint32) (bool, error) {
	pk, err := s.Backend.GetPreKey(ctx, id)
	return pk != nil, err
}

func (s *Signal) LoadSession(ctx context.Context, address *protocol.SignalAddress) (*record.Session, error) {
	jid, deviceID := addressToJID(address)
	if s.Cache != nil {
		if sess, ok := s.Cache.Get(jid, deviceID); ok {
			return sess, nil
		}
	}
	raw, err := s.Backend.LoadSession(ctx, jid, deviceID)
	if err != nil {
		return nil, fmt.Errorf("store: loading session with %s: %w", address.String(), err)
	}
	if raw == nil {
		return record.NewSession(SignalProtobufSerializer.Session, SignalProtobufSerializer.State), nil
	}
	sess, err := record.NewSessionFromBytes(raw, SignalProtobufSerializer.Session, SignalProtobufSerializer.State)
	if err != nil {
		return nil, fmt.Errorf("store: deserializing session with %s: %w", address.String(), err)
	}
	if s.Cache != nil {
		s.Cache.Put(jid, deviceID, sess)
	}
	return sess, nil
}

func (s *Signal) GetSubDeviceSessions(ctx context.Context, name string) ([]uint32, error) {
	// Device fan-out is a non-goal of this module; only device 1 is ever used.
	return []uint32{1}, nil
}

func (s *Signal) StoreSession(ctx context.Context, address *protocol.SignalAddress, sessionRecord *record.Session) error {
	jid, deviceID := addressToJID(address)
	if err := s.Backend.StoreSession(ctx, jid, deviceID, sessionRecord.Serialize()); err != nil {
		return fmt.Errorf("store: storing session with %s: %w", address.String(), err)
	}
	if s.Cache != nil {
		s.Cache.Put(jid, deviceID, sessionRecord)
	}
	return nil
}

func (s *Signal) ContainsSession(ctx context.Context, address *protocol.SignalAddress) (bool, error) {
	jid, deviceID := addressToJID(address)
	if s.Cache != nil {
		if _, ok := s.Cache.Get(jid, deviceID); ok {
			return true, nil
		}
	}
	raw, err := s.Backend.LoadSession(ctx, jid, deviceID)
	return raw != nil, err
}

func (s *Signal) DeleteSession(ctx context.Context, address *protocol.SignalAddress) error {
	jid, deviceID := addressToJID(address)
	if s.Cache != nil {
		s.Cache.Delete(jid, deviceID)
	}
	return s.Backend.StoreSession(ctx, jid, deviceID, nil)
}

func (s *Signal) DeleteAllSessions(ctx context.Context) error {
	panic("store: bulk session deletion is not part of the KeyStore contract")
}

func (s *Signal) LoadSignedPreKey(ctx context.Context, id uint32) (*record.SignedPreKey, error) {
	spk, err := s.Backend.GetSignedPreKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store: loading signed prekey %d: %w", id, err)
	}
	if spk == nil {
		return nil, nil
	}
	return record.NewSignedPreKey(spk.ID, 0, ecc.NewECKeyPair(
		ecc.NewDjbECPublicKey(*spk.Pub),
		ecc.NewDjbECPrivateKey(*spk.Priv),
	), [64]byte(spk.Signature), nil), nil
}

func (s *Signal) LoadSignedPreKeys(ctx context.Context) ([]*record.SignedPreKey, error) {
	panic("store: enumerating all signed prekeys is not part of the KeyStore contract")
}

func (s *Signal) StoreSignedPreKey(ctx context.Context, id uint32, signedPreKeyRecord *record.SignedPreKey) error {
	panic("store: StoreSignedPreKey is not called on this path; signed prekeys are written via KeyStore.StoreSignedPreKey at generation time")
}

func (s *Signal) ContainsSignedPreKey(ctx context.Context, id uint32) (bool, error) {
	spk, err := s.Backend.GetSignedPreKey(ctx, id)
	return spk != nil, err
}

func (s *Signal) RemoveSignedPreKey(ctx context.Context, id uint32) error {
	panic("store: signed prekeys are not removed by this module")
}

// StoreSenderKey and LoadSenderKey implement the sender-key (group-cipher)
// half of store.SignalProtocol. The EncryptionBridge is strictly
// per-recipient pre-key messaging; group sender-key fan-out is out of
// scope, so these are unreachable in practice but must exist to satisfy
// the interface.
func (s *Signal) StoreSenderKey(ctx context.Context, senderKeyName *protocol.SenderKeyName, keyRecord *groupRecord.SenderKey) error {
	panic("store: sender-key (group cipher) storage is out of scope for this module")
}

func (s *Signal) LoadSenderKey(ctx context.Context, senderKeyName *protocol.SenderKeyName) (*groupRecord.SenderKey, error) {
	panic("store: sender-key (group cipher) storage is out of scope for this module")
}

func addressToJID(address *protocol.SignalAddress) (types.JID, uint16) {
	jid, _ := types.ParseJID(address.Name())
	return jid, 1
}

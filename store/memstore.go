package store

import (
	"context"
	"strconv"
	"sync"

	"go.mau.fi/wacore/keys"
	"go.mau.fi/wacore/types"
)

// MemoryKeyStore is an in-process KeyStore backed by plain maps, for tests
// and short-lived sessions that don't need a persistent backend.
type MemoryKeyStore struct {
	mu sync.Mutex

	registrationID uint32
	identity       *keys.IdentityKeyPair

	preKeys       map[uint32]*keys.PreKey
	signedPreKeys map[uint32]*keys.SignedPreKey
	sessions      map[string][]byte
}

// NewMemoryKeyStore builds an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		preKeys:       make(map[uint32]*keys.PreKey),
		signedPreKeys: make(map[uint32]*keys.SignedPreKey),
		sessions:      make(map[string][]byte),
	}
}

var _ KeyStore = (*MemoryKeyStore)(nil)

func (m *MemoryKeyStore) StoreLocalIdentity(ctx context.Context, registrationID uint32, pair *keys.IdentityKeyPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrationID = registrationID
	m.identity = pair
	return nil
}

func (m *MemoryKeyStore) GetLocalIdentity(ctx context.Context) (uint32, *keys.IdentityKeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registrationID, m.identity, nil
}

func (m *MemoryKeyStore) StorePreKey(ctx context.Context, id uint32, record *keys.PreKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preKeys[id] = record
	return nil
}

func (m *MemoryKeyStore) GetPreKey(ctx context.Context, id uint32) (*keys.PreKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preKeys[id], nil
}

func (m *MemoryKeyStore) DeletePreKey(ctx context.Context, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.preKeys, id)
	return nil
}

func (m *MemoryKeyStore) StoreSignedPreKey(ctx context.Context, id uint32, record *keys.SignedPreKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedPreKeys[id] = record
	return nil
}

func (m *MemoryKeyStore) GetSignedPreKey(ctx context.Context, id uint32) (*keys.SignedPreKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signedPreKeys[id], nil
}

func (m *MemoryKeyStore) sessionKey(jid types.JID, deviceID uint16) string {
	return jid.String() + "/" + strconv.Itoa(int(deviceID))
}

func (m *MemoryKeyStore) StoreSession(ctx context.Context, jid types.JID, deviceID uint16, session []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session == nil {
		delete(m.sessions, m.sessionKey(jid, deviceID))
		return nil
	}
	m.sessions[m.sessionKey(jid, deviceID)] = session
	return nil
}

func (m *MemoryKeyStore) LoadSession(ctx context.Context, jid types.JID, deviceID uint16) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[m.sessionKey(jid, deviceID)], nil
}

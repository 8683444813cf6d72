package store

import (
	"strconv"

	"go.mau.fi/libsignal/state/record"
	"go.mau.fi/util/exsync"

	"go.mau.fi/wacore/types"
)

// SessionCache holds decoded libsignal session records keyed by "jid/device",
// avoiding a KeyStore round-trip (and a Signal.LoadSession deserialize) on
// every encrypted send to a recipient the bridge has already talked to.
type SessionCache struct {
	m *exsync.Map[string, *record.Session]
}

// NewSessionCache builds an empty cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{m: exsync.NewMap[string, *record.Session]()}
}

func cacheKey(jid types.JID, deviceID uint16) string {
	return jid.String() + "/" + strconv.FormatUint(uint64(deviceID), 10)
}

// Get returns the cached session for (jid, deviceID), if any.
func (c *SessionCache) Get(jid types.JID, deviceID uint16) (*record.Session, bool) {
	return c.m.Get(cacheKey(jid, deviceID))
}

// Put caches sess for (jid, deviceID).
func (c *SessionCache) Put(jid types.JID, deviceID uint16, sess *record.Session) {
	c.m.Set(cacheKey(jid, deviceID), sess)
}

// Delete evicts any cached session for (jid, deviceID).
func (c *SessionCache) Delete(jid types.JID, deviceID uint16) {
	c.m.Delete(cacheKey(jid, deviceID))
}

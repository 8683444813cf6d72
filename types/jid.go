// Package types contains the addressing and contact types shared across wacore.
package types

import (
	"fmt"
	"strconv"
	"strings"

	signalProtocol "go.mau.fi/libsignal/protocol"
)

// Known JID servers on the legacy WhatsApp wire protocol.
const (
	DefaultUserServer = "s.whatsapp.net"
	GroupServer       = "g.us"
	LegacyUserServer  = "c.us"
	BroadcastServer   = "broadcast"
)

// ServerJID addresses the server itself, used as the "to" of most bare IQs.
var ServerJID = JID{Server: DefaultUserServer}

// JID is a WhatsApp addressable identifier: either a user (digits@s.whatsapp.net)
// or a group (digits-digits@g.us).
type JID struct {
	User   string
	Device uint16
	Server string
}

// NewJID builds a plain user/group JID (no device suffix).
func NewJID(user, server string) JID {
	return JID{User: user, Server: server}
}

// IsEmpty reports whether the JID has neither a user nor a server component.
func (j JID) IsEmpty() bool {
	return j.User == "" && j.Server == ""
}

// IsGroup reports whether the JID addresses a group chat.
func (j JID) IsGroup() bool {
	return j.Server == GroupServer
}

// String renders the JID in on-the-wire form, user@server, ignoring Device
// (the legacy protocol has no agent/device-indexed ad-hoc JIDs).
func (j JID) String() string {
	if j.User == "" {
		return j.Server
	}
	return j.User + "@" + j.Server
}

// ParseJID parses a "user@server" or bare "server" string into a JID.
func ParseJID(raw string) (JID, error) {
	if raw == "" {
		return JID{}, fmt.Errorf("types: empty JID")
	}
	at := strings.IndexByte(raw, '@')
	if at < 0 {
		return JID{Server: raw}, nil
	}
	return JID{User: raw[:at], Server: raw[at+1:]}, nil
}

// SignalAddress renders the JID as the libsignal store key the encryption
// bridge's session builder and cipher address sessions by.
func (j JID) SignalAddress() *signalProtocol.SignalAddress {
	return signalProtocol.NewSignalAddress(j.User, uint32(j.Device))
}

// NewUserJID builds a s.whatsapp.net JID for the given MSISDN digit string.
func NewUserJID(msisdn string) JID {
	return JID{User: msisdn, Server: DefaultUserServer}
}

// IsValidMSISDN reports whether s looks like a bare E.164 digit string
// (no leading +), which is what the handshake auth payload requires.
func IsValidMSISDN(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

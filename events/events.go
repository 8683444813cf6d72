// Package events contains every event kind a Client emits to functions
// registered with AddEventHandler. Each kind is a distinct struct with named
// fields — never a positional tuple.
package events

import (
	"time"

	"go.mau.fi/wacore/types"
)

// Login is emitted once the handshake completes and the session reaches
// LoggedIn.
type Login struct {
	JID types.JID
}

// LoggedOut is emitted when the handshake is rejected terminally.
type LoggedOut struct {
	Reason string
}

// Disconnected is emitted whenever the transport closes while the session is
// logged in, including a close caused by Client.Disconnect.
type Disconnected struct{}

// Message is the canonical plain-text message emission from MessageProcessor.
type Message struct {
	From      types.JID
	ID        string
	Timestamp time.Time
	Notify    string
	Author    types.JID
	Body      string
}

// Location is emitted for location-share messages.
type Location struct {
	From      types.JID
	ID        string
	Timestamp time.Time
	Notify    string
	Latitude  float64
	Longitude float64
	Name      string
	URL       string
	Thumbnail []byte
}

// MediaKind distinguishes the three media message shapes MessageProcessor
// recognizes.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// Media is emitted for image, video, and audio messages — the three share a
// field shape and differ only in Kind and which optional fields are set.
type Media struct {
	Kind      MediaKind
	From      types.JID
	ID        string
	Timestamp time.Time
	Notify    string

	URL      string
	Size     int64
	File     string
	Encoding string
	IP       string
	MimeType string
	FileHash string

	Width, Height int   // image/video only
	Duration      int   // audio/video only
	Codecs        string

	Thumbnail []byte
	Caption   string
}

// VCard is emitted for contact-card messages.
type VCard struct {
	From      types.JID
	ID        string
	Timestamp time.Time
	Notify    string
	Name      string
	VCard     []byte
}

// ReceiptType distinguishes delivery acknowledgement from read acknowledgement.
type ReceiptType string

const (
	ReceiptDelivered ReceiptType = ""
	ReceiptRead      ReceiptType = "read"
)

// ClientReceived is emitted when the counterparty's client acknowledges one
// or more previously sent message ids.
type ClientReceived struct {
	From types.JID
	Type ReceiptType
	IDs  []string
}

// Receipt is emitted for an inbound read/delivery receipt on a message this
// client sent.
type Receipt struct {
	From      types.JID
	MessageID string
	Type      ReceiptType
	Timestamp time.Time
}

// TypingState distinguishes composing from paused.
type TypingState string

const (
	TypingComposing TypingState = "composing"
	TypingPaused    TypingState = "paused"
)

// Typing is emitted for both explicit <chatstate> nodes and the synthetic
// "paused" inferred from a plain text message.
type Typing struct {
	From  types.JID
	Group types.JID // set for group chatstates, zero value otherwise
	State TypingState
}

// Presence is emitted for inbound presence broadcasts from a contact.
type Presence struct {
	From        types.JID
	Available   bool
	LastSeen    time.Time
	HasLastSeen bool
}

// GroupEventKind distinguishes the group-metadata notification shapes.
type GroupEventKind string

const (
	GroupSubjectChanged     GroupEventKind = "subject"
	GroupParticipantsAdded  GroupEventKind = "add"
	GroupParticipantsLeft   GroupEventKind = "remove"
	GroupParticipantPromote GroupEventKind = "promote"
	GroupParticipantDemote  GroupEventKind = "demote"
)

// GroupInfo is emitted when a <notification> describes a group metadata
// change.
type GroupInfo struct {
	Group        types.JID
	Kind         GroupEventKind
	Participant  types.JID
	Subject      string
	Participants []types.JID
	Timestamp    time.Time
}

// ProfilePictureReceived is emitted for an inbound picture iq that does not
// answer a tracked request; GetProfilePicture returns its reply directly.
type ProfilePictureReceived struct {
	JID     types.JID
	URL     string
	Preview bool
}

// StatusReceived is emitted for an inbound status iq that does not answer a
// tracked request; GetStatus returns its reply directly.
type StatusReceived struct {
	JID    types.JID
	Status string
	SetAt  time.Time
}

// MediaErrorEvent surfaces an upload/download/thumbnail failure that is not
// fatal to the session.
type MediaErrorEvent struct {
	Op  string
	To  types.JID
	Err error
}

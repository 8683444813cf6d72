package binary

// Single-byte dictionary tokens, indices 3..len(singleTokens)-1. Indices 0-2
// are reserved for the framing tokens (listEmpty, unused, streamEnd).
var singleTokens = [...]string{"", "", "", "200", "400", "404", "500", "501", "502", "action", "add",
	"after", "archive", "author", "available", "battery", "before", "body",
	"broadcast", "chat", "clear", "code", "composing", "contacts", "count",
	"create", "debug", "delete", "demote", "duplicate", "encoding", "error",
	"false", "filehash", "from", "g.us", "group", "groups_v2", "height", "id",
	"image", "in", "index", "invis", "item", "jid", "kind", "last", "leave",
	"live", "log", "media", "message", "mimetype", "missing", "modify", "name",
	"notification", "notify", "out", "owner", "participant", "paused",
	"picture", "played", "presence", "preview", "promote", "query", "raw",
	"read", "receipt", "received", "recipient", "recording", "relay",
	"remove", "response", "resume", "retry", "s.whatsapp.net", "seconds",
	"set", "size", "status", "subject", "subscribe", "t", "text", "to", "true",
	"type", "unarchive", "unavailable", "url", "user", "value", "web", "width",
	"mute", "read_only", "admin", "creator", "short", "update", "powersave",
	"checksum", "epoch", "block", "previous", "409", "replaced", "reason",
	"spam", "modify_tag", "message_info", "delivery", "emoji", "title",
	"description", "canonical-url", "matched-text", "star", "unstar",
	"media_key", "filename", "identity", "unread", "page", "page_count",
	"search", "media_message", "security", "call_log", "profile", "ciphertext",
	"invite", "gif", "vcard", "frequent", "privacy", "blacklist", "whitelist",
	"verify", "location", "document", "elapsed", "revoke_invite", "expiration",
	"unsubscribe", "disable", "vname", "old_jid", "new_jid", "announcement",
	"locked", "prop", "label", "color", "call", "offer", "call-id",
	"chatstate", "enc", "pkmsg", "msg", "sync", "key", "skey", "list",
	"registration", "pricing", "extend", "props", "ib", "clean", "dirty",
	"groups", "account", "succeed", "passive", "active", "features", "auth",
	"challenge", "response_auth", "success", "failure", "stream:error",
	"ping", "pong", "participants", "notice",
}

// secondaryTables holds up to 8 extension tables of up to 256 entries each,
// addressed by the dictionary0..dictionary7 prefix bytes (236..243). None
// are populated yet in this protocol revision; the slots exist so the codec
// can grow without a framing change.
var secondaryTables = [8][]string{}

// Dictionary exposes token lookups shared by Writer and Reader. Both ends of
// a connection MUST use identical tables.
type Dictionary struct{}

// DefaultDictionary is the single dictionary instance all codecs share.
var DefaultDictionary = Dictionary{}

func (Dictionary) singleToken(i int) (string, bool) {
	if i < 3 || i >= len(singleTokens) {
		return "", false
	}
	return singleTokens[i], true
}

func (Dictionary) singleTokenCount() int {
	return len(singleTokens)
}

func (Dictionary) indexOfSingleToken(tok string) int {
	for i, t := range singleTokens {
		if t == tok {
			return i
		}
	}
	return -1
}

func (Dictionary) doubleToken(table, index int) (string, bool) {
	if table < 0 || table >= len(secondaryTables) {
		return "", false
	}
	entries := secondaryTables[table]
	if index < 0 || index >= len(entries) {
		return "", false
	}
	return entries[index], true
}

func (d Dictionary) indexOfDoubleToken(tok string) (table, index int, ok bool) {
	for t, entries := range secondaryTables {
		for i, e := range entries {
			if e == tok {
				return t, i, true
			}
		}
	}
	return 0, 0, false
}

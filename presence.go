package wacore

import (
	"context"
	"strconv"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

// LastSeen is the resolved result of RequestLastSeen.
type LastSeen struct {
	From       types.JID
	SecondsAgo int64
}

// SendPresence broadcasts the caller's own availability, with Config.Username
// as the "name" attribute when it is set.
func (cli *Client) SendPresence(ctx context.Context, available bool) error {
	presenceType := "available"
	if !available {
		presenceType = "unavailable"
	}
	attrs := binary.AttrsFrom("type", presenceType)
	if cli.cfg.Username != "" {
		attrs = binary.AttrsFrom("name", cli.cfg.Username, "type", presenceType)
	}
	return cli.sendNode(binary.Node{Tag: "presence", Attrs: attrs})
}

// SendChatstate broadcasts a typing indicator to jid; composing toggles
// between "composing" and "paused".
func (cli *Client) SendChatstate(ctx context.Context, jid types.JID, composing bool) error {
	tag := "paused"
	if composing {
		tag = "composing"
	}
	return cli.sendNode(binary.Node{
		Tag:      "chatstate",
		Attrs:    binary.AttrsFrom("to", jid.String()),
		Children: []binary.Node{{Tag: tag}},
	})
}

// SubscribePresence asks the server to forward jid's future presence
// broadcasts to this session.
func (cli *Client) SubscribePresence(ctx context.Context, jid types.JID) error {
	return cli.sendNode(binary.Node{
		Tag:   "presence",
		Attrs: binary.AttrsFrom("type", "subscribe", "to", jid.String()),
	})
}

// RequestLastSeen fetches how many seconds ago jid was last seen. The result
// carries only that count (LastSeen.SecondsAgo); no absolute date is
// computed.
func (cli *Client) RequestLastSeen(ctx context.Context, jid types.JID) (*LastSeen, error) {
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "jabber:iq:last",
		Type:      iqGet,
		To:        jid,
	})
	if err != nil {
		return nil, err
	}
	query := res.GetChildByTag("query")
	seconds, err := strconv.ParseInt(query.Attr("seconds"), 10, 64)
	if err != nil {
		return nil, &RequestError{Text: "invalid seconds attribute in last-seen reply"}
	}
	return &LastSeen{From: jid, SecondsAgo: seconds}, nil
}

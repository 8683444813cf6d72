package wacore

import (
	"context"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

// ContactSyncResult reports, per phone number, whether it has a WhatsApp
// account (and under what JID), from the reply's <in> and <out> entries.
// Numbers the server lists as invalid are not reported.
type ContactSyncResult struct {
	Number string
	JID    types.JID
	Exists bool
}

// SyncContacts asks the server which of the given MSISDNs have WhatsApp
// accounts.
func (cli *Client) SyncContacts(ctx context.Context, numbers []string) ([]ContactSyncResult, error) {
	userNodes := make([]binary.Node, len(numbers))
	for i, number := range numbers {
		userNodes[i] = binary.Node{Tag: "user", Payload: []byte(number)}
	}
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "urn:xmpp:whatsapp:sync",
		Type:      iqGet,
		To:        types.ServerJID,
		Content: []binary.Node{
			{
				Tag:      "sync",
				Attrs:    binary.AttrsFrom("mode", "full", "context", "add"),
				Children: userNodes,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	sync := res.GetChildByTag("sync")
	var out []ContactSyncResult
	for _, in := range sync.GetChildrenByTag("in") {
		jid, _ := types.ParseJID(in.Attr("jid"))
		out = append(out, ContactSyncResult{Number: string(in.Payload), JID: jid, Exists: true})
	}
	for _, out2 := range sync.GetChildrenByTag("out") {
		out = append(out, ContactSyncResult{Number: string(out2.Payload), Exists: false})
	}
	return out, nil
}

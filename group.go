package wacore

import (
	"context"
	"fmt"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/types"
)

func participantNodes(participants []types.JID) []binary.Node {
	nodes := make([]binary.Node, len(participants))
	for i, jid := range participants {
		nodes[i] = binary.Node{Tag: "participant", Attrs: binary.AttrsFrom("jid", jid.String())}
	}
	return nodes
}

// CreateGroup creates a group with subject, owned by the caller, with the
// given initial participants, and returns its JID.
func (cli *Client) CreateGroup(ctx context.Context, subject string, participants []types.JID) (types.JID, error) {
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "group",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []binary.Node{
			{
				Tag:      "group",
				Attrs:    binary.AttrsFrom("type", "create", "subject", subject),
				Children: participantNodes(participants),
			},
		},
	})
	if err != nil {
		return types.JID{}, err
	}
	group := res.GetChildByTag("group")
	return types.ParseJID(group.Attr("id"))
}

// LeaveGroup removes the caller from jid.
func (cli *Client) LeaveGroup(ctx context.Context, jid types.JID) error {
	_, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "group",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []binary.Node{
			{Tag: "leave", Children: []binary.Node{
				{Tag: "group", Attrs: binary.AttrsFrom("id", jid.String())},
			}},
		},
	})
	return err
}

// SetGroupSubject changes jid's subject.
func (cli *Client) SetGroupSubject(ctx context.Context, jid types.JID, subject string) error {
	_, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "group",
		Type:      iqSet,
		To:        jid,
		Content: []binary.Node{
			{Tag: "group", Attrs: binary.AttrsFrom("type", "subject", "subject", subject)},
		},
	})
	return err
}

func (cli *Client) changeParticipants(ctx context.Context, jid types.JID, action string, participants []types.JID) error {
	_, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "group",
		Type:      iqSet,
		To:        jid,
		Content: []binary.Node{
			{
				Tag:      "participants",
				Attrs:    binary.AttrsFrom("type", action),
				Children: participantNodes(participants),
			},
		},
	})
	return err
}

// AddParticipants invites participants to jid.
func (cli *Client) AddParticipants(ctx context.Context, jid types.JID, participants []types.JID) error {
	return cli.changeParticipants(ctx, jid, "add", participants)
}

// RemoveParticipants removes participants from jid.
func (cli *Client) RemoveParticipants(ctx context.Context, jid types.JID, participants []types.JID) error {
	return cli.changeParticipants(ctx, jid, "remove", participants)
}

// PromoteParticipants grants participants admin rights in jid.
func (cli *Client) PromoteParticipants(ctx context.Context, jid types.JID, participants []types.JID) error {
	return cli.changeParticipants(ctx, jid, "promote", participants)
}

// DemoteParticipants revokes participants' admin rights in jid.
func (cli *Client) DemoteParticipants(ctx context.Context, jid types.JID, participants []types.JID) error {
	return cli.changeParticipants(ctx, jid, "demote", participants)
}

// QueryGroupInfo fetches jid's current subject and participant list.
func (cli *Client) QueryGroupInfo(ctx context.Context, jid types.JID) (*events.GroupInfo, error) {
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "group",
		Type:      iqGet,
		To:        jid,
		Content: []binary.Node{
			{Tag: "group", Attrs: binary.AttrsFrom("id", jid.String())},
		},
	})
	if err != nil {
		return nil, err
	}
	group := res.GetChildByTag("group")
	if group.Tag == "" {
		return nil, fmt.Errorf("wacore: group query response had no group child")
	}
	var participants []types.JID
	for _, p := range group.GetChildrenByTag("participant") {
		if pjid, err := types.ParseJID(p.Attr("jid")); err == nil {
			participants = append(participants, pjid)
		}
	}
	return &events.GroupInfo{
		Group:        jid,
		Subject:      group.Attr("subject"),
		Participants: participants,
		Timestamp:    cli.nowFunc(),
	}, nil
}

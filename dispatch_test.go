package wacore

import (
	"context"
	"testing"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/types"
)

func TestHandleClientReceiptAcksAndEmits(t *testing.T) {
	cli, sender := newTestClient(t)
	collector := collectEvents(cli)

	cli.handleNode(context.Background(), &binary.Node{
		Tag: "receipt",
		Attrs: binary.AttrsFrom(
			"from", "31000000000@s.whatsapp.net",
			"id", "abc",
			"type", "read",
		),
		Children: []binary.Node{
			{Tag: "list", Children: []binary.Node{
				{Tag: "item", Attrs: binary.AttrsFrom("id", "def")},
			}},
		},
	})

	acks := sender.withTag("ack")
	if len(acks) != 1 || acks[0].Attr("class") != "receipt" {
		t.Fatalf("expected one receipt ack, got %+v", acks)
	}

	var got *events.ClientReceived
	for _, evt := range collector.all() {
		if e, ok := evt.(events.ClientReceived); ok {
			got = &e
		}
	}
	if got == nil {
		t.Fatalf("expected a ClientReceived event")
	}
	if got.Type != events.ReceiptRead || len(got.IDs) != 2 || got.IDs[0] != "abc" || got.IDs[1] != "def" {
		t.Errorf("got %+v, want Type=read IDs=[abc def]", got)
	}
}

func TestHandlePresenceWithLastSeen(t *testing.T) {
	cli, _ := newTestClient(t)
	collector := collectEvents(cli)

	cli.handleNode(context.Background(), &binary.Node{
		Tag: "presence",
		Attrs: binary.AttrsFrom(
			"from", "31000000000@s.whatsapp.net",
			"type", "unavailable",
			"last", "45",
		),
	})

	var got *events.Presence
	for _, evt := range collector.all() {
		if e, ok := evt.(events.Presence); ok {
			got = &e
		}
	}
	if got == nil {
		t.Fatalf("expected a Presence event")
	}
	if got.Available {
		t.Errorf("expected Available=false for type=unavailable")
	}
	if !got.HasLastSeen {
		t.Errorf("expected HasLastSeen=true given a last attribute")
	}
}

func TestHandleIBPingReplies(t *testing.T) {
	cli, sender := newTestClient(t)

	cli.handleNode(context.Background(), &binary.Node{
		Tag:   "ib",
		Attrs: binary.AttrsFrom("from", "s.whatsapp.net"),
		Children: []binary.Node{
			{Tag: "ping", Attrs: binary.AttrsFrom("id", "p1")},
		},
	})

	iqs := sender.withTag("iq")
	if len(iqs) != 1 {
		t.Fatalf("expected one pong iq, got %d", len(iqs))
	}
	if iqs[0].Attr("type") != "result" {
		t.Errorf("type = %q, want %q", iqs[0].Attr("type"), "result")
	}
	if _, ok := iqs[0].GetOptionalChildByTag("ping"); !ok {
		t.Errorf("expected a ping child in the pong reply")
	}
}

func TestHandleIBDirtyRepliesWithClean(t *testing.T) {
	cli, sender := newTestClient(t)

	cli.handleNode(context.Background(), &binary.Node{
		Tag: "ib",
		Children: []binary.Node{
			{Tag: "dirty", Attrs: binary.AttrsFrom("type", "groups", "timestamp", "123")},
		},
	})

	iqs := sender.withTag("iq")
	if len(iqs) != 1 || iqs[0].Attr("type") != "set" {
		t.Fatalf("expected one set iq, got %+v", iqs)
	}
	clean := iqs[0].GetChildByTag("clean")
	if clean.Attr("type") != "groups" || clean.Attr("timestamp") != "123" {
		t.Errorf("clean = %+v, want type=groups timestamp=123", clean.Attrs)
	}
}

func TestHandleChatstateComposing(t *testing.T) {
	cli, _ := newTestClient(t)
	collector := collectEvents(cli)

	cli.handleNode(context.Background(), &binary.Node{
		Tag:   "chatstate",
		Attrs: binary.AttrsFrom("from", "31000000000@s.whatsapp.net"),
		Children: []binary.Node{
			{Tag: "composing"},
		},
	})

	var got *events.Typing
	for _, evt := range collector.all() {
		if e, ok := evt.(events.Typing); ok {
			got = &e
		}
	}
	if got == nil || got.State != events.TypingComposing {
		t.Fatalf("expected TypingComposing, got %+v", got)
	}
}

func TestHandleNotificationSubjectChange(t *testing.T) {
	cli, sender := newTestClient(t)
	collector := collectEvents(cli)

	group := "12345-67890@g.us"
	cli.handleNode(context.Background(), &binary.Node{
		Tag: "notification",
		Attrs: binary.AttrsFrom(
			"from", group,
			"id", "n1",
			"type", "subject",
			"subject", "New subject",
		),
	})

	acks := sender.withTag("ack")
	if len(acks) != 1 || acks[0].Attr("class") != "notification" {
		t.Fatalf("expected one notification ack, got %+v", acks)
	}

	var got *events.GroupInfo
	for _, evt := range collector.all() {
		if e, ok := evt.(events.GroupInfo); ok {
			got = &e
		}
	}
	if got == nil || got.Kind != events.GroupSubjectChanged || got.Subject != "New subject" {
		t.Fatalf("expected a GroupSubjectChanged event, got %+v", got)
	}
	wantGroup, _ := types.ParseJID(group)
	if got.Group != wantGroup {
		t.Errorf("Group = %+v, want %+v", got.Group, wantGroup)
	}
}

func TestEncryptReplenishNotificationTakesPrecedence(t *testing.T) {
	n := &binary.Node{
		Tag:   "notification",
		Attrs: binary.AttrsFrom("type", "encrypt"),
		Children: []binary.Node{
			{Tag: "count", Payload: []byte("5")},
		},
	}
	if !isEncryptReplenishNotification(n) {
		t.Fatalf("expected isEncryptReplenishNotification to match a type=encrypt notification with a count child")
	}
	if tagIs("notification")(n) == false {
		t.Fatalf("sanity check: the generic notification predicate should also match")
	}
	cli, _ := newTestClient(t)
	for _, rule := range cli.dispatch {
		if rule.matches(n) {
			if rule.name != "notification-encrypt" {
				t.Fatalf("first matching dispatch rule = %q, want %q", rule.name, "notification-encrypt")
			}
			return
		}
	}
	t.Fatal("no dispatch rule matched a type=encrypt notification")
}

func TestHandleGroupQueryResultEmitsGroupInfo(t *testing.T) {
	cli, _ := newTestClient(t)
	collector := collectEvents(cli)

	cli.handleNode(context.Background(), &binary.Node{
		Tag: "iq",
		Attrs: binary.AttrsFrom("type", "result", "id", "unsolicited"),
		Children: []binary.Node{
			{Tag: "group", Attrs: binary.AttrsFrom("id", "12345-67890@g.us", "subject", "Team"),
				Children: []binary.Node{
					{Tag: "participant", Attrs: binary.AttrsFrom("jid", "31000000000@s.whatsapp.net")},
				}},
		},
	})

	var got *events.GroupInfo
	for _, evt := range collector.all() {
		if e, ok := evt.(events.GroupInfo); ok {
			got = &e
		}
	}
	if got == nil || got.Subject != "Team" || len(got.Participants) != 1 {
		t.Fatalf("expected a GroupInfo event with one participant, got %+v", got)
	}
}

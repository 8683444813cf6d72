package wacore

import (
	"context"
	"testing"

	"go.mau.fi/wacore/types"
)

func TestSendPresence(t *testing.T) {
	cli, sender := newTestClient(t)

	if err := cli.SendPresence(context.Background(), true); err != nil {
		t.Fatalf("SendPresence(available): %v", err)
	}
	if err := cli.SendPresence(context.Background(), false); err != nil {
		t.Fatalf("SendPresence(unavailable): %v", err)
	}

	presences := sender.withTag("presence")
	if len(presences) != 2 {
		t.Fatalf("expected 2 presence nodes, got %d", len(presences))
	}
	if presences[0].Attr("type") != "available" {
		t.Errorf("first type = %q, want available", presences[0].Attr("type"))
	}
	if presences[1].Attr("type") != "unavailable" {
		t.Errorf("second type = %q, want unavailable", presences[1].Attr("type"))
	}
}

func TestSendChatstate(t *testing.T) {
	cli, sender := newTestClient(t)
	jid := types.NewUserJID("31000000000")

	if err := cli.SendChatstate(context.Background(), jid, true); err != nil {
		t.Fatalf("SendChatstate(composing): %v", err)
	}
	if err := cli.SendChatstate(context.Background(), jid, false); err != nil {
		t.Fatalf("SendChatstate(paused): %v", err)
	}

	states := sender.withTag("chatstate")
	if len(states) != 2 {
		t.Fatalf("expected 2 chatstate nodes, got %d", len(states))
	}
	if states[0].Attr("to") != jid.String() {
		t.Errorf("to = %q, want %q", states[0].Attr("to"), jid.String())
	}
	if _, ok := states[0].GetOptionalChildByTag("composing"); !ok {
		t.Errorf("expected a composing child in the first chatstate")
	}
	if _, ok := states[1].GetOptionalChildByTag("paused"); !ok {
		t.Errorf("expected a paused child in the second chatstate")
	}
}

func TestSubscribePresence(t *testing.T) {
	cli, sender := newTestClient(t)
	jid := types.NewUserJID("31000000000")

	if err := cli.SubscribePresence(context.Background(), jid); err != nil {
		t.Fatalf("SubscribePresence: %v", err)
	}

	presences := sender.withTag("presence")
	if len(presences) != 1 {
		t.Fatalf("expected 1 presence node, got %d", len(presences))
	}
	if presences[0].Attr("type") != "subscribe" || presences[0].Attr("to") != jid.String() {
		t.Errorf("presence = %+v, want type=subscribe to=%s", presences[0].Attrs, jid)
	}
}

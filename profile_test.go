package wacore

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

func TestGetProfilePicture(t *testing.T) {
	cli, sender := newTestClient(t)
	jid := types.NewUserJID("31000000000")

	done := make(chan struct {
		pic *ProfilePicture
		err error
	}, 1)
	go func() {
		pic, err := cli.GetProfilePicture(context.Background(), jid, true)
		done <- struct {
			pic *ProfilePicture
			err error
		}{pic, err}
	}()

	req := waitForIQ(t, sender)
	if req.Attr("xmlns") != "w:profile:picture" || req.Attr("type") != string(iqGet) {
		t.Fatalf("req = %+v, want xmlns=w:profile:picture type=get", req.Attrs)
	}
	picReq := req.GetChildByTag("picture")
	if picReq.Attr("type") != "preview" {
		t.Fatalf("picture type = %q, want preview", picReq.Attr("type"))
	}

	cli.handleNode(context.Background(), &binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("id", req.Attr("id"), "type", "result"),
		Children: []binary.Node{
			{Tag: "picture", Attrs: binary.AttrsFrom("url", "https://pps.example/pic.jpg")},
		},
	})

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("GetProfilePicture: %v", res.err)
		}
		if res.pic.URL != "https://pps.example/pic.jpg" || !res.pic.Preview {
			t.Errorf("got %+v, want URL=https://pps.example/pic.jpg Preview=true", res.pic)
		}
	case <-time.After(time.Second):
		t.Fatal("GetProfilePicture never returned")
	}
}

func TestSetStatus(t *testing.T) {
	cli, sender := newTestClient(t)

	done := make(chan error, 1)
	go func() {
		done <- cli.SetStatus(context.Background(), "busy coding")
	}()

	req := waitForIQ(t, sender)
	if req.Attr("xmlns") != "status" || req.Attr("type") != string(iqSet) {
		t.Fatalf("req = %+v, want xmlns=status type=set", req.Attrs)
	}
	status := req.GetChildByTag("status")
	if string(status.Payload) != "busy coding" {
		t.Fatalf("status payload = %q, want busy coding", status.Payload)
	}

	cli.handleNode(context.Background(), &binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("id", req.Attr("id"), "type", "result"),
	})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SetStatus never returned")
	}
}

func TestGetStatus(t *testing.T) {
	cli, sender := newTestClient(t)
	jid := types.NewUserJID("31000000000")

	done := make(chan struct {
		status *Status
		err    error
	}, 1)
	go func() {
		s, err := cli.GetStatus(context.Background(), jid)
		done <- struct {
			status *Status
			err    error
		}{s, err}
	}()

	req := waitForIQ(t, sender)
	if req.Attr("xmlns") != "status" || req.Attr("type") != string(iqGet) {
		t.Fatalf("req = %+v, want xmlns=status type=get", req.Attrs)
	}

	cli.handleNode(context.Background(), &binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("id", req.Attr("id"), "type", "result"),
		Children: []binary.Node{
			{Tag: "status", Payload: []byte("at the beach"), Attrs: binary.AttrsFrom("t", "1700000000")},
		},
	})

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("GetStatus: %v", res.err)
		}
		if res.status.Text != "at the beach" {
			t.Errorf("Text = %q, want %q", res.status.Text, "at the beach")
		}
		if res.status.SetAt.Unix() != 1700000000 {
			t.Errorf("SetAt = %v, want unix 1700000000", res.status.SetAt)
		}
	case <-time.After(time.Second):
		t.Fatal("GetStatus never returned")
	}
}

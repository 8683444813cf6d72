package wacore

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/wacore/binary"
)

func TestRequestTrackerGeneratesDistinctIDs(t *testing.T) {
	rt := NewRequestTracker("1.2-")
	a := rt.generateRequestID()
	b := rt.generateRequestID()
	if a == b {
		t.Fatalf("expected distinct request ids, got %q twice", a)
	}
}

func TestRequestTrackerReceiveResponse(t *testing.T) {
	rt := NewRequestTracker("1.2-")
	id := rt.generateRequestID()
	waiter := rt.waitResponse(id)

	node := &binary.Node{Tag: "iq", Attrs: binary.AttrsFrom("id", id, "type", "result")}
	if !rt.receiveResponse(node) {
		t.Fatalf("expected receiveResponse to claim a tracked id")
	}
	select {
	case got := <-waiter:
		if got.Attr("id") != id {
			t.Errorf("got id %q, want %q", got.Attr("id"), id)
		}
	default:
		t.Fatalf("expected the waiter channel to have received the node")
	}
}

func TestRequestTrackerReceiveResponseUntracked(t *testing.T) {
	rt := NewRequestTracker("1.2-")
	node := &binary.Node{Tag: "iq", Attrs: binary.AttrsFrom("id", "not-tracked")}
	if rt.receiveResponse(node) {
		t.Fatalf("expected receiveResponse to ignore an untracked id")
	}
}

func TestRequestTrackerClearAllClosesWaiters(t *testing.T) {
	rt := NewRequestTracker("1.2-")
	waiter := rt.waitResponse(rt.generateRequestID())
	rt.clearAll()

	select {
	case _, ok := <-waiter:
		if ok {
			t.Fatalf("expected the channel to be closed, not carry a value")
		}
	default:
		t.Fatalf("expected clearAll to close the waiter channel immediately")
	}
}

// TestSendIQDisconnected covers the DisconnectedError path: clearAll closes
// every waiter, and a blocked sendIQ call surfaces that as its error.
func TestSendIQDisconnected(t *testing.T) {
	cli, _ := newTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := cli.sendIQ(context.Background(), infoQuery{Namespace: "test", Type: iqGet})
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for cli.reqs != nil && time.Now().Before(deadline) {
		cli.reqs.lock.Lock()
		n := len(cli.reqs.waiters)
		cli.reqs.lock.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cli.reqs.clearAll()

	select {
	case err := <-done:
		if _, ok := err.(*DisconnectedError); !ok {
			t.Fatalf("expected a *DisconnectedError, got %v (%T)", err, err)
		}
	case <-time.After(time.Second):
		t.Fatal("sendIQ never returned after clearAll")
	}
}

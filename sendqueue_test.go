package wacore

import (
	"testing"

	"go.mau.fi/wacore/binary"
)

func TestSendQueueDrainOrder(t *testing.T) {
	q := NewSendQueue()
	q.Enqueue(binary.Node{Tag: "first"})
	q.Enqueue(binary.Node{Tag: "second"})
	q.Enqueue(binary.Node{Tag: "third"})

	got := q.Drain()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %d nodes, want %d", len(got), len(want))
	}
	for i, tag := range want {
		if got[i].Tag != tag {
			t.Errorf("node %d = %q, want %q", i, got[i].Tag, tag)
		}
	}
}

func TestSendQueueDrainEmpties(t *testing.T) {
	q := NewSendQueue()
	q.Enqueue(binary.Node{Tag: "only"})
	q.Drain()

	if got := q.Drain(); len(got) != 0 {
		t.Fatalf("expected a second Drain to be empty, got %d nodes", len(got))
	}
}

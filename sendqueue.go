package wacore

import (
	"sync"

	"go.mau.fi/wacore/binary"
)

// queuedNode is one pending outbound node, buffered while the session
// hasn't reached LoggedIn yet.
type queuedNode struct {
	node binary.Node
}

// SendQueue buffers outbound nodes submitted before the session reaches
// LoggedIn, flushing them in original submission order once it does.
type SendQueue struct {
	lock    sync.Mutex
	pending []queuedNode
}

// NewSendQueue builds an empty queue.
func NewSendQueue() *SendQueue {
	return &SendQueue{}
}

// Enqueue appends node to the pending list.
func (q *SendQueue) Enqueue(node binary.Node) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.pending = append(q.pending, queuedNode{node: node})
}

// Drain removes and returns every pending node, in the order it was
// enqueued.
func (q *SendQueue) Drain() []binary.Node {
	q.lock.Lock()
	defer q.lock.Unlock()
	out := make([]binary.Node, len(q.pending))
	for i, qn := range q.pending {
		out[i] = qn.node
	}
	q.pending = nil
	return out
}

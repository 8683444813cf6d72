package wacore

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

// RequestTracker correlates outbound <iq> (and <ack>-carrying) nodes with
// their eventual response by id.
type RequestTracker struct {
	uniqueID  string
	idCounter atomic.Uint64

	lock    sync.Mutex
	waiters map[string]chan<- *binary.Node
}

// NewRequestTracker builds an empty tracker. uniqueID prefixes every
// generated request id so ids from concurrent Client instances in the same
// process never collide.
func NewRequestTracker(uniqueID string) *RequestTracker {
	return &RequestTracker{
		uniqueID: uniqueID,
		waiters:  make(map[string]chan<- *binary.Node),
	}
}

// generateRequestID returns a fresh, process-unique request id.
func (rt *RequestTracker) generateRequestID() string {
	return rt.uniqueID + strconv.FormatUint(rt.idCounter.Add(1), 10)
}

// waitResponse registers a one-shot waiter for reqID and returns the
// channel the eventual response will arrive on.
func (rt *RequestTracker) waitResponse(reqID string) chan *binary.Node {
	ch := make(chan *binary.Node, 1)
	rt.lock.Lock()
	rt.waiters[reqID] = ch
	rt.lock.Unlock()
	return ch
}

// cancelResponse removes and closes a waiter that will never be fulfilled
// (the caller gave up, or the send that would have produced a response
// failed outright).
func (rt *RequestTracker) cancelResponse(reqID string, ch chan *binary.Node) {
	rt.lock.Lock()
	delete(rt.waiters, reqID)
	rt.lock.Unlock()
	close(ch)
}

// receiveResponse delivers node to its tracked waiter, if any, and reports
// whether one was found. Called from the dispatch loop for every inbound
// "iq" or "ack" node before any node-handler table lookup.
func (rt *RequestTracker) receiveResponse(node *binary.Node) bool {
	id, ok := node.OptionalAttr("id")
	if !ok || (node.Tag != "iq" && node.Tag != "ack") {
		return false
	}
	rt.lock.Lock()
	waiter, ok := rt.waiters[id]
	if !ok {
		rt.lock.Unlock()
		return false
	}
	delete(rt.waiters, id)
	rt.lock.Unlock()
	waiter <- node
	return true
}

// clearAll resolves every pending waiter with nil and empties the table.
// Called on disconnect.
func (rt *RequestTracker) clearAll() {
	rt.lock.Lock()
	defer rt.lock.Unlock()
	for _, waiter := range rt.waiters {
		close(waiter)
	}
	rt.waiters = make(map[string]chan<- *binary.Node)
}

type infoQueryType string

const (
	iqSet infoQueryType = "set"
	iqGet infoQueryType = "get"
)

// infoQuery describes an outbound <iq>; sendIQ fills in id/xmlns/type/to
// attributes and tracks the response.
type infoQuery struct {
	Namespace string
	Type      infoQueryType
	To        types.JID
	ID        string
	Content   []binary.Node

	Timeout time.Duration
}

const defaultRequestTimeout = 75 * time.Second

// sendIQAsync sends query and returns a channel that will receive the
// response, without blocking for it.
func (cli *Client) sendIQAsync(query infoQuery) (<-chan *binary.Node, error) {
	if query.ID == "" {
		query.ID = cli.reqs.generateRequestID()
	}
	waiter := cli.reqs.waitResponse(query.ID)
	attrs := binary.AttrsFrom("id", query.ID, "xmlns", query.Namespace, "type", string(query.Type))
	if !query.To.IsEmpty() {
		attrs.Set("to", query.To.String())
	}
	err := cli.sendNode(binary.Node{Tag: "iq", Attrs: attrs, Children: query.Content})
	if err != nil {
		cli.reqs.cancelResponse(query.ID, waiter)
		return nil, err
	}
	return waiter, nil
}

// sendIQ sends query and blocks until the response arrives, the session is
// disconnected, or the timeout elapses.
func (cli *Client) sendIQ(ctx context.Context, query infoQuery) (*binary.Node, error) {
	if query.Timeout == 0 {
		query.Timeout = defaultRequestTimeout
	}
	resChan, err := cli.sendIQAsync(query)
	if err != nil {
		return nil, err
	}
	select {
	case res, ok := <-resChan:
		if !ok {
			return nil, &DisconnectedError{Action: "info query"}
		}
		if res.Attr("type") == "error" {
			return res, parseRequestError(*res)
		}
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(query.Timeout):
		return nil, context.DeadlineExceeded
	}
}

func parseRequestError(res binary.Node) error {
	errNode := res.GetChildByTag("error")
	code, _ := strconv.Atoi(errNode.Attr("code"))
	return &RequestError{Code: code, Text: errNode.Attr("text")}
}

// Package wacore implements a client for the legacy WhatsApp binary-XML
// wire protocol: the dictionary-compressed node codec, the RC4-HMAC frame
// keystream, the handshake/login state machine, inbound node dispatch, and
// a Signal-based end-to-end encryption bridge.
package wacore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/util/random"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	waLog "go.mau.fi/wacore/log"
	"go.mau.fi/wacore/message"
	"go.mau.fi/wacore/socket"
	"go.mau.fi/wacore/store"
	"go.mau.fi/wacore/types"
)

// EventHandler receives every event a Client emits. Each event is a
// distinct typed struct from the events package, never a positional tuple.
type EventHandler func(evt interface{})

var nextHandlerID uint32

type wrappedEventHandler struct {
	fn EventHandler
	id uint32
}

// Client is a single logical session: one Transport, one RequestTracker,
// one SendQueue, one MediaRequestQueue, and (once logged in) one
// EncryptionBridge. Everything but the background socket reader runs on a
// single dispatch goroutine.
type Client struct {
	cfg              Config
	log              waLog.Logger
	recvLog, sendLog waLog.Logger

	keyStore    store.KeyStore
	mediaStore  MediaStore
	thumbnailer Thumbnailer

	transport *socket.Transport

	// sendOverride, when non-nil, replaces transport.SendNode in sendNode.
	// Only ever set by package tests, which have no real TLS connection to
	// write to.
	sendOverride func(binary.Node) error

	reqs       *RequestTracker
	sendQueue  *SendQueue
	mediaQueue *MediaRequestQueue
	processor  *message.Processor
	bridge     *EncryptionBridge

	stateLock sync.Mutex
	state     sessionState
	nonce     []byte

	readLoopStarted atomic.Bool
	reconnectErrors int

	dispatch []dispatchRule

	eventHandlersLock sync.RWMutex
	eventHandlers     []wrappedEventHandler

	msgIDCounter atomic.Uint64

	nowFunc func() time.Time
}

// NewClient builds a Client from its configuration and pluggable
// collaborators. keyStore must be non-nil; mediaStore and thumbnailer may
// be nil if the caller never sends/receives media. log may be nil, in
// which case it defaults to a no-op logger.
func NewClient(cfg Config, keyStore store.KeyStore, mediaStore MediaStore, thumbnailer Thumbnailer, log waLog.Logger) *Client {
	if log == nil {
		log = waLog.Noop
	}
	cfg = cfg.withDefaults()
	randomBytes := random.Bytes(2)
	uniqueID := fmt.Sprintf("%d.%d-", randomBytes[0], randomBytes[1])

	cli := &Client{
		cfg:         cfg,
		log:         log,
		recvLog:     log.Sub("Recv"),
		sendLog:     log.Sub("Send"),
		keyStore:    keyStore,
		mediaStore:  mediaStore,
		thumbnailer: thumbnailer,
		transport:   socket.NewTransport(log.Sub("Socket"), cfg.Host, nil),
		reqs:        NewRequestTracker(uniqueID),
		sendQueue:   NewSendQueue(),
		mediaQueue:  NewMediaRequestQueue(mediaStore),
		processor:   message.NewProcessor(),
		state:       stateDisconnected,
		nowFunc:     time.Now,
	}
	cli.bridge = NewEncryptionBridge(keyStore, log.Sub("Encrypt"))
	cli.dispatch = cli.buildDispatchTable()
	return cli
}

// nextMessageId generates a message id of the form
// "prefix-unixts-counter", unique within this process's lifetime.
func (cli *Client) nextMessageId(prefix string) string {
	n := cli.msgIDCounter.Add(1)
	return prefix + "-" + strconv.FormatInt(cli.nowFunc().Unix(), 10) + "-" + strconv.FormatUint(n, 10)
}

// AddEventHandler registers handler to receive every event this Client
// emits. The returned id can be passed to RemoveEventHandler.
func (cli *Client) AddEventHandler(handler EventHandler) uint32 {
	id := atomic.AddUint32(&nextHandlerID, 1)
	cli.eventHandlersLock.Lock()
	cli.eventHandlers = append(cli.eventHandlers, wrappedEventHandler{handler, id})
	cli.eventHandlersLock.Unlock()
	return id
}

// RemoveEventHandler removes a previously registered handler, reporting
// whether one was found.
func (cli *Client) RemoveEventHandler(id uint32) bool {
	cli.eventHandlersLock.Lock()
	defer cli.eventHandlersLock.Unlock()
	for i, h := range cli.eventHandlers {
		if h.id == id {
			cli.eventHandlers = append(cli.eventHandlers[:i], cli.eventHandlers[i+1:]...)
			return true
		}
	}
	return false
}

func (cli *Client) dispatchEvent(evt interface{}) {
	cli.eventHandlersLock.RLock()
	defer cli.eventHandlersLock.RUnlock()
	for _, h := range cli.eventHandlers {
		h.fn(evt)
	}
}

// IsLoggedIn reports whether the session has completed the handshake.
func (cli *Client) IsLoggedIn() bool {
	cli.stateLock.Lock()
	defer cli.stateLock.Unlock()
	return cli.state == stateLoggedIn
}

// Connect dials the transport and begins the handshake. It returns once
// the TCP+TLS connection and the background read pump are up; login
// completion is reported asynchronously via an events.Login emission.
func (cli *Client) Connect(ctx context.Context) error {
	cli.stateLock.Lock()
	if cli.state != stateDisconnected && cli.state != stateFailed {
		cli.stateLock.Unlock()
		return ErrAlreadyLoggedIn
	}
	cli.state = stateHandshakeInit
	cli.stateLock.Unlock()

	cli.loadCachedNonce()
	cli.transport.OnDisconnect = cli.handleDisconnect
	if err := cli.transport.Connect(ctx); err != nil {
		cli.setState(stateDisconnected)
		return err
	}
	// One read loop per Client, started on the first Connect and kept
	// across reconnects: the transport's Frames channel outlives any
	// individual connection, so a second loop would split frames between
	// two goroutines and break wire ordering.
	if cli.readLoopStarted.CompareAndSwap(false, true) {
		go cli.readLoop()
	}
	return cli.startHandshake(ctx)
}

// Disconnect closes the transport. Any RequestTracker waiter still
// pending is resolved with a DisconnectedError.
func (cli *Client) Disconnect() {
	cli.transport.Close(false)
}

func (cli *Client) handleDisconnect(remote bool) {
	cli.reqs.clearAll()
	wasLoggedIn := cli.IsLoggedIn()
	cli.setState(stateDisconnected)
	if wasLoggedIn {
		cli.dispatchEvent(events.Disconnected{})
	}
	if remote && cli.cfg.Reconnect {
		go cli.autoReconnect()
	}
}

// autoReconnect redials after a transport-initiated disconnect, backing
// off linearly on consecutive failures.
func (cli *Client) autoReconnect() {
	for {
		cli.reconnectErrors++
		delay := time.Duration(cli.reconnectErrors) * 2 * time.Second
		cli.log.Debugf("Automatically reconnecting after %v", delay)
		time.Sleep(delay)
		err := cli.Connect(context.Background())
		if err == ErrAlreadyLoggedIn {
			cli.log.Debugf("Connect said we're already connected after reconnect sleep")
			return
		} else if err != nil {
			cli.log.Errorf("Error reconnecting after disconnect: %v", err)
		} else {
			return
		}
	}
}

// readLoop is the single dispatch goroutine: it owns all session state
// and processes exactly one inbound frame to completion (including any
// synchronous emissions) before reading the next.
func (cli *Client) readLoop() {
	for node := range cli.transport.Frames {
		cli.recvLog.Debugf("%s", node.XMLString())
		cli.handleNode(context.Background(), node)
	}
}

func (cli *Client) sendNode(n binary.Node) error {
	cli.sendLog.Debugf("%s", n.XMLString())
	if cli.sendOverride != nil {
		return cli.sendOverride(n)
	}
	if !cli.transport.IsConnected() {
		return ErrNotConnected
	}
	return cli.transport.SendNode(n)
}

// sendMessageNode wraps content as the sole child of an outbound <message>
// addressed to jid, queuing it instead if the session hasn't reached
// LoggedIn yet.
func (cli *Client) sendMessageNode(jid types.JID, content binary.Node) error {
	_, err := cli.sendMessageNodeWithID(jid, content)
	return err
}

// sendMessageNodeWithID is sendMessageNode but also returns the generated
// message id, for ApiSurface calls whose caller wants it back to correlate
// against a later ClientReceived event.
func (cli *Client) sendMessageNodeWithID(jid types.JID, content binary.Node) (string, error) {
	id := cli.nextMessageId("message")
	node := binary.Node{
		Tag:      "message",
		Attrs:    binary.AttrsFrom("to", jid.String(), "id", id, "type", "text", "t", strconv.FormatInt(cli.nowFunc().Unix(), 10)),
		Children: []binary.Node{content},
	}
	if !cli.IsLoggedIn() {
		cli.sendQueue.Enqueue(node)
		return id, nil
	}
	return id, cli.sendNode(node)
}

func (cli *Client) setState(s sessionState) {
	cli.stateLock.Lock()
	cli.state = s
	cli.stateLock.Unlock()
}

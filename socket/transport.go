// Package socket implements Transport, the TLS connection that carries the
// binary frame stream: a background read pump feeds raw bytes into a
// length-prefixed frame assembler, and completed frames are handed to the
// caller over a channel.
package socket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/crypto/keystream"
	waLog "go.mau.fi/wacore/log"
)

// messageStartMagic is the fixed prologue byte sent once, before the stream
// header node, identifying this as a binary-framed client.
const messageStartMagic = 0x01

var (
	ErrSocketClosed      = errors.New("socket: transport is closed")
	ErrSocketAlreadyOpen = errors.New("socket: transport is already open")
)

// Transport owns one TLS connection: dialing, the stream prologue, the
// background read pump, and frame encode/decode via an installable pair of
// KeyStreams. All state below the connection itself is intentionally
// unsynchronized beyond what's needed for Close — the session that owns a
// Transport is expected to drive it from a single goroutine.
type Transport struct {
	log waLog.Logger

	host      string
	tlsConfig *tls.Config
	dialer    proxy.Dialer

	conn   net.Conn
	lock   sync.Mutex
	closed bool

	writerKS *keystream.KeyStream
	readerKS *keystream.KeyStream

	// Frames delivers decoded inbound nodes in wire order. The channel
	// buffers 16 nodes, so the read pump can run that far ahead of a slow
	// dispatcher before it blocks.
	Frames chan *binary.Node
	// OnDisconnect is invoked from the read pump's goroutine when the
	// connection ends, remote indicating whether the peer closed it.
	OnDisconnect func(remote bool)

	buf []byte
}

// NewTransport builds a Transport for host ("host:port"). dialer may be nil
// to use a direct net.Dialer, or a golang.org/x/net/proxy.Dialer (e.g. a
// SOCKS5 dialer) to route the connection through a proxy.
func NewTransport(log waLog.Logger, host string, dialer proxy.Dialer) *Transport {
	return &Transport{
		log:       log,
		host:      host,
		tlsConfig: &tls.Config{ServerName: hostnameOf(host)},
		dialer:    dialer,
		Frames:    make(chan *binary.Node, 16),
	}
}

func hostnameOf(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

// IsConnected reports whether the transport has an open connection.
func (t *Transport) IsConnected() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.conn != nil
}

// InstallWriterKeyStream installs the outbound KeyStream, enabling encrypted
// frame writes. Pass nil to revert to plaintext framing.
func (t *Transport) InstallWriterKeyStream(ks *keystream.KeyStream) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.writerKS = ks
}

// InstallReaderKeyStream installs the inbound KeyStream used to decode
// subsequent frames.
func (t *Transport) InstallReaderKeyStream(ks *keystream.KeyStream) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.readerKS = ks
}

// Connect dials the TLS endpoint and writes the fixed prologue byte. The
// read pump starts once this returns successfully.
func (t *Transport) Connect(ctx context.Context) error {
	t.lock.Lock()
	if t.conn != nil {
		t.lock.Unlock()
		return ErrSocketAlreadyOpen
	}
	t.lock.Unlock()

	rawConn, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("socket: dial %s: %w", t.host, err)
	}
	tlsConn := tls.Client(rawConn, t.tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return fmt.Errorf("socket: TLS handshake with %s: %w", t.host, err)
	}

	if _, err := tlsConn.Write([]byte{messageStartMagic}); err != nil {
		tlsConn.Close()
		return fmt.Errorf("socket: writing stream prologue: %w", err)
	}

	t.lock.Lock()
	t.conn = tlsConn
	t.closed = false
	t.lock.Unlock()

	go t.readPump(tlsConn)
	return nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	if t.dialer != nil {
		if ctxDialer, ok := t.dialer.(proxy.ContextDialer); ok {
			return ctxDialer.DialContext(ctx, "tcp", t.host)
		}
		return t.dialer.Dial("tcp", t.host)
	}
	d := net.Dialer{Timeout: 30 * time.Second}
	return d.DialContext(ctx, "tcp", t.host)
}

// SendNode encodes n as a frame (enciphered if a writer KeyStream is
// installed) and writes it to the connection.
func (t *Transport) SendNode(n binary.Node) error {
	t.lock.Lock()
	conn := t.conn
	ks := t.writerKS
	t.lock.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}
	frame, err := binary.EncodeFrame(n, ks)
	if err != nil {
		return err
	}
	_, err = conn.Write(frame)
	return err
}

// Close tears down the connection. remote is false for a caller-initiated
// close and for a close after a fatal frame decode error; the read pump
// passes true when it observes the peer closing first.
func (t *Transport) Close(remote bool) {
	t.lock.Lock()
	if t.conn == nil {
		t.lock.Unlock()
		return
	}
	conn := t.conn
	t.conn = nil
	t.closed = true
	t.lock.Unlock()

	conn.Close()
	if t.OnDisconnect != nil {
		t.OnDisconnect(remote)
	}
}

func (t *Transport) readPump(conn net.Conn) {
	chunk := make([]byte, 32*1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			t.buf = append(t.buf, chunk[:n]...)
			t.drainFrames()
		}
		if err != nil {
			t.log.Debugf("Transport read pump exiting: %v", err)
			go t.Close(true)
			return
		}
	}
}

// drainFrames decodes as many complete frames as are currently buffered,
// emitting each on Frames, and leaves any trailing partial frame in t.buf for
// the next read.
func (t *Transport) drainFrames() {
	for {
		t.lock.Lock()
		ks := t.readerKS
		t.lock.Unlock()

		node, consumed, err := binary.DecodeFrame(t.buf, ks)
		if err == binary.ErrNotEnoughData {
			return
		}
		if err != nil {
			t.log.Errorf("Transport: fatal frame decode error: %v", err)
			go t.Close(false)
			return
		}
		t.buf = t.buf[consumed:]
		t.Frames <- node
	}
}

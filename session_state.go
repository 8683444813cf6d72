package wacore

import (
	"bytes"
	"context"
	"encoding/base64"
	"strconv"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/crypto/kdf"
	"go.mau.fi/wacore/crypto/keystream"
	"go.mau.fi/wacore/events"
)

// sessionState tracks the handshake/login state machine.
type sessionState int

const (
	stateDisconnected sessionState = iota
	stateHandshakeInit
	stateAwaitingChallengeOrSuccess
	stateAwaitingSuccess
	stateLoggedIn
	stateFailed
)

const authMechanism = "WAUTH-2"

// startHandshake sends the stream header, a features node, and an auth
// node. If a persisted challenge nonce is available, the auth node itself
// carries the full authenticated payload, enabling a one-round-trip
// login; otherwise the auth node is empty and the server is expected to
// reply with a <challenge> carrying a fresh nonce.
func (cli *Client) startHandshake(ctx context.Context) error {
	if err := cli.sendNode(binary.Node{Tag: "stream:stream", Attrs: binary.AttrsFrom("to", cli.cfg.Server)}); err != nil {
		return err
	}
	if err := cli.sendNode(binary.Node{Tag: "features"}); err != nil {
		return err
	}

	authAttrs := binary.AttrsFrom("mechanism", authMechanism)
	var payload []byte
	if len(cli.nonce) > 0 {
		keys := kdf.DeriveKeys(cli.secret(), cli.nonce)
		if err := cli.installKeyStreams(keys); err != nil {
			return err
		}
		payload = cli.buildAuthPayload(cli.nonce)
	}
	cli.setState(stateAwaitingChallengeOrSuccess)
	return cli.sendNode(binary.Node{Tag: "auth", Attrs: authAttrs, Payload: payload})
}

// secret is the raw keying secret the registration service issued: the
// configured password is its base64 rendering, so it is decoded before any
// key derivation. A password that doesn't parse as base64 is used as-is.
func (cli *Client) secret() []byte {
	secret, err := base64.StdEncoding.DecodeString(cli.cfg.Password)
	if err != nil {
		cli.log.Warnf("Configured password is not valid base64, deriving keys from the raw string")
		return []byte(cli.cfg.Password)
	}
	return secret
}

func (cli *Client) installKeyStreams(keys kdf.Keys) error {
	writer, err := keystream.New(keys.WriterCipher, keys.WriterMAC)
	if err != nil {
		return err
	}
	reader, err := keystream.New(keys.ReaderCipher, keys.ReaderMAC)
	if err != nil {
		return err
	}
	cli.transport.InstallWriterKeyStream(writer)
	cli.transport.InstallReaderKeyStream(reader)
	return nil
}

// buildAuthPayload builds the identity blob sent in <auth> (one-round-trip
// login) or <response> (after an explicit challenge): four zero bytes, the
// msisdn, the nonce, the current unix timestamp, the configured user
// agent, and a trailing " MccMnc/<mcc>" tag.
func (cli *Client) buildAuthPayload(nonce []byte) []byte {
	mcc := cli.cfg.MCC
	if mcc == "" {
		mcc = "001001"
	}
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteString(cli.cfg.MSISDN)
	buf.Write(nonce)
	buf.WriteString(strconv.FormatInt(cli.nowFunc().Unix(), 10))
	buf.WriteString(cli.cfg.UserAgent)
	buf.WriteString(" MccMnc/")
	buf.WriteString(mcc)
	return buf.Bytes()
}

// handleChallenge derives keys from the freshly received nonce, installs
// both KeyStreams, and replies with an encrypted <response> identity blob.
func (cli *Client) handleChallenge(ctx context.Context, node *binary.Node) {
	nonce := node.Payload
	cli.nonce = nonce
	keys := kdf.DeriveKeys(cli.secret(), nonce)
	if err := cli.installKeyStreams(keys); err != nil {
		cli.log.Errorf("Failed to install keystreams after challenge: %v", err)
		cli.setState(stateFailed)
		return
	}
	cli.setState(stateAwaitingSuccess)
	payload := cli.buildAuthPayload(nonce)
	if err := cli.sendNode(binary.Node{Tag: "response", Payload: payload}); err != nil {
		cli.log.Errorf("Failed to send challenge response: %v", err)
	}
}

// handleSuccess persists the negotiated nonce for next startup's
// one-round-trip login, transitions to LoggedIn, flushes the SendQueue,
// and emits events.Login. The nonce is written before the state machine
// advances, so a crash between the two can't leave a logged-in session
// whose next startup replays a stale challenge.
func (cli *Client) handleSuccess(ctx context.Context, node *binary.Node) {
	cli.saveCachedNonce()
	cli.setState(stateLoggedIn)
	cli.reconnectErrors = 0
	for _, queued := range cli.sendQueue.Drain() {
		if err := cli.sendNode(queued); err != nil {
			cli.log.Errorf("Failed to flush queued send: %v", err)
		}
	}
	cli.dispatchEvent(events.Login{JID: cli.cfg.selfJID()})

	go func() {
		if err := cli.PublishPreKeys(ctx); err != nil {
			cli.log.Errorf("Failed to publish prekeys after login: %v", err)
		}
	}()
}

// handleFailure surfaces a terminal AuthError and emits events.LoggedOut.
func (cli *Client) handleFailure(ctx context.Context, node *binary.Node) {
	cli.setState(stateFailed)
	err := &AuthError{Reason: node.Attr("reason")}
	cli.log.Warnf("%v", err)
	cli.dispatchEvent(events.LoggedOut{Reason: err.Reason})
}

package wacore

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"go.mau.fi/libsignal/ecc"
	"go.mau.fi/libsignal/keys/identity"
	"go.mau.fi/libsignal/keys/prekey"
	"go.mau.fi/libsignal/util/optional"

	waBinary "go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/keys"
	"go.mau.fi/wacore/types"
)

// PublishPreKeys runs the first-login registration flow: generate an
// identity (via the bridge, lazily), PendingRecipientCount one-time
// pre-keys, and a signed pre-key, persist them all, then announce them to
// the server.
func (cli *Client) PublishPreKeys(ctx context.Context) error {
	existing, err := cli.keyStore.GetPreKey(ctx, 1)
	if err != nil {
		return fmt.Errorf("wacore: checking existing prekeys: %w", err)
	}
	if existing != nil {
		// Already registered in a prior session; handleEncryptReplenish
		// tops up one-time prekeys as the server reports them running low.
		return nil
	}
	preKeys, err := cli.generateAndStorePreKeys(ctx, 1, PendingRecipientCount)
	if err != nil {
		return err
	}
	return cli.publishPreKeyBatch(ctx, preKeys)
}

// generateAndStorePreKeys creates count fresh one-time pre-keys starting
// at startID, persists each to the KeyStore, and returns them for
// publication.
func (cli *Client) generateAndStorePreKeys(ctx context.Context, startID uint32, count int) ([]*keys.PreKey, error) {
	out := make([]*keys.PreKey, 0, count)
	for i := 0; i < count; i++ {
		pk, err := keys.NewPreKey(startID + uint32(i))
		if err != nil {
			return nil, fmt.Errorf("wacore: generating prekey: %w", err)
		}
		if err := cli.keyStore.StorePreKey(ctx, pk.ID, pk); err != nil {
			return nil, fmt.Errorf("wacore: storing prekey %d: %w", pk.ID, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

func (cli *Client) publishPreKeyBatch(ctx context.Context, preKeys []*keys.PreKey) error {
	idPair, err := cli.bridge.IdentityPair(ctx)
	if err != nil {
		return err
	}
	regID, err := cli.bridge.RegistrationID(ctx)
	if err != nil {
		return err
	}

	var regIDBytes [4]byte
	binary.BigEndian.PutUint32(regIDBytes[:], regID)

	spk, err := cli.loadOrCreateSignedPreKey(ctx, idPair)
	if err != nil {
		return err
	}

	_, err = cli.sendIQ(ctx, infoQuery{
		Namespace: "encrypt",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []waBinary.Node{
			{Tag: "registration", Payload: regIDBytes[:]},
			{Tag: "type", Payload: []byte{ecc.DjbType}},
			{Tag: "identity", Payload: idPair.Pub[:]},
			{Tag: "list", Children: preKeysToNodes(preKeys)},
			signedPreKeyToNode(spk),
		},
	})
	if err != nil {
		return fmt.Errorf("wacore: publishing prekeys: %w", err)
	}
	return nil
}

func (cli *Client) loadOrCreateSignedPreKey(ctx context.Context, idPair *keys.IdentityKeyPair) (*keys.SignedPreKey, error) {
	existing, err := cli.keyStore.GetSignedPreKey(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("wacore: loading signed prekey: %w", err)
	}
	if existing != nil {
		return existing, nil
	}
	spk, err := keys.NewSignedPreKey(idPair, 1)
	if err != nil {
		return nil, fmt.Errorf("wacore: generating signed prekey: %w", err)
	}
	if err := cli.keyStore.StoreSignedPreKey(ctx, spk.ID, spk); err != nil {
		return nil, fmt.Errorf("wacore: storing signed prekey: %w", err)
	}
	return spk, nil
}

// handleEncryptReplenish generates and publishes additional one-time
// pre-keys when the server reports the remaining count is running low.
func (cli *Client) handleEncryptReplenish(ctx context.Context, n *waBinary.Node) {
	countNode, ok := n.GetOptionalChildByTag("count")
	if !ok {
		return
	}
	remaining, err := strconv.Atoi(string(countNode.Payload))
	if err != nil {
		cli.log.Warnf("Failed to parse prekey replenish count: %v", err)
		return
	}
	need := PendingRecipientCount - remaining
	if need <= 0 {
		return
	}

	nextID, err := cli.nextPreKeyID(ctx)
	if err != nil {
		cli.log.Errorf("Failed to determine next prekey id: %v", err)
		return
	}
	fresh, err := cli.generateAndStorePreKeys(ctx, nextID, need)
	if err != nil {
		cli.log.Errorf("Failed to generate replenishment prekeys: %v", err)
		return
	}
	// Published off the dispatch goroutine: publishPreKeyBatch blocks on a
	// tracked iq whose response arrives through this same dispatch loop.
	go func() {
		if err := cli.publishPreKeyBatch(ctx, fresh); err != nil {
			cli.log.Errorf("Failed to publish replenishment prekeys: %v", err)
		}
	}()
}

// nextPreKeyID scans forward from id 1 for the first id with no stored
// pre-key, so replenishment never reuses an id still live on the server.
func (cli *Client) nextPreKeyID(ctx context.Context) (uint32, error) {
	var id uint32 = 1
	for {
		existing, err := cli.keyStore.GetPreKey(ctx, id)
		if err != nil {
			return 0, err
		}
		if existing == nil {
			return id, nil
		}
		id++
	}
}

// RequestEncryptedSend is the entry point ApiSurface's SendEncryptedText
// calls: it tries an immediate encrypt, and on ErrNoSession enqueues the
// plaintext and fires a pre-key fetch instead.
func (cli *Client) RequestEncryptedSend(ctx context.Context, to types.JID, plaintext []byte) error {
	if cli.bridge.ShouldSkipEncryption(to) {
		return cli.sendMessageNode(to, waBinary.Node{Tag: "body", Payload: plaintext})
	}

	ciphertext, encType, err := cli.bridge.EncryptForRecipient(ctx, to, plaintext)
	if err == nil {
		return cli.sendEncryptedNode(to, ciphertext, encType)
	}
	if err != ErrNoSession {
		return err
	}

	cli.bridge.EnqueuePending(to, plaintext)
	return cli.fetchPreKeys(ctx, []types.JID{to})
}

func (cli *Client) sendEncryptedNode(to types.JID, ciphertext []byte, encType string) error {
	return cli.sendMessageNode(to, waBinary.Node{
		Tag:     "enc",
		Attrs:   waBinary.AttrsFrom("v", "1", "type", encType),
		Payload: ciphertext,
	})
}

// fetchPreKeys sends an untracked `<iq xmlns="encrypt" type="get">`
// requesting pre-key bundles for jids, recording them under the generated
// id for the dispatch table's "iq-prekey" rule to resolve.
func (cli *Client) fetchPreKeys(ctx context.Context, jids []types.JID) error {
	id := cli.reqs.generateRequestID()
	cli.bridge.RecordFetch(id, jids)

	users := make([]waBinary.Node, len(jids))
	for i, jid := range jids {
		users[i] = waBinary.Node{Tag: "user", Attrs: waBinary.AttrsFrom("jid", jid.String(), "reason", "identity")}
	}
	attrs := waBinary.AttrsFrom("id", id, "xmlns", "encrypt", "type", string(iqGet), "to", types.ServerJID.String())
	return cli.sendNode(waBinary.Node{
		Tag:   "iq",
		Attrs: attrs,
		Children: []waBinary.Node{
			{Tag: "key", Children: users},
		},
	})
}

// handlePreKeyFetchResult resolves a pre-key fetch iq: for every JID whose
// bundle arrived, establish an outbound session and flush its pending
// plaintext; for every requested JID that didn't, mark it skip-encryption
// and flush its pending plaintext unencrypted.
func (cli *Client) handlePreKeyFetchResult(ctx context.Context, n *waBinary.Node) {
	jids, ok := cli.bridge.TakeFetch(n.Attr("id"))
	if !ok {
		return
	}

	seen := make(map[string]bool, len(jids))
	list, hasList := n.GetOptionalChildByTag("list")
	if hasList {
		for _, user := range list.GetChildrenByTag("user") {
			jid, bundle, err := nodeToPreKeyBundle(user)
			if err != nil {
				cli.log.Warnf("Failed to parse prekey bundle: %v", err)
				continue
			}
			seen[jid.String()] = true
			if err := cli.bridge.ProcessBundle(ctx, jid, bundle); err != nil {
				cli.log.Warnf("Failed to process prekey bundle for %s: %v", jid, err)
				continue
			}
			for _, plaintext := range cli.bridge.DrainPending(jid) {
				ciphertext, encType, err := cli.bridge.EncryptForRecipient(ctx, jid, plaintext)
				if err != nil {
					cli.log.Warnf("Failed to encrypt queued message for %s: %v", jid, err)
					continue
				}
				if err := cli.sendEncryptedNode(jid, ciphertext, encType); err != nil {
					cli.log.Warnf("Failed to send queued encrypted message to %s: %v", jid, err)
				}
			}
		}
	}

	for _, jid := range jids {
		if seen[jid.String()] {
			continue
		}
		for _, plaintext := range cli.bridge.MarkSkipEncryption(jid) {
			if err := cli.sendMessageNode(jid, waBinary.Node{Tag: "body", Payload: plaintext}); err != nil {
				cli.log.Warnf("Failed to send queued plaintext message to %s: %v", jid, err)
			}
		}
	}
}

// handleInboundEncrypted decrypts an inbound `<enc>` child and emits the
// plaintext as an ordinary text message event.
func (cli *Client) handleInboundEncrypted(ctx context.Context, from types.JID, enc *waBinary.Node, id string, ts int64) {
	plaintext, err := cli.bridge.DecryptInbound(ctx, from, enc.Payload, enc.Attr("type") == "pkmsg")
	if err != nil {
		cli.log.Warnf("Dropping undecryptable message: %v", &EncryptionError{JID: from.String(), Err: err})
		return
	}
	cli.dispatchEvent(events.Message{
		From:      from,
		ID:        id,
		Timestamp: time.Unix(ts, 0),
		Body:      string(plaintext),
	})
}

func preKeysToNodes(preKeys []*keys.PreKey) []waBinary.Node {
	nodes := make([]waBinary.Node, len(preKeys))
	for i, pk := range preKeys {
		nodes[i] = preKeyToNode(pk)
	}
	return nodes
}

func preKeyToNode(pk *keys.PreKey) waBinary.Node {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], pk.ID)
	return waBinary.Node{
		Tag: "key",
		Children: []waBinary.Node{
			{Tag: "id", Payload: idBytes[1:]},
			{Tag: "value", Payload: pk.Pub[:]},
		},
	}
}

func signedPreKeyToNode(spk *keys.SignedPreKey) waBinary.Node {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], spk.ID)
	return waBinary.Node{
		Tag: "skey",
		Children: []waBinary.Node{
			{Tag: "id", Payload: idBytes[1:]},
			{Tag: "value", Payload: spk.Pub[:]},
			{Tag: "signature", Payload: spk.Signature},
		},
	}
}

func nodeToPreKeyBundle(user waBinary.Node) (types.JID, *prekey.Bundle, error) {
	jid, err := types.ParseJID(user.Attr("jid"))
	if err != nil {
		return types.JID{}, nil, fmt.Errorf("wacore: invalid jid in prekey bundle: %w", err)
	}

	registration, ok := user.GetOptionalChildByTag("registration")
	if !ok || len(registration.Payload) != 4 {
		return jid, nil, fmt.Errorf("wacore: missing or invalid registration id for %s", jid)
	}
	registrationID := binary.BigEndian.Uint32(registration.Payload)

	idNode, ok := user.GetOptionalChildByTag("identity")
	if !ok || len(idNode.Payload) != 32 {
		return jid, nil, fmt.Errorf("wacore: missing or invalid identity key for %s", jid)
	}

	keyNode, ok := user.GetOptionalChildByTag("key")
	if !ok {
		return jid, nil, fmt.Errorf("wacore: missing prekey for %s", jid)
	}
	preKeyID, preKeyPub, err := parseKeyIDValue(keyNode)
	if err != nil {
		return jid, nil, fmt.Errorf("wacore: invalid prekey for %s: %w", jid, err)
	}

	skeyNode, ok := user.GetOptionalChildByTag("skey")
	if !ok {
		return jid, nil, fmt.Errorf("wacore: missing signed prekey for %s", jid)
	}
	signedPreKeyID, signedPreKeyPub, err := parseKeyIDValue(skeyNode)
	if err != nil {
		return jid, nil, fmt.Errorf("wacore: invalid signed prekey for %s: %w", jid, err)
	}
	sigNode, ok := skeyNode.GetOptionalChildByTag("signature")
	if !ok || len(sigNode.Payload) != 64 {
		return jid, nil, fmt.Errorf("wacore: invalid signed prekey signature for %s", jid)
	}
	var signature [64]byte
	copy(signature[:], sigNode.Payload)

	bundle := prekey.NewBundle(
		registrationID,
		uint32(jid.Device),
		optional.NewOptionalUint32(preKeyID),
		signedPreKeyID,
		ecc.NewDjbECPublicKey(preKeyPub),
		ecc.NewDjbECPublicKey(signedPreKeyPub),
		signature,
		identity.NewKey(ecc.NewDjbECPublicKey(idNode32(idNode.Payload))),
	)
	return jid, bundle, nil
}

func parseKeyIDValue(node waBinary.Node) (uint32, [32]byte, error) {
	var pub [32]byte
	idChild, ok := node.GetOptionalChildByTag("id")
	if !ok || len(idChild.Payload) != 3 {
		return 0, pub, fmt.Errorf("key node missing 3-byte id")
	}
	id := binary.BigEndian.Uint32(append([]byte{0}, idChild.Payload...))
	valueChild, ok := node.GetOptionalChildByTag("value")
	if !ok || len(valueChild.Payload) != 32 {
		return 0, pub, fmt.Errorf("key node missing 32-byte value")
	}
	copy(pub[:], valueChild.Payload)
	return id, pub, nil
}

func idNode32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

package wacore

import (
	"context"
	"strconv"
	"time"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/types"
)

// dispatchRule is one row of the inbound node dispatch table: matches
// decides ownership, handle performs the reply/emission. The first
// matching rule wins. Predicates are finer than tag alone, since several
// rows share the "iq" or "message" tag and differ only by child or
// attribute shape.
type dispatchRule struct {
	name    string
	matches func(n *binary.Node) bool
	handle  func(ctx context.Context, n *binary.Node)
}

// handleNode is the single entry point for every inbound frame once the
// transport has decoded it. A tracked iq/ack response is resolved first;
// only if nothing was tracked does the dispatch table get a turn. This is
// processed to completion — including every synchronous emission below —
// before the dispatch loop reads the next frame.
func (cli *Client) handleNode(ctx context.Context, n *binary.Node) {
	if n.Tag == "challenge" {
		cli.handleChallenge(ctx, n)
		return
	}
	if n.Tag == "success" {
		cli.handleSuccess(ctx, n)
		return
	}
	if n.Tag == "failure" {
		cli.handleFailure(ctx, n)
		return
	}
	if cli.reqs.receiveResponse(n) {
		return
	}
	for _, rule := range cli.dispatch {
		if rule.matches(n) {
			rule.handle(ctx, n)
			return
		}
	}
	cli.log.Debugf("Didn't handle %s node", n.Tag)
}

func (cli *Client) buildDispatchTable() []dispatchRule {
	return []dispatchRule{
		{"inbound-message", cli.isInboundMessage, cli.handleInboundMessage},
		{"notification-encrypt", isEncryptReplenishNotification, cli.handleEncryptReplenish},
		{"notification", tagIs("notification"), cli.handleNotification},
		{"client-receipt", isClientReceipt, cli.handleClientReceipt},
		{"presence", cli.isForeignPresence, cli.handlePresence},
		{"ib-ping", isIBPing, cli.handleIBPing},
		{"ib-dirty", isIBDirty, cli.handleIBDirty},
		{"iq-media", cli.isMediaUploadResponse, cli.continueUpload},
		{"iq-prekey", cli.isPreKeyFetchResponse, cli.handlePreKeyFetchResult},
		{"iq-picture", isIQWithChild("picture"), cli.handlePictureResult},
		{"iq-status", isIQWithChild("status"), cli.handleStatusResult},
		{"iq-group", isIQWithAnyChild("groups", "group", "participants", "leave"), cli.handleGroupQueryResult},
		{"chatstate", tagIs("chatstate"), cli.handleChatstate},
	}
}

func tagIs(tag string) func(*binary.Node) bool {
	return func(n *binary.Node) bool { return n.Tag == tag }
}

func isIQWithChild(childTag string) func(*binary.Node) bool {
	return func(n *binary.Node) bool {
		if n.Tag != "iq" {
			return false
		}
		_, ok := n.GetOptionalChildByTag(childTag)
		return ok
	}
}

func isIQWithAnyChild(tags ...string) func(*binary.Node) bool {
	return func(n *binary.Node) bool {
		if n.Tag != "iq" {
			return false
		}
		for _, t := range tags {
			if _, ok := n.GetOptionalChildByTag(t); ok {
				return true
			}
		}
		return false
	}
}

// isInboundMessage claims <message> nodes carrying content from someone
// other than this session's own JID; self-echoes need no receipt or
// emission.
func (cli *Client) isInboundMessage(n *binary.Node) bool {
	if n.Tag != "message" || cli.isFromSelf(n) {
		return false
	}
	_, hasBody := n.GetOptionalChildByTag("body")
	_, hasMedia := n.GetOptionalChildByTag("media")
	_, hasEnc := n.GetOptionalChildByTag("enc")
	return hasBody || hasMedia || hasEnc
}

func (cli *Client) isFromSelf(n *binary.Node) bool {
	return n.Attr("from") == cli.cfg.selfJID().String()
}

func isEncryptReplenishNotification(n *binary.Node) bool {
	if n.Tag != "notification" || n.Attr("type") != "encrypt" {
		return false
	}
	_, ok := n.GetOptionalChildByTag("count")
	return ok
}

func (cli *Client) isPreKeyFetchResponse(n *binary.Node) bool {
	if n.Tag != "iq" {
		return false
	}
	return cli.bridge.HasFetch(n.Attr("id"))
}

func isClientReceipt(n *binary.Node) bool {
	return n.Tag == "receipt"
}

func (cli *Client) isForeignPresence(n *binary.Node) bool {
	return n.Tag == "presence" && !cli.isFromSelf(n)
}

func isIBPing(n *binary.Node) bool {
	if n.Tag != "ib" {
		return false
	}
	_, ok := n.GetOptionalChildByTag("ping")
	return ok
}

func isIBDirty(n *binary.Node) bool {
	if n.Tag != "ib" {
		return false
	}
	_, ok := n.GetOptionalChildByTag("dirty")
	return ok
}

func (cli *Client) isMediaUploadResponse(n *binary.Node) bool {
	if n.Tag != "iq" {
		return false
	}
	if _, ok := n.GetOptionalChildByTag("duplicate"); ok {
		return cli.mediaQueuePending(n.Attr("id"))
	}
	if _, ok := n.GetOptionalChildByTag("media"); ok {
		return cli.mediaQueuePending(n.Attr("id"))
	}
	return false
}

func (cli *Client) mediaQueuePending(id string) bool {
	cli.mediaQueue.lock.Lock()
	defer cli.mediaQueue.lock.Unlock()
	_, ok := cli.mediaQueue.pending[id]
	return ok
}

// handleInboundMessage sends a read receipt, dispatches to
// MessageProcessor, emits the resulting typed event, and — for plain text
// messages — emits a synthetic "typing paused".
func (cli *Client) handleInboundMessage(ctx context.Context, n *binary.Node) {
	from, _ := types.ParseJID(n.Attr("from"))
	id := n.Attr("id")
	if err := cli.sendNode(binary.Node{
		Tag:   "receipt",
		Attrs: binary.AttrsFrom("to", n.Attr("from"), "id", id, "type", string(events.ReceiptRead)),
	}); err != nil {
		cli.log.Warnf("Failed to send read receipt for %s: %v", id, err)
	}

	if evt := cli.processor.Process(n); evt != nil {
		cli.dispatchEvent(evt)
	}

	if n.Attr("type") == "text" {
		cli.dispatchEvent(events.Typing{From: from, State: events.TypingPaused})
	}

	if enc, ok := n.GetOptionalChildByTag("enc"); ok {
		ts := cli.nowFunc().Unix()
		if raw := n.Attr("t"); raw != "" {
			if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
				ts = sec
			}
		}
		cli.handleInboundEncrypted(ctx, from, &enc, id, ts)
	}
}

// handleNotification acks the notification and emits a typed group event
// when the notification describes a group metadata change.
func (cli *Client) handleNotification(ctx context.Context, n *binary.Node) {
	if err := cli.sendNode(binary.Node{
		Tag:   "ack",
		Attrs: binary.AttrsFrom("to", n.Attr("from"), "id", n.Attr("id"), "class", "notification", "type", n.Attr("type")),
	}); err != nil {
		cli.log.Warnf("Failed to ack notification %s: %v", n.Attr("id"), err)
	}

	kind, ok := groupEventKindFor(n.Attr("type"))
	if !ok {
		return
	}
	group, _ := types.ParseJID(n.Attr("from"))
	participant, _ := types.ParseJID(n.Attr("participant"))
	var participants []types.JID
	for _, p := range n.GetChildrenByTag("participant") {
		if jid, err := types.ParseJID(p.Attr("jid")); err == nil {
			participants = append(participants, jid)
		}
	}
	cli.dispatchEvent(events.GroupInfo{
		Group:        group,
		Kind:         kind,
		Participant:  participant,
		Subject:      n.Attr("subject"),
		Participants: participants,
		Timestamp:    cli.nowFunc(),
	})
}

func groupEventKindFor(notificationType string) (events.GroupEventKind, bool) {
	switch notificationType {
	case "subject":
		return events.GroupSubjectChanged, true
	case "add":
		return events.GroupParticipantsAdded, true
	case "remove":
		return events.GroupParticipantsLeft, true
	case "promote":
		return events.GroupParticipantPromote, true
	case "demote":
		return events.GroupParticipantDemote, true
	default:
		return "", false
	}
}

// handleClientReceipt acks a client (delivery/read) receipt and emits
// ClientReceived for the receipt's own id plus every id in its <list> child.
func (cli *Client) handleClientReceipt(ctx context.Context, n *binary.Node) {
	if err := cli.sendNode(binary.Node{
		Tag:   "ack",
		Attrs: binary.AttrsFrom("to", n.Attr("from"), "id", n.Attr("id"), "class", "receipt"),
	}); err != nil {
		cli.log.Warnf("Failed to ack receipt %s: %v", n.Attr("id"), err)
	}

	from, _ := types.ParseJID(n.Attr("from"))
	ids := []string{n.Attr("id")}
	if list, ok := n.GetOptionalChildByTag("list"); ok {
		for _, item := range list.GetChildrenByTag("item") {
			ids = append(ids, item.Attr("id"))
		}
	}
	receiptType := events.ReceiptDelivered
	if n.Attr("type") == "read" {
		receiptType = events.ReceiptRead
	}
	cli.dispatchEvent(events.ClientReceived{From: from, Type: receiptType, IDs: ids})
}

// handlePresence emits Presence for a contact's broadcast, parsing an
// optional "last" seconds-ago attribute into a last-seen timestamp.
func (cli *Client) handlePresence(ctx context.Context, n *binary.Node) {
	from, _ := types.ParseJID(n.Attr("from"))
	evt := events.Presence{From: from, Available: n.Attr("type") != "unavailable"}
	if raw := n.Attr("last"); raw != "" {
		if secondsAgo, err := strconv.ParseInt(raw, 10, 64); err == nil {
			evt.LastSeen = cli.nowFunc().Add(-time.Duration(secondsAgo) * time.Second)
			evt.HasLastSeen = true
		}
	}
	cli.dispatchEvent(evt)
}

// handleIBPing replies with a pong iq result.
func (cli *Client) handleIBPing(ctx context.Context, n *binary.Node) {
	ping := n.GetChildByTag("ping")
	if err := cli.sendNode(binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("type", "result", "id", n.Attr("id"), "to", n.Attr("from")),
		Children: []binary.Node{
			{Tag: "ping", Attrs: ping.Attrs},
		},
	}); err != nil {
		cli.log.Warnf("Failed to reply to ping: %v", err)
	}
}

// handleIBDirty replies with a <clean> iq acknowledging a dirty-presence
// notification.
func (cli *Client) handleIBDirty(ctx context.Context, n *binary.Node) {
	dirty := n.GetChildByTag("dirty")
	if err := cli.sendNode(binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("type", "set", "id", cli.reqs.generateRequestID(), "to", n.Attr("from")),
		Children: []binary.Node{
			{Tag: "clean", Attrs: binary.AttrsFrom("type", dirty.Attr("type"), "timestamp", dirty.Attr("timestamp"))},
		},
	}); err != nil {
		cli.log.Warnf("Failed to send dirty-presence clean: %v", err)
	}
}

// handlePictureResult emits ProfilePictureReceived for an unsolicited (or
// untracked) profile-picture push.
func (cli *Client) handlePictureResult(ctx context.Context, n *binary.Node) {
	pic := n.GetChildByTag("picture")
	jid, _ := types.ParseJID(n.Attr("from"))
	cli.dispatchEvent(events.ProfilePictureReceived{
		JID:     jid,
		URL:     pic.Attr("url"),
		Preview: pic.Attr("type") == "preview",
	})
}

// handleStatusResult emits StatusReceived for an unsolicited status push.
func (cli *Client) handleStatusResult(ctx context.Context, n *binary.Node) {
	status := n.GetChildByTag("status")
	jid, _ := types.ParseJID(n.Attr("from"))
	evt := events.StatusReceived{JID: jid, Status: string(status.Payload)}
	if raw := status.Attr("t"); raw != "" {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			evt.SetAt = time.Unix(sec, 0)
		}
	}
	cli.dispatchEvent(evt)
}

// handleGroupQueryResult emits GroupInfo for an unsolicited group-metadata
// push that wasn't the direct reply to a tracked request.
func (cli *Client) handleGroupQueryResult(ctx context.Context, n *binary.Node) {
	group := n.GetChildByTag("group")
	if group.Tag == "" {
		return
	}
	jid, _ := types.ParseJID(group.Attr("id"))
	var participants []types.JID
	for _, p := range group.GetChildrenByTag("participant") {
		if pjid, err := types.ParseJID(p.Attr("jid")); err == nil {
			participants = append(participants, pjid)
		}
	}
	cli.dispatchEvent(events.GroupInfo{
		Group:        jid,
		Subject:      group.Attr("subject"),
		Participants: participants,
		Timestamp:    cli.nowFunc(),
	})
}

// handleChatstate emits Typing for an explicit <chatstate> node.
func (cli *Client) handleChatstate(ctx context.Context, n *binary.Node) {
	from, _ := types.ParseJID(n.Attr("from"))
	state := events.TypingPaused
	if _, ok := n.GetOptionalChildByTag("composing"); ok {
		state = events.TypingComposing
	}
	evt := events.Typing{From: from, State: state}
	if n.Attr("to") != "" {
		if group, err := types.ParseJID(n.Attr("to")); err == nil && group.IsGroup() {
			evt.Group = group
		}
	}
	cli.dispatchEvent(evt)
}

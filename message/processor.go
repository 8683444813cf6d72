// Package message implements MessageProcessor, the ordered matcher list that
// turns an inbound <message> node into a typed event.
package message

import (
	"strconv"
	"time"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/types"
)

// Matcher is one entry in the ordered matcher list: Matches decides whether
// this matcher owns the node, Process builds the emission.
type Matcher struct {
	Name    string
	Matches func(n *binary.Node) bool
	Process func(n *binary.Node) any
}

// Processor holds the ordered, first-match-wins matcher list. The zero value
// is not usable; construct with NewProcessor.
type Processor struct {
	matchers []Matcher
}

// NewProcessor builds a Processor with the built-in matchers in their
// canonical order: text, location, image, video, audio, vcard.
func NewProcessor() *Processor {
	return &Processor{matchers: []Matcher{
		{Name: "text", Matches: isText, Process: processText},
		{Name: "location", Matches: isLocation, Process: processLocation},
		{Name: "image", Matches: isMediaKind(events.MediaImage), Process: processMedia(events.MediaImage)},
		{Name: "video", Matches: isMediaKind(events.MediaVideo), Process: processMedia(events.MediaVideo)},
		{Name: "audio", Matches: isMediaKind(events.MediaAudio), Process: processMedia(events.MediaAudio)},
		{Name: "vcard", Matches: isVCard, Process: processVCard},
	}}
}

// Process finds the first matcher that claims n and returns its emission, or
// nil if no matcher claims it — unmatched nodes are typically already fully
// handled at the state-machine level.
func (p *Processor) Process(n *binary.Node) any {
	for _, m := range p.matchers {
		if m.Matches(n) {
			return m.Process(n)
		}
	}
	return nil
}

func commonFields(n *binary.Node) (from types.JID, id string, ts time.Time, notify string) {
	from, _ = types.ParseJID(n.Attr("from"))
	id = n.Attr("id")
	if raw := n.Attr("t"); raw != "" {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			ts = time.Unix(sec, 0)
		}
	}
	notify = n.Attr("notify")
	return
}

func isText(n *binary.Node) bool {
	if n.Attr("type") != "text" && n.Attr("type") != "" {
		return false
	}
	_, ok := n.GetOptionalChildByTag("body")
	return ok
}

func processText(n *binary.Node) any {
	from, id, ts, notify := commonFields(n)
	body, _ := n.GetOptionalChildByTag("body")
	return events.Message{
		From:      from,
		ID:        id,
		Timestamp: ts,
		Notify:    notify,
		Body:      string(body.Payload),
	}
}

func isLocation(n *binary.Node) bool {
	_, ok := n.GetOptionalChildByTag("media")
	if !ok {
		return false
	}
	media := n.GetChildByTag("media")
	return media.Attr("type") == "location"
}

func processLocation(n *binary.Node) any {
	from, id, ts, notify := commonFields(n)
	media := n.GetChildByTag("media")
	lat, _ := strconv.ParseFloat(media.Attr("latitude"), 64)
	lon, _ := strconv.ParseFloat(media.Attr("longitude"), 64)
	return events.Location{
		From:      from,
		ID:        id,
		Timestamp: ts,
		Notify:    notify,
		Latitude:  lat,
		Longitude: lon,
		Name:      media.Attr("name"),
		URL:       media.Attr("url"),
		Thumbnail: media.Payload,
	}
}

// isMediaKind matches image/video/audio messages by the "media" child's
// "type" attribute; the outer node's type attribute is not authoritative
// for media kinds.
func isMediaKind(kind events.MediaKind) func(n *binary.Node) bool {
	return func(n *binary.Node) bool {
		media, ok := n.GetOptionalChildByTag("media")
		if !ok {
			return false
		}
		return media.Attr("type") == string(kind)
	}
}

func processMedia(kind events.MediaKind) func(n *binary.Node) any {
	return func(n *binary.Node) any {
		from, id, ts, notify := commonFields(n)
		media := n.GetChildByTag("media")
		width, _ := strconv.Atoi(media.Attr("width"))
		height, _ := strconv.Atoi(media.Attr("height"))
		duration, _ := strconv.Atoi(media.Attr("seconds"))
		size, _ := strconv.ParseInt(media.Attr("size"), 10, 64)
		return events.Media{
			Kind:      kind,
			From:      from,
			ID:        id,
			Timestamp: ts,
			Notify:    notify,
			URL:       media.Attr("url"),
			Size:      size,
			File:      media.Attr("file"),
			Encoding:  media.Attr("encoding"),
			IP:        media.Attr("ip"),
			MimeType:  media.Attr("mimetype"),
			FileHash:  media.Attr("filehash"),
			Width:     width,
			Height:    height,
			Duration:  duration,
			Codecs:    media.Attr("acodec"),
			Thumbnail: media.Payload,
			Caption:   media.Attr("caption"),
		}
	}
}

func isVCard(n *binary.Node) bool {
	_, ok := n.GetOptionalChildByTag("media")
	if ok {
		return false
	}
	_, ok = n.GetOptionalChildByTag("vcard")
	return ok
}

func processVCard(n *binary.Node) any {
	from, id, ts, notify := commonFields(n)
	vcard := n.GetChildByTag("vcard")
	return events.VCard{
		From:      from,
		ID:        id,
		Timestamp: ts,
		Notify:    notify,
		Name:      vcard.Attr("name"),
		VCard:     vcard.Payload,
	}
}

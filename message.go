package wacore

import (
	"context"
	"strconv"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

// SendText sends a plain-text message to jid, queuing it if the session
// hasn't reached LoggedIn yet, and returns the generated message id.
func (cli *Client) SendText(ctx context.Context, jid types.JID, body string) (string, error) {
	return cli.sendMessageNodeWithID(jid, binary.Node{Tag: "body", Payload: []byte(body)})
}

// SendLocation sends a location share. thumbnail is an optional small
// embedded preview image, matching the inbound shape MessageProcessor's
// processLocation reads back.
func (cli *Client) SendLocation(ctx context.Context, jid types.JID, lat, lon float64, name, url string, thumbnail []byte) (string, error) {
	attrs := binary.AttrsFrom(
		"type", "location",
		"latitude", strconv.FormatFloat(lat, 'f', -1, 64),
		"longitude", strconv.FormatFloat(lon, 'f', -1, 64),
	)
	if name != "" {
		attrs.Set("name", name)
	}
	if url != "" {
		attrs.Set("url", url)
	}
	return cli.sendMessageNodeWithID(jid, binary.Node{Tag: "media", Attrs: attrs, Payload: thumbnail})
}

// SendVCard sends a contact card named name.
func (cli *Client) SendVCard(ctx context.Context, jid types.JID, name string, vcard []byte) (string, error) {
	return cli.sendMessageNodeWithID(jid, binary.Node{
		Tag:     "vcard",
		Attrs:   binary.AttrsFrom("name", name),
		Payload: vcard,
	})
}

// SendImage uploads localPath and sends it as an image message, generating
// an embedded thumbnail via cli.thumbnailer if one is configured.
func (cli *Client) SendImage(ctx context.Context, jid types.JID, localPath, caption string) error {
	return cli.sendMediaFile(ctx, jid, localPath, "image", caption, cli.imageThumbnail(localPath))
}

// SendVideo uploads localPath and sends it as a video message.
func (cli *Client) SendVideo(ctx context.Context, jid types.JID, localPath, caption string) error {
	return cli.sendMediaFile(ctx, jid, localPath, "video", caption, cli.videoThumbnail(localPath))
}

// SendAudio uploads localPath and sends it as an audio message. Audio
// messages carry no thumbnail.
func (cli *Client) SendAudio(ctx context.Context, jid types.JID, localPath string) error {
	return cli.sendMediaFile(ctx, jid, localPath, "audio", "", nil)
}

func (cli *Client) sendMediaFile(ctx context.Context, jid types.JID, localPath, mediaType, caption string, thumbnail []byte) error {
	return cli.RequestUpload(ctx, jid, localPath, mediaType, caption, thumbnail)
}

func (cli *Client) imageThumbnail(localPath string) []byte {
	if cli.thumbnailer == nil {
		return nil
	}
	thumb, err := cli.thumbnailer.ImageThumbnail(localPath)
	if err != nil {
		cli.log.Warnf("Failed to generate image thumbnail for %s: %v", localPath, err)
		return nil
	}
	return thumb
}

func (cli *Client) videoThumbnail(localPath string) []byte {
	if cli.thumbnailer == nil {
		return nil
	}
	thumb, err := cli.thumbnailer.VideoThumbnail(localPath)
	if err != nil {
		cli.log.Warnf("Failed to generate video thumbnail for %s: %v", localPath, err)
		return nil
	}
	return thumb
}

// SendEncryptedText is RequestEncryptedSend specialized to a UTF-8 body,
// the Signal-encrypted counterpart to SendText. A message sent through
// this path may be deferred behind a pre-key fetch, so no message id is
// returned; delivery is observable only via the resulting ClientReceived.
func (cli *Client) SendEncryptedText(ctx context.Context, jid types.JID, body string) error {
	return cli.RequestEncryptedSend(ctx, jid, []byte(body))
}

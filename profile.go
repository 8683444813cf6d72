package wacore

import (
	"context"
	"strconv"
	"time"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

// ProfilePicture is the resolved result of GetProfilePicture.
type ProfilePicture struct {
	URL     string
	Preview bool
}

// GetProfilePicture fetches jid's current profile picture URL. preview
// requests the small cached preview instead of the full-size image.
func (cli *Client) GetProfilePicture(ctx context.Context, jid types.JID, preview bool) (*ProfilePicture, error) {
	picType := "image"
	if preview {
		picType = "preview"
	}
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "w:profile:picture",
		Type:      iqGet,
		To:        jid,
		Content: []binary.Node{
			{Tag: "picture", Attrs: binary.AttrsFrom("type", picType)},
		},
	})
	if err != nil {
		return nil, err
	}
	pic := res.GetChildByTag("picture")
	return &ProfilePicture{URL: pic.Attr("url"), Preview: preview}, nil
}

// SetProfilePicture uploads a new full-size image and preview thumbnail
// for the caller's own profile.
func (cli *Client) SetProfilePicture(ctx context.Context, image, preview []byte) error {
	_, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "w:profile:picture",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []binary.Node{
			{
				Tag:   "picture",
				Attrs: binary.AttrsFrom("type", "set"),
				Children: []binary.Node{
					{Tag: "image", Payload: image},
					{Tag: "preview", Payload: preview},
				},
			},
		},
	})
	return err
}

// Status is the resolved result of GetStatus.
type Status struct {
	Text  string
	SetAt time.Time
}

// GetStatus fetches jid's status message.
func (cli *Client) GetStatus(ctx context.Context, jid types.JID) (*Status, error) {
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "status",
		Type:      iqGet,
		To:        jid,
	})
	if err != nil {
		return nil, err
	}
	status := res.GetChildByTag("status")
	out := &Status{Text: string(status.Payload)}
	if raw := status.Attr("t"); raw != "" {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out.SetAt = time.Unix(sec, 0)
		}
	}
	return out, nil
}

// SetStatus sets the caller's own status message.
func (cli *Client) SetStatus(ctx context.Context, text string) error {
	_, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "status",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []binary.Node{
			{Tag: "status", Payload: []byte(text)},
		},
	})
	return err
}

package wacore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/types"
)

// UploadResult is what a MediaStore.Upload call returns on success.
type UploadResult struct {
	URL  string
	Type string
	Size int64
	Name string
}

// MediaStore is the pluggable collaborator that actually moves media bytes
// over HTTPS; the session only ever negotiates upload slots and builds the
// <media> node.
type MediaStore interface {
	Upload(ctx context.Context, localPath, destURL, mediaType string) (UploadResult, error)
	Download(ctx context.Context, url string) (localPath string, err error)
}

// Thumbnailer generates the small embedded preview payload media nodes
// carry.
type Thumbnailer interface {
	ImageThumbnail(path string) ([]byte, error)
	VideoThumbnail(path string) ([]byte, error)
}

// pendingUpload is what RequestUpload records under the upload-slot
// request's id, to be completed once the server responds with either a
// duplicate notice or a fresh upload URL.
type pendingUpload struct {
	FilePath  string
	FileSize  int64
	To        types.JID
	Caption   string
	MediaType string
	Thumbnail []byte
}

// MediaRequestQueue owns the two-phase outbound media send: request an
// upload slot, then either reuse a server-reported duplicate URL or upload
// the file and send the resulting <media> node as a <message>.
type MediaRequestQueue struct {
	store MediaStore

	lock    sync.Mutex
	pending map[string]pendingUpload
}

// NewMediaRequestQueue builds a queue backed by store.
func NewMediaRequestQueue(store MediaStore) *MediaRequestQueue {
	return &MediaRequestQueue{store: store, pending: make(map[string]pendingUpload)}
}

func sha256File(path string) (sum [32]byte, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return sum, 0, err
	}
	defer f.Close()
	h := sha256.New()
	size, err = io.Copy(h, f)
	if err != nil {
		return sum, 0, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, size, nil
}

// RequestUpload begins phase one: send an <iq get> requesting an upload
// slot for localPath, recording the pending send under the request id.
func (cli *Client) RequestUpload(ctx context.Context, to types.JID, localPath, mediaType, caption string, thumbnail []byte) error {
	if cli.mediaQueue.store == nil {
		return &MediaError{Op: "upload", Err: fmt.Errorf("no MediaStore configured")}
	}
	sum, size, err := sha256File(localPath)
	if err != nil {
		return &MediaError{Op: "stat", Err: err}
	}
	id := cli.reqs.generateRequestID()

	cli.mediaQueue.lock.Lock()
	cli.mediaQueue.pending[id] = pendingUpload{
		FilePath:  localPath,
		FileSize:  size,
		To:        to,
		Caption:   caption,
		MediaType: mediaType,
		Thumbnail: thumbnail,
	}
	cli.mediaQueue.lock.Unlock()

	mediaNode := binary.Node{
		Tag: "media",
		Attrs: binary.AttrsFrom(
			"hash", base64.StdEncoding.EncodeToString(sum[:]),
			"type", mediaType,
			"size", strconv.FormatInt(size, 10),
		),
	}
	// Sent untracked (not via sendIQAsync/RequestTracker): the response is
	// picked up by the dispatch table's media-upload-slot rule, which
	// matches on the pending id recorded above rather than a tracked
	// response waiter, since the caller isn't blocked on this id.
	attrs := binary.AttrsFrom("id", id, "xmlns", "w:m", "type", string(iqGet))
	return cli.sendNode(binary.Node{Tag: "iq", Attrs: attrs, Children: []binary.Node{mediaNode}})
}

// continueUpload is phase two, called from the dispatch table when a
// matching <iq> arrives carrying either a <duplicate> or <media> child.
func (cli *Client) continueUpload(ctx context.Context, node *binary.Node) {
	id := node.Attr("id")
	cli.mediaQueue.lock.Lock()
	p, ok := cli.mediaQueue.pending[id]
	if ok {
		delete(cli.mediaQueue.pending, id)
	}
	cli.mediaQueue.lock.Unlock()
	if !ok {
		return
	}

	if dup, ok := node.GetOptionalChildByTag("duplicate"); ok {
		cli.sendMediaMessage(p, UploadResult{URL: dup.Attr("url"), Type: p.MediaType, Size: p.FileSize})
		return
	}
	slot, ok := node.GetOptionalChildByTag("media")
	if !ok {
		cli.dispatchEvent(events.MediaErrorEvent{Op: "upload", To: p.To, Err: fmt.Errorf("wacore: upload-slot response had neither duplicate nor media child")})
		return
	}
	// The HTTPS upload runs off the dispatch goroutine so a slow transfer
	// never stalls inbound frame processing; it touches no session state
	// until the final message send.
	go func() {
		uploaded, err := cli.mediaQueue.store.Upload(ctx, p.FilePath, slot.Attr("url"), p.MediaType)
		if err != nil {
			cli.dispatchEvent(events.MediaErrorEvent{Op: "upload", To: p.To, Err: err})
			return
		}
		cli.sendMediaMessage(p, uploaded)
	}()
}

func (cli *Client) sendMediaMessage(p pendingUpload, result UploadResult) {
	attrs := binary.AttrsFrom("url", result.URL, "type", p.MediaType, "size", strconv.FormatInt(p.FileSize, 10), "file", p.FilePath)
	if p.Caption != "" {
		attrs.Set("caption", p.Caption)
	}
	mediaNode := binary.Node{Tag: "media", Attrs: attrs, Payload: p.Thumbnail}
	if err := cli.sendMessageNode(p.To, mediaNode); err != nil {
		cli.dispatchEvent(events.MediaErrorEvent{Op: "send", To: p.To, Err: err})
	}
}

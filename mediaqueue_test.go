package wacore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/events"
	"go.mau.fi/wacore/types"
)

type fakeMediaStore struct {
	mu        sync.Mutex
	uploadURL string
	uploadErr error
	uploaded  []string

	downloadPath string
	downloadErr  error
	downloaded   []string
}

func (f *fakeMediaStore) Upload(ctx context.Context, localPath, destURL, mediaType string) (UploadResult, error) {
	f.mu.Lock()
	f.uploaded = append(f.uploaded, localPath)
	f.mu.Unlock()
	if f.uploadErr != nil {
		return UploadResult{}, f.uploadErr
	}
	return UploadResult{URL: f.uploadURL, Type: mediaType}, nil
}

func (f *fakeMediaStore) uploadedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.uploaded))
	copy(out, f.uploaded)
	return out
}

func (f *fakeMediaStore) Download(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.downloaded = append(f.downloaded, url)
	f.mu.Unlock()
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.downloadPath, nil
}

// waitForMessage polls sender until an outbound <message> node appears; the
// fresh-slot upload path completes on its own goroutine, so the resulting
// message send is not synchronous with continueUpload.
func waitForMessage(t *testing.T, sender *capturingSender) binary.Node {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if msgs := sender.withTag("message"); len(msgs) > 0 {
			return msgs[0]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for an outbound message")
	return binary.Node{}
}

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.bin")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

// TestRequestUploadDuplicate covers the server-reported-duplicate branch:
// no Upload call is made, and the eventual <media> message reuses the
// duplicate URL.
func TestRequestUploadDuplicate(t *testing.T) {
	cli, sender := newTestClient(t)
	cli.setState(stateLoggedIn)
	store := &fakeMediaStore{}
	cli.mediaQueue = NewMediaRequestQueue(store)
	to := types.NewUserJID("31000000000")
	path := writeTempFile(t, "hello image bytes")

	if err := cli.RequestUpload(context.Background(), to, path, "image", "a caption", nil); err != nil {
		t.Fatalf("RequestUpload: %v", err)
	}

	iqs := sender.withTag("iq")
	if len(iqs) != 1 {
		t.Fatalf("expected one upload-slot iq, got %d", len(iqs))
	}
	reqID := iqs[0].Attr("id")

	cli.continueUpload(context.Background(), &binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("id", reqID),
		Children: []binary.Node{
			{Tag: "duplicate", Attrs: binary.AttrsFrom("url", "https://cdn.example/dup")},
		},
	})

	if got := store.uploadedPaths(); len(got) != 0 {
		t.Errorf("expected no Upload call on a duplicate response, got %v", got)
	}
	messages := sender.withTag("message")
	if len(messages) != 1 {
		t.Fatalf("expected one media message sent, got %d", len(messages))
	}
	media := messages[0].GetChildByTag("media")
	if media.Attr("url") != "https://cdn.example/dup" {
		t.Errorf("url = %q, want the duplicate url", media.Attr("url"))
	}
	if media.Attr("caption") != "a caption" {
		t.Errorf("caption = %q, want %q", media.Attr("caption"), "a caption")
	}
}

// TestRequestUploadFreshSlot covers the fresh-upload-slot branch: Upload is
// called once and the message carries the URL it returned.
func TestRequestUploadFreshSlot(t *testing.T) {
	cli, sender := newTestClient(t)
	cli.setState(stateLoggedIn)
	store := &fakeMediaStore{uploadURL: "https://cdn.example/fresh"}
	cli.mediaQueue = NewMediaRequestQueue(store)
	to := types.NewUserJID("31000000000")
	path := writeTempFile(t, "some video bytes")

	if err := cli.RequestUpload(context.Background(), to, path, "video", "", nil); err != nil {
		t.Fatalf("RequestUpload: %v", err)
	}
	reqID := sender.withTag("iq")[0].Attr("id")

	cli.continueUpload(context.Background(), &binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("id", reqID),
		Children: []binary.Node{
			{Tag: "media", Attrs: binary.AttrsFrom("url", "https://upload.example/slot")},
		},
	})

	media := waitForMessage(t, sender).GetChildByTag("media")
	if got := store.uploadedPaths(); len(got) != 1 || got[0] != path {
		t.Fatalf("expected Upload called once with %q, got %v", path, got)
	}
	if media.Attr("url") != "https://cdn.example/fresh" {
		t.Errorf("url = %q, want the fresh upload url", media.Attr("url"))
	}
}

// TestContinueUploadErrorEvent covers the upload-failure branch: no message
// is sent, and a MediaErrorEvent is emitted instead.
func TestContinueUploadErrorEvent(t *testing.T) {
	cli, sender := newTestClient(t)
	cli.setState(stateLoggedIn)
	uploadErr := os.ErrClosed
	store := &fakeMediaStore{uploadURL: "unused", uploadErr: uploadErr}
	cli.mediaQueue = NewMediaRequestQueue(store)
	to := types.NewUserJID("31000000000")
	path := writeTempFile(t, "bytes")

	mediaErrs := make(chan events.MediaErrorEvent, 1)
	cli.AddEventHandler(func(evt interface{}) {
		if e, ok := evt.(events.MediaErrorEvent); ok {
			mediaErrs <- e
		}
	})

	if err := cli.RequestUpload(context.Background(), to, path, "audio", "", nil); err != nil {
		t.Fatalf("RequestUpload: %v", err)
	}
	reqID := sender.withTag("iq")[0].Attr("id")

	cli.continueUpload(context.Background(), &binary.Node{
		Tag:   "iq",
		Attrs: binary.AttrsFrom("id", reqID),
		Children: []binary.Node{
			{Tag: "media", Attrs: binary.AttrsFrom("url", "https://upload.example/slot")},
		},
	})

	select {
	case mediaErr := <-mediaErrs:
		if mediaErr.To != to {
			t.Fatalf("expected a MediaErrorEvent for %s, got %+v", to, mediaErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a MediaErrorEvent")
	}
	if len(sender.withTag("message")) != 0 {
		t.Errorf("expected no message sent on upload failure")
	}
}

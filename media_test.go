package wacore

import (
	"context"
	"testing"

	"go.mau.fi/wacore/events"
)

func TestDownloadMediaUsesConfiguredStore(t *testing.T) {
	cli, _ := newTestClient(t)
	store := &fakeMediaStore{downloadPath: "/tmp/cached.jpg"}
	cli.mediaStore = store

	path, err := cli.DownloadMedia(context.Background(), events.Media{URL: "https://mmg.example/abc"})
	if err != nil {
		t.Fatalf("DownloadMedia: %v", err)
	}
	if path != "/tmp/cached.jpg" {
		t.Errorf("path = %q, want /tmp/cached.jpg", path)
	}
	if len(store.downloaded) != 1 || store.downloaded[0] != "https://mmg.example/abc" {
		t.Errorf("downloaded = %+v, want one call for https://mmg.example/abc", store.downloaded)
	}
}

func TestDownloadMediaNoStoreConfigured(t *testing.T) {
	cli, _ := newTestClient(t)
	cli.mediaStore = nil

	if _, err := cli.DownloadMedia(context.Background(), events.Media{URL: "https://mmg.example/abc"}); err == nil {
		t.Fatalf("expected an error with no MediaStore configured")
	}
}

package wacore

import (
	"context"
	"fmt"

	"go.mau.fi/wacore/events"
)

// DownloadMedia fetches the bytes behind an inbound events.Media's URL via
// the configured MediaStore, returning the local path it was saved to.
func (cli *Client) DownloadMedia(ctx context.Context, media events.Media) (string, error) {
	if cli.mediaStore == nil {
		return "", fmt.Errorf("wacore: no MediaStore configured")
	}
	return cli.mediaStore.Download(ctx, media.URL)
}

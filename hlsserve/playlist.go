package hlsserve

import (
	"context"
	"os"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

const playlistPollInterval = 500 * time.Millisecond

// WaitForPlaylist blocks until the media playlist at path parses and lists
// at least one segment.
func WaitForPlaylist(ctx context.Context, path string) error {
	t := time.NewTicker(playlistPollInterval)
	defer t.Stop()

	for {
		if playlistReady(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func playlistReady(path string) bool {
	buf, err := os.ReadFile(path)
	if err != nil || len(buf) == 0 {
		return false
	}

	pl, err := playlist.Unmarshal(buf)
	if err != nil {
		return false
	}

	media, ok := pl.(*playlist.Media)
	return ok && len(media.Segments) > 0
}

package readiness

import (
	"context"
	"time"
)

// PlaylistSuffix is appended to a stream key to name its HLS playlist.
const PlaylistSuffix = ".m3u8"

// Checker reports whether the playable manifest for a stream key exists.
type Checker interface {
	Ready(ctx context.Context, streamKey string) (bool, error)
}

// Notifier wakes a poll early, e.g. when a playlist file is written.
// The returned func releases the subscription.
type Notifier interface {
	Subscribe() (<-chan struct{}, func())
}

// PlaylistName returns the playlist object name for a stream key.
func PlaylistName(streamKey string) string {
	return streamKey + PlaylistSuffix
}

// Poll checks readiness immediately and then on every interval tick, or
// earlier when notify fires, until the check succeeds or ctx is done.
// Check errors count as not ready.
func Poll(ctx context.Context, checker Checker, streamKey string, interval time.Duration, notify Notifier) bool {
	var wake <-chan struct{}
	if notify != nil {
		ch, cancel := notify.Subscribe()
		defer cancel()
		wake = ch
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ok, err := checker.Ready(ctx, streamKey); err == nil && ok {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		case <-wake:
		}
	}
}

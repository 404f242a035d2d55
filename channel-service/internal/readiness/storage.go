package readiness

import (
	"context"

	"github.com/weiawesome/wes-io-channels/pkg/storage"
)

// StorageChecker looks for the playlist object in the HLS output storage.
type StorageChecker struct {
	store storage.Storage
}

// NewStorageChecker creates a checker over store.
func NewStorageChecker(store storage.Storage) *StorageChecker {
	return &StorageChecker{store: store}
}

// Ready reports whether <key>.m3u8 exists in the store.
func (c *StorageChecker) Ready(ctx context.Context, streamKey string) (bool, error) {
	return c.store.Exists(ctx, PlaylistName(streamKey))
}

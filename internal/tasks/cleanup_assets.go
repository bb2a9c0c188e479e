package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"
)

// AssetCleaner removes asset files nothing references any more.
type AssetCleaner interface {
	CleanupUnusedAssets(ctx context.Context) ([]string, error)
}

// CleanupAssetsTask deletes unreferenced files from the asset directory.
type CleanupAssetsTask struct{}

// Config returns the queue configuration for CleanupAssetsTask.
func (t CleanupAssetsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_assets",
		MaxAttempts: 1,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// NewCleanupAssetsQueue creates the queue processor for asset cleanup.
func NewCleanupAssetsQueue(c AssetCleaner, logger *slog.Logger) backlite.Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return backlite.NewQueue(func(ctx context.Context, task CleanupAssetsTask) error {
		removed, err := c.CleanupUnusedAssets(ctx)
		if err != nil {
			return fmt.Errorf("cleanup assets: %w", err)
		}
		logger.Info("unused assets removed", "count", len(removed))
		return nil
	})
}

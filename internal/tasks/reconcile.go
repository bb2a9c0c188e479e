package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/services"
)

// Reconciler repairs the chapter/book cross references.
type Reconciler interface {
	Reconcile(ctx context.Context) (services.ReconcileReport, error)
	RebuildChapterIDs(ctx context.Context, bookID string) (*entities.Book, error)
}

// ReconcileLibraryTask scans the whole library for orphaned chapters and
// stale chapter lists.
type ReconcileLibraryTask struct{}

// Config returns the queue configuration for ReconcileLibraryTask.
func (t ReconcileLibraryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reconcile_library",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data: &backlite.RetainData{
				OnlyFailed: true,
			},
		},
	}
}

// ReconcileBookTask rebuilds the chapter list of a single book after a
// write that could not be rolled back.
type ReconcileBookTask struct {
	BookID string `json:"book_id"`
}

// Config returns the queue configuration for ReconcileBookTask.
func (t ReconcileBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reconcile_book",
		MaxAttempts: 5,
		Backoff:     10 * time.Second,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data: &backlite.RetainData{
				OnlyFailed: true,
			},
		},
	}
}

// NewReconcileLibraryQueue creates the queue processor for full reconciles.
func NewReconcileLibraryQueue(r Reconciler, logger *slog.Logger) backlite.Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return backlite.NewQueue(func(ctx context.Context, task ReconcileLibraryTask) error {
		report, err := r.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile library: %w", err)
		}
		if report.Changed() {
			logger.Info("library reconciled",
				"orphan_chapters", report.OrphanChapters,
				"orphan_comments", report.OrphanComments,
				"books_repaired", report.BooksRepaired)
		}
		return nil
	})
}

// NewReconcileBookQueue creates the queue processor for single-book repairs.
// A book that no longer exists falls back to a full reconcile so its
// leftover chapters are dropped.
func NewReconcileBookQueue(r Reconciler, logger *slog.Logger) backlite.Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return backlite.NewQueue(func(ctx context.Context, task ReconcileBookTask) error {
		book, err := r.RebuildChapterIDs(ctx, task.BookID)
		if errors.Is(err, services.ErrNotFound) {
			logger.Info("book gone, reconciling library", "book_id", task.BookID)
			if _, err := r.Reconcile(ctx); err != nil {
				return fmt.Errorf("reconcile library: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("rebuild chapters of %s: %w", task.BookID, err)
		}
		logger.Info("book repaired", "book_id", book.ID, "chapters", len(book.ChapterIDs))
		return nil
	})
}

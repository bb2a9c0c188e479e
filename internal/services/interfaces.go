package services

import (
	"context"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/entities"
)

// BookReader provides read-only access to books and chapters.
// The export pipeline depends on this rather than on LibraryService.
type BookReader interface {
	GetBook(ctx context.Context, id string) (*entities.Book, error)
	GetChaptersByBook(ctx context.Context, bookID string) []entities.Chapter
}

// BookImporter appends a fully materialized book and its chapters.
type BookImporter interface {
	ImportBook(ctx context.Context, book entities.Book, chapters []entities.Chapter) (*entities.Book, error)
}

// Counter records usage events.
type Counter interface {
	Increment(ctx context.Context, event analytics.Event)
}

// RepairScheduler queues a background reconcile after a rollback could not
// be completed. An empty bookID asks for a whole-library pass.
type RepairScheduler interface {
	ScheduleRepair(ctx context.Context, bookID string) error
}

var (
	_ BookReader   = (*LibraryService)(nil)
	_ BookImporter = (*LibraryService)(nil)
)

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/lovebooks/internal/entities"
)

// SnapshotVersion is bumped when the Snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is a full copy of the three library collections.
type Snapshot struct {
	Version   int                `json:"version" validate:"gte=1"`
	CreatedAt int64              `json:"createdAt"`
	Books     []entities.Book    `json:"books" validate:"dive"`
	Chapters  []entities.Chapter `json:"chapters" validate:"dive"`
	Comments  []entities.Comment `json:"comments" validate:"dive"`
}

// Snapshot reads all collections under the write lock so the copy is
// consistent with respect to this process.
func (s *LibraryService) Snapshot(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Version:   SnapshotVersion,
		CreatedAt: s.nowMillis(),
		Books:     s.store.Books.Load(ctx),
		Chapters:  s.store.Chapters.Load(ctx),
		Comments:  s.store.Comments.Load(ctx),
	}
}

// Restore replaces the library with snap. Chapters are written first, then
// books, then comments. A failed write puts the earlier collections back.
func (s *LibraryService) Restore(ctx context.Context, snap Snapshot) error {
	if err := s.check(snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevChapters := s.store.Chapters.Load(ctx)
	prevBooks := s.store.Books.Load(ctx)

	if err := s.store.Chapters.Save(ctx, snap.Chapters); err != nil {
		return err
	}
	if err := s.store.Books.Save(ctx, snap.Books); err != nil {
		if rbErr := s.store.Chapters.Save(ctx, prevChapters); rbErr != nil {
			s.scheduleRepair(ctx, "")
			return errors.Join(err, fmt.Errorf("rollback chapters: %w", rbErr))
		}
		return err
	}
	if err := s.store.Comments.Save(ctx, snap.Comments); err != nil {
		rbErr := errors.Join(s.store.Books.Save(ctx, prevBooks), s.store.Chapters.Save(ctx, prevChapters))
		if rbErr != nil {
			s.scheduleRepair(ctx, "")
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	s.logger.InfoContext(ctx, "library restored",
		"books", len(snap.Books),
		"chapters", len(snap.Chapters),
		"comments", len(snap.Comments))
	return nil
}

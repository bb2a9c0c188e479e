package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/mrlokans/lovebooks/internal/entities"
)

// ReconcileReport summarizes what Reconcile changed.
type ReconcileReport struct {
	OrphanChapters int `json:"orphanChapters"`
	OrphanComments int `json:"orphanComments"`
	BooksRepaired  int `json:"booksRepaired"`
}

// Changed reports whether anything was written.
func (r ReconcileReport) Changed() bool {
	return r.OrphanChapters+r.OrphanComments+r.BooksRepaired > 0
}

// RebuildChapterIDs recomputes a book's chapterIds from the chapter
// collection. The book is only written when the index was wrong.
func (s *LibraryService) RebuildChapterIDs(ctx context.Context, bookID string) (*entities.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := s.store.Books.Load(ctx)
	i := findBook(books, bookID)
	if i < 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}

	book := books[i].Clone()
	ids := chapterIDsOf(s.store.Chapters.Load(ctx), bookID)
	if slices.Equal(ids, book.ChapterIDs) {
		return &book, nil
	}

	book.ChapterIDs = ids
	book.UpdatedAt = s.touch(book.UpdatedAt)
	updated := slices.Clone(books)
	updated[i] = book
	if err := s.store.Books.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("rebuild chapter ids: %w", err)
	}
	s.logger.InfoContext(ctx, "rebuilt chapter index", "book_id", bookID, "chapters", len(ids))
	return &book, nil
}

// Reconcile restores referential integrity across the whole library: it
// drops chapters whose book is gone and rebuilds every book's chapterIds.
// With CascadeComments it also drops comments whose book is gone.
func (s *LibraryService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report ReconcileReport
	books := s.store.Books.Load(ctx)
	known := make(map[string]bool, len(books))
	for _, b := range books {
		known[b.ID] = true
	}

	chapters := s.store.Chapters.Load(ctx)
	kept := slices.DeleteFunc(slices.Clone(chapters), func(c entities.Chapter) bool { return !known[c.BookID] })
	if n := len(chapters) - len(kept); n > 0 {
		if err := s.store.Chapters.Save(ctx, kept); err != nil {
			return report, fmt.Errorf("reconcile chapters: %w", err)
		}
		report.OrphanChapters = n
	}

	updated := slices.Clone(books)
	for i := range updated {
		ids := chapterIDsOf(kept, updated[i].ID)
		if slices.Equal(ids, updated[i].ChapterIDs) {
			continue
		}
		b := updated[i].Clone()
		b.ChapterIDs = ids
		b.UpdatedAt = s.touch(b.UpdatedAt)
		updated[i] = b
		report.BooksRepaired++
	}
	if report.BooksRepaired > 0 {
		if err := s.store.Books.Save(ctx, updated); err != nil {
			return report, fmt.Errorf("reconcile books: %w", err)
		}
	}

	if s.cascade {
		comments := s.store.Comments.Load(ctx)
		keptComments := slices.DeleteFunc(slices.Clone(comments), func(c entities.Comment) bool { return !known[c.BookID] })
		if n := len(comments) - len(keptComments); n > 0 {
			if err := s.store.Comments.Save(ctx, keptComments); err != nil {
				return report, fmt.Errorf("reconcile comments: %w", err)
			}
			report.OrphanComments = n
		}
	}

	if report.Changed() {
		s.logger.InfoContext(ctx, "library reconciled",
			"orphan_chapters", report.OrphanChapters,
			"orphan_comments", report.OrphanComments,
			"books_repaired", report.BooksRepaired)
	}
	return report, nil
}

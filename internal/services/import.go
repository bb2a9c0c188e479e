package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/entities"
)

// ImportBook appends a book and its chapters built by the import pipeline.
// Identifiers must already be fresh; nothing existing is modified. The book
// is written first and removed again if the chapter write fails.
func (s *LibraryService) ImportBook(ctx context.Context, book entities.Book, chapters []entities.Chapter) (*entities.Book, error) {
	book = book.Clone()
	if err := s.check(book); err != nil {
		return nil, err
	}
	if book.ID == "" {
		return nil, fmt.Errorf("%w: imported book has no id", ErrValidation)
	}

	incoming := make([]entities.Chapter, len(chapters))
	seenIDs := make(map[string]bool, len(chapters))
	seenOrders := make(map[int]bool, len(chapters))
	for i, c := range chapters {
		c = c.Clone()
		if c.BookID != book.ID {
			return nil, fmt.Errorf("%w: chapter %s does not belong to book %s", ErrValidation, c.ID, book.ID)
		}
		if err := s.check(c); err != nil {
			return nil, err
		}
		if seenIDs[c.ID] || seenOrders[c.Order] {
			return nil, fmt.Errorf("%w: duplicate chapter id or order in import", ErrValidation)
		}
		seenIDs[c.ID], seenOrders[c.Order] = true, true
		incoming[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books := s.store.Books.Load(ctx)
	if findBook(books, book.ID) >= 0 {
		return nil, fmt.Errorf("%w: book id %s already exists", ErrValidation, book.ID)
	}
	existing := s.store.Chapters.Load(ctx)
	for _, c := range existing {
		if seenIDs[c.ID] {
			return nil, fmt.Errorf("%w: chapter id %s already exists", ErrValidation, c.ID)
		}
	}

	now := s.nowMillis()
	if book.CreatedAt == 0 {
		book.CreatedAt = now
	}
	book.UpdatedAt = s.touch(book.UpdatedAt)
	for i := range incoming {
		if incoming[i].CreatedAt == 0 {
			incoming[i].CreatedAt = now
		}
		incoming[i].UpdatedAt = s.touch(incoming[i].UpdatedAt)
	}
	book.ChapterIDs = chapterIDsOf(incoming, book.ID)

	if err := s.store.Books.Save(ctx, append(slices.Clone(books), book)); err != nil {
		return nil, fmt.Errorf("import book: %w", err)
	}
	if len(incoming) > 0 {
		if err := s.store.Chapters.Save(ctx, append(slices.Clone(existing), incoming...)); err != nil {
			if rbErr := s.store.Books.Save(ctx, books); rbErr != nil {
				s.logger.ErrorContext(ctx, "book rollback failed after import", "book_id", book.ID, "error", rbErr)
				s.scheduleRepair(ctx, book.ID)
				return nil, fmt.Errorf("import chapters: %w", errors.Join(err, fmt.Errorf("rollback book: %w", rbErr)))
			}
			return nil, fmt.Errorf("import chapters: %w", err)
		}
	}

	s.count(ctx, analytics.BooksImported)
	s.logger.InfoContext(ctx, "book imported", "book_id", book.ID, "chapters", len(incoming))
	return &book, nil
}

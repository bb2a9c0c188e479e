package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/entities"
)

// BookInput is the data needed to create a book.
type BookInput struct {
	Title       string `validate:"notblank,max=100"`
	Description string `validate:"max=500"`
	AuthorID    string `validate:"required"`
	CoverImage  string
	Rating      *float64 `validate:"omitempty,gte=0,lte=5"`
}

// BookPatch lists the book fields to change. Nil fields are left as is.
type BookPatch struct {
	Title       *string
	Description *string
	CoverImage  *string
	Rating      *float64
}

func (s *LibraryService) CreateBook(ctx context.Context, in BookInput) (*entities.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.check(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMillis()
	book := entities.Book{
		ID:          s.ids.Generate(),
		Title:       in.Title,
		CoverImage:  in.CoverImage,
		Description: in.Description,
		AuthorID:    in.AuthorID,
		CreatedAt:   now,
		UpdatedAt:   now,
		ChapterIDs:  []string{},
	}
	if in.Rating != nil {
		rating := *in.Rating
		book.Metadata = &entities.BookMetadata{Rating: &rating}
	}

	books := s.store.Books.Load(ctx)
	if err := s.store.Books.Save(ctx, append(books, book)); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.count(ctx, analytics.BooksCreated)
	s.logger.DebugContext(ctx, "book created", "book_id", book.ID)
	return &book, nil
}

func (s *LibraryService) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	books := s.store.Books.Load(ctx)
	i := findBook(books, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	book := books[i].Clone()
	return &book, nil
}

func (s *LibraryService) GetAllBooks(ctx context.Context) []entities.Book {
	books := s.store.Books.Load(ctx)
	out := make([]entities.Book, len(books))
	for i, b := range books {
		out[i] = b.Clone()
	}
	return out
}

func (s *LibraryService) UpdateBook(ctx context.Context, id string, patch BookPatch) (*entities.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := s.store.Books.Load(ctx)
	i := findBook(books, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}

	book := books[i].Clone()
	if patch.Title != nil {
		book.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		book.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.CoverImage != nil {
		book.CoverImage = *patch.CoverImage
	}
	if patch.Rating != nil {
		if book.Metadata == nil {
			book.Metadata = &entities.BookMetadata{}
		}
		rating := *patch.Rating
		book.Metadata.Rating = &rating
	}
	if err := s.check(book); err != nil {
		return nil, err
	}
	book.UpdatedAt = s.touch(book.UpdatedAt)

	updated := slices.Clone(books)
	updated[i] = book
	if err := s.store.Books.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return &book, nil
}

// DeleteBook removes the book and every chapter that belongs to it. Comments
// are removed too when CascadeComments is set.
func (s *LibraryService) DeleteBook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := s.store.Books.Load(ctx)
	i := findBook(books, id)
	if i < 0 {
		return fmt.Errorf("%w: book %s", ErrNotFound, id)
	}

	chapters := s.store.Chapters.Load(ctx)
	kept := slices.DeleteFunc(slices.Clone(chapters), func(c entities.Chapter) bool { return c.BookID == id })
	removed := len(chapters) - len(kept)
	if removed > 0 {
		if err := s.store.Chapters.Save(ctx, kept); err != nil {
			return fmt.Errorf("delete chapters of book %s: %w", id, err)
		}
	}

	remaining := slices.Delete(slices.Clone(books), i, i+1)
	if removed > 0 {
		if err := s.saveOwner(ctx, id, remaining, chapters); err != nil {
			return fmt.Errorf("delete book %s: %w", id, err)
		}
	} else if err := s.store.Books.Save(ctx, remaining); err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}

	if s.cascade {
		if err := s.deleteComments(ctx, func(c entities.Comment) bool { return c.BookID == id }); err != nil {
			return fmt.Errorf("book %s deleted, comments kept: %w", id, err)
		}
	}

	s.logger.DebugContext(ctx, "book deleted", "book_id", id, "chapters", removed)
	return nil
}

// MarkRead records one read of the book.
func (s *LibraryService) MarkRead(ctx context.Context, id string) (*entities.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := s.store.Books.Load(ctx)
	i := findBook(books, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}

	book := books[i].Clone()
	if book.Metadata == nil {
		book.Metadata = &entities.BookMetadata{}
	}
	reads := 1
	if book.Metadata.ReadCount != nil {
		reads = *book.Metadata.ReadCount + 1
	}
	lastRead := s.nowMillis()
	book.Metadata.ReadCount = &reads
	book.Metadata.LastRead = &lastRead

	updated := slices.Clone(books)
	updated[i] = book
	if err := s.store.Books.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("mark book read: %w", err)
	}

	s.count(ctx, analytics.BooksRead)
	return &book, nil
}

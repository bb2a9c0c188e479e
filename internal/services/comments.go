package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/entities"
)

type CommentInput struct {
	BookID    string
	ChapterID string
	UserID    string
	Text      string
}

// AddComment appends a comment to a book, or to one of its chapters when
// ChapterID is set.
func (s *LibraryService) AddComment(ctx context.Context, in CommentInput) (*entities.Comment, error) {
	comment := entities.Comment{
		BookID:    in.BookID,
		ChapterID: in.ChapterID,
		UserID:    in.UserID,
		Text:      strings.TrimSpace(in.Text),
	}
	if err := s.check(comment); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if findBook(s.store.Books.Load(ctx), in.BookID) < 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, in.BookID)
	}
	if in.ChapterID != "" {
		chapters := s.store.Chapters.Load(ctx)
		ci := findChapter(chapters, in.ChapterID)
		if ci < 0 {
			return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, in.ChapterID)
		}
		if chapters[ci].BookID != in.BookID {
			return nil, fmt.Errorf("%w: chapter %s is not part of book %s", ErrValidation, in.ChapterID, in.BookID)
		}
	}

	comment.ID = s.ids.Generate()
	comment.CreatedAt = s.nowMillis()

	comments := s.store.Comments.Load(ctx)
	if err := s.store.Comments.Save(ctx, append(comments, comment)); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	s.count(ctx, analytics.CommentsCreated)
	return &comment, nil
}

// ListComments returns comments on one chapter of a book, oldest first. An
// empty chapterID selects comments on the book itself.
func (s *LibraryService) ListComments(ctx context.Context, bookID, chapterID string) []entities.Comment {
	return s.filterComments(ctx, func(c entities.Comment) bool {
		return c.BookID == bookID && c.ChapterID == chapterID
	})
}

// ListCommentsByBook returns every comment on the book and its chapters.
func (s *LibraryService) ListCommentsByBook(ctx context.Context, bookID string) []entities.Comment {
	return s.filterComments(ctx, func(c entities.Comment) bool { return c.BookID == bookID })
}

func (s *LibraryService) filterComments(ctx context.Context, keep func(entities.Comment) bool) []entities.Comment {
	out := []entities.Comment{}
	for _, c := range s.store.Comments.Load(ctx) {
		if keep(c) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b entities.Comment) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	return out
}

// deleteComments drops matching comments. Callers hold s.mu.
func (s *LibraryService) deleteComments(ctx context.Context, match func(entities.Comment) bool) error {
	comments := s.store.Comments.Load(ctx)
	kept := slices.DeleteFunc(slices.Clone(comments), match)
	if len(kept) == len(comments) {
		return nil
	}
	return s.store.Comments.Save(ctx, kept)
}

package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/entities"
)

// ChapterInput is the data needed to create a chapter. A zero Order places
// the chapter after the existing ones.
type ChapterInput struct {
	BookID  string `validate:"required"`
	Title   string `validate:"notblank,max=100"`
	Content string `validate:"notblank"`
	Images  []string
	Order   int `validate:"gte=0"`
}

// ChapterPatch lists the chapter fields to change. Nil fields are left as is.
type ChapterPatch struct {
	Title   *string
	Content *string
	Images  *[]string
	Order   *int
}

// nextOrder returns the order for a chapter appended to siblings. It is
// count+1 unless earlier deletes left a higher order in use.
func nextOrder(siblings []entities.Chapter) int {
	highest := len(siblings)
	for _, c := range siblings {
		highest = max(highest, c.Order)
	}
	return highest + 1
}

func orderTaken(siblings []entities.Chapter, order int, exceptID string) bool {
	return slices.ContainsFunc(siblings, func(c entities.Chapter) bool {
		return c.Order == order && c.ID != exceptID
	})
}

// CreateChapter appends a chapter to an existing book. The chapter is
// written first, then the book's chapterIds.
func (s *LibraryService) CreateChapter(ctx context.Context, in ChapterInput) (*entities.Chapter, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books := s.store.Books.Load(ctx)
	bi := findBook(books, in.BookID)
	if bi < 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, in.BookID)
	}

	chapters := s.store.Chapters.Load(ctx)
	siblings := chaptersOf(chapters, in.BookID)
	order := in.Order
	if order == 0 {
		order = nextOrder(siblings)
	} else if orderTaken(siblings, order, "") {
		return nil, fmt.Errorf("%w: order %d is already used in book %s", ErrValidation, order, in.BookID)
	}

	now := s.nowMillis()
	chapter := entities.Chapter{
		ID:        s.ids.Generate(),
		BookID:    in.BookID,
		Title:     in.Title,
		Content:   in.Content,
		Images:    slices.Clone(in.Images),
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := append(slices.Clone(chapters), chapter)
	if err := s.store.Chapters.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("create chapter: %w", err)
	}

	updated := slices.Clone(books)
	owner := updated[bi].Clone()
	owner.ChapterIDs = chapterIDsOf(next, owner.ID)
	owner.UpdatedAt = s.touch(owner.UpdatedAt)
	updated[bi] = owner
	if err := s.saveOwner(ctx, owner.ID, updated, chapters); err != nil {
		return nil, fmt.Errorf("create chapter: %w", err)
	}

	s.count(ctx, analytics.ChaptersCreated)
	return &chapter, nil
}

func (s *LibraryService) GetChapter(ctx context.Context, id string) (*entities.Chapter, error) {
	chapters := s.store.Chapters.Load(ctx)
	i := findChapter(chapters, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, id)
	}
	c := chapters[i].Clone()
	return &c, nil
}

// GetChaptersByBook returns the book's chapters sorted by ascending order.
func (s *LibraryService) GetChaptersByBook(ctx context.Context, bookID string) []entities.Chapter {
	out := chaptersOf(s.store.Chapters.Load(ctx), bookID)
	if out == nil {
		out = []entities.Chapter{}
	}
	return out
}

// UpdateChapter merges patch into the chapter and refreshes the owner.
// Changing Order re-sorts the owner's chapterIds.
func (s *LibraryService) UpdateChapter(ctx context.Context, id string, patch ChapterPatch) (*entities.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chapters := s.store.Chapters.Load(ctx)
	ci := findChapter(chapters, id)
	if ci < 0 {
		return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, id)
	}

	chapter := chapters[ci].Clone()
	if patch.Title != nil {
		chapter.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		chapter.Content = *patch.Content
	}
	if patch.Images != nil {
		chapter.Images = slices.Clone(*patch.Images)
	}
	if patch.Order != nil && *patch.Order != chapter.Order {
		if orderTaken(chaptersOf(chapters, chapter.BookID), *patch.Order, chapter.ID) {
			return nil, fmt.Errorf("%w: order %d is already used in book %s", ErrValidation, *patch.Order, chapter.BookID)
		}
		chapter.Order = *patch.Order
	}
	if err := s.check(chapter); err != nil {
		return nil, err
	}
	chapter.UpdatedAt = s.touch(chapter.UpdatedAt)

	next := slices.Clone(chapters)
	next[ci] = chapter
	if err := s.store.Chapters.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("update chapter: %w", err)
	}

	books := s.store.Books.Load(ctx)
	bi := findBook(books, chapter.BookID)
	if bi < 0 {
		s.logger.WarnContext(ctx, "updated chapter has no owner", "chapter_id", id, "book_id", chapter.BookID)
		return &chapter, nil
	}
	updated := slices.Clone(books)
	owner := updated[bi].Clone()
	owner.ChapterIDs = chapterIDsOf(next, owner.ID)
	owner.UpdatedAt = s.touch(owner.UpdatedAt)
	updated[bi] = owner
	if err := s.saveOwner(ctx, owner.ID, updated, chapters); err != nil {
		return nil, fmt.Errorf("update chapter: %w", err)
	}
	return &chapter, nil
}

// DeleteChapter removes a chapter and drops it from its book. Unknown ids
// are ignored.
func (s *LibraryService) DeleteChapter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chapters := s.store.Chapters.Load(ctx)
	ci := findChapter(chapters, id)
	if ci < 0 {
		return nil
	}
	bookID := chapters[ci].BookID

	next := slices.Delete(slices.Clone(chapters), ci, ci+1)
	if err := s.store.Chapters.Save(ctx, next); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}

	books := s.store.Books.Load(ctx)
	if bi := findBook(books, bookID); bi >= 0 {
		updated := slices.Clone(books)
		owner := updated[bi].Clone()
		owner.ChapterIDs = slices.DeleteFunc(owner.ChapterIDs, func(cid string) bool { return cid == id })
		owner.UpdatedAt = s.touch(owner.UpdatedAt)
		updated[bi] = owner
		if err := s.saveOwner(ctx, bookID, updated, chapters); err != nil {
			return fmt.Errorf("delete chapter: %w", err)
		}
	}

	if s.cascade {
		if err := s.deleteComments(ctx, func(c entities.Comment) bool { return c.ChapterID == id }); err != nil {
			return fmt.Errorf("chapter %s deleted, comments kept: %w", id, err)
		}
	}
	return nil
}

// Package services holds the library business logic: books, chapters and
// comments with their cross-collection invariants.
//
// The three collections live under separate keys, so a change touching two
// of them is two writes. LibraryService writes the dependent collection
// first and then the owner, restoring the first write if the second fails.
// If even the restore fails, the inconsistency is reported through a
// RepairScheduler and can be fixed by RebuildChapterIDs or Reconcile.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/database/records"
	"github.com/mrlokans/lovebooks/internal/entities"
	"github.com/mrlokans/lovebooks/internal/idgen"
)

type Options struct {
	// CascadeComments removes a book's or chapter's comments when it is
	// deleted. Off by default: comments outlive their target.
	CascadeComments bool
	Generator       idgen.Generator
	Clock           func() time.Time
	Counter         Counter
	Repair          RepairScheduler
	Logger          *slog.Logger
}

// LibraryService is the only writer of the record store. Mutations are
// serialized within the process; other processes are not coordinated with.
type LibraryService struct {
	store    *records.Store
	ids      idgen.Generator
	now      func() time.Time
	counter  Counter
	repair   RepairScheduler
	logger   *slog.Logger
	validate *validator.Validate
	cascade  bool

	mu sync.Mutex
}

func NewLibraryService(store *records.Store, opts Options) *LibraryService {
	s := &LibraryService{
		store:    store,
		ids:      opts.Generator,
		now:      opts.Clock,
		counter:  opts.Counter,
		repair:   opts.Repair,
		logger:   opts.Logger,
		validate: entities.NewValidator(),
		cascade:  opts.CascadeComments,
	}
	if s.ids == nil {
		s.ids = idgen.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetRepairScheduler installs the scheduler used after failed rollbacks.
func (s *LibraryService) SetRepairScheduler(r RepairScheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repair = r
}

// CascadeComments reports whether deletes also remove comments.
func (s *LibraryService) CascadeComments() bool {
	return s.cascade
}

func (s *LibraryService) nowMillis() int64 {
	return s.now().UnixMilli()
}

// touch returns a fresh updatedAt that is strictly greater than prev.
func (s *LibraryService) touch(prev int64) int64 {
	now := s.nowMillis()
	if now <= prev {
		return prev + 1
	}
	return now
}

func (s *LibraryService) count(ctx context.Context, event analytics.Event) {
	if s.counter != nil {
		s.counter.Increment(ctx, event)
	}
}

func (s *LibraryService) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, entities.ValidationMessage(err))
	}
	return nil
}

// saveOwner writes books after the chapter collection was already changed.
// On failure the chapter collection is put back to prev.
func (s *LibraryService) saveOwner(ctx context.Context, bookID string, books []entities.Book, prev []entities.Chapter) error {
	err := s.store.Books.Save(ctx, books)
	if err == nil {
		return nil
	}
	if rbErr := s.store.Chapters.Save(ctx, prev); rbErr != nil {
		s.logger.ErrorContext(ctx, "chapter rollback failed, book index is inconsistent",
			"book_id", bookID, "error", rbErr)
		s.scheduleRepair(ctx, bookID)
		return errors.Join(err, fmt.Errorf("rollback chapters: %w", rbErr))
	}
	s.logger.WarnContext(ctx, "book write failed, chapter write rolled back", "book_id", bookID, "error", err)
	return err
}

func (s *LibraryService) scheduleRepair(ctx context.Context, bookID string) {
	if s.repair == nil {
		return
	}
	if err := s.repair.ScheduleRepair(ctx, bookID); err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule repair", "book_id", bookID, "error", err)
	}
}

func findBook(books []entities.Book, id string) int {
	return slices.IndexFunc(books, func(b entities.Book) bool { return b.ID == id })
}

func findChapter(chapters []entities.Chapter, id string) int {
	return slices.IndexFunc(chapters, func(c entities.Chapter) bool { return c.ID == id })
}

// chaptersOf returns copies of the chapters of bookID in reading order.
func chaptersOf(chapters []entities.Chapter, bookID string) []entities.Chapter {
	var out []entities.Chapter
	for _, c := range chapters {
		if c.BookID == bookID {
			out = append(out, c.Clone())
		}
	}
	entities.SortChapters(out)
	return out
}

// chapterIDsOf derives a book's chapterIds from the chapter collection.
func chapterIDsOf(chapters []entities.Chapter, bookID string) []string {
	owned := chaptersOf(chapters, bookID)
	ids := make([]string, 0, len(owned))
	for _, c := range owned {
		ids = append(ids, c.ID)
	}
	return ids
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/lovebooks/internal/analytics"
	"github.com/mrlokans/lovebooks/internal/database"
	"github.com/mrlokans/lovebooks/internal/database/records"
	"github.com/mrlokans/lovebooks/internal/entities"
)

var errWriteRefused = errors.New("write refused")

// memKV is an in-memory key-value store. failSet, when set, is asked before
// every write with the key and the 1-based write count for that key.
type memKV struct {
	mu       sync.Mutex
	data     map[string]string
	setCalls map[string]int
	failSet  func(key string, call int) error
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, setCalls: map[string]int{}}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", database.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls[key]++
	if m.failSet != nil {
		if err := m.failSet(key, m.setCalls[key]); err != nil {
			return err
		}
	}
	m.data[key] = value
	return nil
}

func (m *memKV) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// failAfter makes writes to key fail starting at the nth call.
func (m *memKV) failAfter(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := m.setCalls[key]
	m.failSet = func(k string, call int) error {
		if k == key && call-start >= n {
			return errWriteRefused
		}
		return nil
	}
}

var (
	booksKey    = records.Key(records.DefaultNamespace, entities.CollectionBooks)
	chaptersKey = records.Key(records.DefaultNamespace, entities.CollectionChapters)
	commentsKey = records.Key(records.DefaultNamespace, entities.CollectionComments)
)

type countingCounter struct {
	mu     sync.Mutex
	events map[analytics.Event]int
}

func (c *countingCounter) Increment(_ context.Context, e analytics.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events == nil {
		c.events = map[analytics.Event]int{}
	}
	c.events[e]++
}

type recordingRepair struct {
	mu    sync.Mutex
	books []string
}

func (r *recordingRepair) ScheduleRepair(_ context.Context, bookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books = append(r.books, bookID)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// frozenClock always returns the same instant, so every updatedAt bump
// relies on the monotonic rule.
func frozenClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return t }
}

func newTestService(t *testing.T, opts Options) (*LibraryService, *memKV) {
	t.Helper()
	kv := newMemKV()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	store := records.NewStore(kv, "", opts.Logger)
	return NewLibraryService(store, opts), kv
}

func mustCreateBook(t *testing.T, svc *LibraryService, title string) *entities.Book {
	t.Helper()
	book, err := svc.CreateBook(context.Background(), BookInput{Title: title, AuthorID: "u1"})
	require.NoError(t, err)
	return book
}

func mustCreateChapter(t *testing.T, svc *LibraryService, bookID string, order int) *entities.Chapter {
	t.Helper()
	ch, err := svc.CreateChapter(context.Background(), ChapterInput{
		BookID:  bookID,
		Title:   fmt.Sprintf("Chapter %d", order),
		Content: "text",
		Order:   order,
	})
	require.NoError(t, err)
	return ch
}

// assertIntegrity checks that every book's chapterIds matches the chapters
// pointing at it, in order, and that no chapter is orphaned.
func assertIntegrity(t *testing.T, svc *LibraryService) {
	t.Helper()
	ctx := context.Background()

	books := svc.GetAllBooks(ctx)
	known := map[string]bool{}
	for _, b := range books {
		known[b.ID] = true
		ids := []string{}
		for _, c := range svc.GetChaptersByBook(ctx, b.ID) {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, ids, b.ChapterIDs, "chapterIds of book %s", b.ID)
	}
	for _, c := range svc.store.Chapters.Load(ctx) {
		assert.True(t, known[c.BookID], "chapter %s is orphaned", c.ID)
	}
}

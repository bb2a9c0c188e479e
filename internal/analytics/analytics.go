// Package analytics keeps local usage counters in the key-value store.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mrlokans/lovebooks/internal/database"
	"github.com/mrlokans/lovebooks/internal/database/records"
	"github.com/mrlokans/lovebooks/internal/entities"
)

// Event names a counter.
type Event string

const (
	BooksCreated    Event = "booksCreated"
	BooksRead       Event = "booksRead"
	ChaptersCreated Event = "chaptersCreated"
	CommentsCreated Event = "commentsCreated"
	BooksExported   Event = "booksExported"
	BooksImported   Event = "booksImported"
	TotalSessions   Event = "totalSessions"
)

// Counters is the persisted analytics record.
type Counters struct {
	BooksCreated    int64 `json:"booksCreated"`
	BooksRead       int64 `json:"booksRead"`
	ChaptersCreated int64 `json:"chaptersCreated"`
	CommentsCreated int64 `json:"commentsCreated"`
	BooksExported   int64 `json:"booksExported"`
	BooksImported   int64 `json:"booksImported"`
	TotalSessions   int64 `json:"totalSessions"`
	LastUsed        int64 `json:"lastUsed"`
}

func (c *Counters) field(e Event) *int64 {
	switch e {
	case BooksCreated:
		return &c.BooksCreated
	case BooksRead:
		return &c.BooksRead
	case ChaptersCreated:
		return &c.ChaptersCreated
	case CommentsCreated:
		return &c.CommentsCreated
	case BooksExported:
		return &c.BooksExported
	case BooksImported:
		return &c.BooksImported
	case TotalSessions:
		return &c.TotalSessions
	}
	return nil
}

// Store is the key-value access the tracker needs.
type Store interface {
	records.KeyValueStore
	Delete(ctx context.Context, key string) error
}

// Tracker increments counters. Failures are logged and never returned from
// Increment, so callers can fire and forget.
type Tracker struct {
	kv     Store
	key    string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

func NewTracker(kv Store, namespace string, logger *slog.Logger) *Tracker {
	if namespace == "" {
		namespace = records.DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		kv:     kv,
		key:    records.Key(namespace, entities.CollectionAnalytics),
		logger: logger,
		now:    time.Now,
	}
}

// Increment bumps the counter for event and refreshes LastUsed.
func (t *Tracker) Increment(ctx context.Context, event Event) {
	if err := t.increment(ctx, event); err != nil {
		t.logger.ErrorContext(ctx, "failed to update analytics", "event", string(event), "error", err)
	}
}

// StartSession counts one CLI or daemon run.
func (t *Tracker) StartSession(ctx context.Context) {
	t.Increment(ctx, TotalSessions)
}

func (t *Tracker) increment(ctx context.Context, event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.Snapshot(ctx)
	if err != nil {
		return err
	}
	f := c.field(event)
	if f == nil {
		return fmt.Errorf("unknown event %q", event)
	}
	*f++
	c.LastUsed = t.now().UnixMilli()

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return t.kv.Set(ctx, t.key, string(data))
}

// Snapshot returns the current counters. A missing record yields zero
// counters with LastUsed set to now.
func (t *Tracker) Snapshot(ctx context.Context) (Counters, error) {
	raw, err := t.kv.Get(ctx, t.key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return Counters{LastUsed: t.now().UnixMilli()}, nil
	}
	if err != nil {
		return Counters{}, fmt.Errorf("read analytics: %w", err)
	}
	var c Counters
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Counters{}, fmt.Errorf("decode analytics: %w", err)
	}
	return c, nil
}

// Reset clears all counters.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.kv.Delete(ctx, t.key)
}

// Package records persists whole record collections as JSON arrays in the
// key-value store.
//
// Access is always read-modify-write over a full collection: Load the slice,
// change it in memory, Save it back. A Save replaces one key's value in a
// single statement, so a collection is never half written.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrlokans/lovebooks/internal/database"
	"github.com/mrlokans/lovebooks/internal/entities"
)

// DefaultNamespace prefixes every collection key.
const DefaultNamespace = "@LoveBooks"

// ErrPersistence marks a failed write to the underlying store.
var ErrPersistence = errors.New("persistence failure")

// KeyValueStore is the subset of database.Database used by collections.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Key returns the storage key of a collection under namespace.
func Key(namespace, collection string) string {
	return namespace + ":" + collection
}

// Collection is one persisted list of T.
type Collection[T any] struct {
	kv     KeyValueStore
	key    string
	logger *slog.Logger
}

// NewCollection binds a collection to key.
func NewCollection[T any](kv KeyValueStore, key string, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T]{kv: kv, key: key, logger: logger}
}

// Key returns the storage key.
func (c *Collection[T]) Key() string {
	return c.key
}

// Load returns the stored items. A missing key, a read error or a decode
// error all yield an empty slice; errors are logged at error level.
func (c *Collection[T]) Load(ctx context.Context) []T {
	raw, err := c.kv.Get(ctx, c.key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return []T{}
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to load collection", "key", c.key, "error", err)
		return []T{}
	}
	if raw == "" {
		return []T{}
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode collection", "key", c.key, "error", err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// Save replaces the stored items.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Store groups the three library collections under one namespace.
type Store struct {
	Namespace string
	Books     *Collection[entities.Book]
	Chapters  *Collection[entities.Chapter]
	Comments  *Collection[entities.Comment]
}

func NewStore(kv KeyValueStore, namespace string, logger *slog.Logger) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{
		Namespace: namespace,
		Books:     NewCollection[entities.Book](kv, Key(namespace, entities.CollectionBooks), logger),
		Chapters:  NewCollection[entities.Chapter](kv, Key(namespace, entities.CollectionChapters), logger),
		Comments:  NewCollection[entities.Comment](kv, Key(namespace, entities.CollectionComments), logger),
	}
}

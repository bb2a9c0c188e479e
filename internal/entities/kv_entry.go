package entities

import (
	"time"
)

// KVEntry is a single row of the local key-value store. Each record
// collection is persisted as one entry holding a JSON array.
type KVEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:200" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// Collection names under the store namespace.
const (
	CollectionBooks     = "books"
	CollectionChapters  = "chapters"
	CollectionComments  = "comments"
	CollectionAnalytics = "analytics"
)

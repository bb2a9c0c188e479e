package entities

import "slices"

// BookMetadata carries reader-side statistics for a book.
type BookMetadata struct {
	Rating    *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReadCount *int     `json:"readCount,omitempty" validate:"omitempty,gte=0"`
	LastRead  *int64   `json:"lastRead,omitempty"`
}

// Book is a user-authored book. ChapterIDs is a denormalized index over the
// chapters whose BookID equals ID, kept in chapter order.
type Book struct {
	ID          string        `json:"id"`
	Title       string        `json:"title" validate:"notblank,max=100"`
	CoverImage  string        `json:"coverImage,omitempty"`
	Description string        `json:"description" validate:"max=500"`
	AuthorID    string        `json:"authorId"`
	CreatedAt   int64         `json:"createdAt"`
	UpdatedAt   int64         `json:"updatedAt"`
	ChapterIDs  []string      `json:"chapterIds"`
	Metadata    *BookMetadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the book.
func (b Book) Clone() Book {
	c := b
	c.ChapterIDs = slices.Clone(b.ChapterIDs)
	if c.ChapterIDs == nil {
		c.ChapterIDs = []string{}
	}
	if b.Metadata != nil {
		m := *b.Metadata
		c.Metadata = &m
	}
	return c
}

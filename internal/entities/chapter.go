package entities

import "slices"

// Chapter belongs to exactly one book. Order is unique within the book and
// ascending order is reading order.
type Chapter struct {
	ID        string   `json:"id" validate:"required"`
	BookID    string   `json:"bookId"`
	Title     string   `json:"title" validate:"notblank,max=100"`
	Content   string   `json:"content" validate:"notblank"`
	Images    []string `json:"images,omitempty"`
	Order     int      `json:"order" validate:"gte=1"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

// Clone returns a deep copy of the chapter.
func (c Chapter) Clone() Chapter {
	out := c
	out.Images = slices.Clone(c.Images)
	return out
}

// SortChapters orders chapters by ascending Order, keeping insertion order
// for equal values.
func SortChapters(chapters []Chapter) {
	slices.SortStableFunc(chapters, func(a, b Chapter) int {
		return a.Order - b.Order
	})
}

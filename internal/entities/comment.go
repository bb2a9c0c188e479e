package entities

// MaxCommentLength is the upper bound on comment text, in characters.
const MaxCommentLength = 500

// Comment is a reader note on a book or one of its chapters. Comments are
// append-only.
type Comment struct {
	ID        string `json:"id"`
	BookID    string `json:"bookId" validate:"required"`
	ChapterID string `json:"chapterId,omitempty"`
	UserID    string `json:"userId" validate:"required"`
	Text      string `json:"text" validate:"notblank,max=500"`
	CreatedAt int64  `json:"createdAt"`
}

package entities

// BookExport is the portable export document: one book, its chapters and the
// inlined (base64) binary assets. It never carries comments or local paths.
type BookExport struct {
	Book          *Book               `json:"book" validate:"required"`
	Chapters      []Chapter           `json:"chapters" validate:"required,dive"`
	CoverImage    string              `json:"coverImage,omitempty" validate:"omitempty,base64"`
	ChapterImages map[string][]string `json:"chapterImages,omitempty" validate:"omitempty,dive,keys,required,endkeys,dive,omitempty,base64"`
	Meta          *ExportMeta         `json:"meta,omitempty"`
}

// ExportMeta describes who produced a document and when.
type ExportMeta struct {
	Version    string `json:"version"`
	ExportedAt string `json:"exportedAt"`
	Platform   string `json:"platform"`
}

const (
	ExportFormatVersion = "1.0"
	ExportPlatform      = "love-books"
)

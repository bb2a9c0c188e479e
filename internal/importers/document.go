package importers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"

	"github.com/mrlokans/lovebooks/internal/entities"
)

// ErrMalformedDocument means the input is not a usable export document.
var ErrMalformedDocument = errors.New("malformed export document")

var validate = entities.NewValidator()

// Decode parses an export document and validates its shape.
func Decode(data []byte) (*entities.BookExport, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var doc entities.BookExport
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedDocument)
	}
	if err := ValidateDocument(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate reports whether doc can be imported.
func Validate(doc *entities.BookExport) bool {
	return ValidateDocument(doc) == nil
}

// ValidateDocument explains why doc cannot be imported.
func ValidateDocument(doc *entities.BookExport) error {
	if doc == nil {
		return fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedDocument, entities.ValidationMessage(err))
	}
	seen := make(map[string]bool, len(doc.Chapters))
	for _, ch := range doc.Chapters {
		if seen[ch.ID] {
			return fmt.Errorf("%w: duplicate chapter id %s", ErrMalformedDocument, ch.ID)
		}
		seen[ch.ID] = true
	}
	return nil
}

// Schema returns the JSON Schema describing export documents.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&entities.BookExport{})
	s.Title = "Love Books export document"
	return json.MarshalIndent(s, "", "  ")
}

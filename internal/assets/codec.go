// Package assets stores binary assets (covers, chapter images) and converts
// them to and from the base64 text embedded in export documents.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Codec inlines assets as standard base64 and materializes them back.
type Codec struct {
	store *Store
}

func NewCodec(store *Store) *Codec {
	return &Codec{store: store}
}

func (c *Codec) Store() *Store {
	return c.store
}

// ToPortable encodes the asset behind ref. Missing or unreadable assets
// return an error wrapping ErrAssetUnavailable.
func (c *Codec) ToPortable(ctx context.Context, ref string) (string, error) {
	data, err := c.store.Read(ctx, ref)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// FromPortable decodes text and writes it to the store as name. When name
// has no extension one is derived from the content.
func (c *Codec) FromPortable(ctx context.Context, text, name string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrInvalidAsset, name, err)
	}
	if filepath.Ext(name) == "" {
		name += extensionFor(data)
	}
	return c.store.Save(ctx, name, data)
}

func extensionFor(data []byte) string {
	if ext := mimetype.Detect(data).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

package services

import (
	"errors"

	"github.com/mrlokans/lovebooks/internal/database/records"
)

var (
	// ErrNotFound means a referenced book, chapter or comment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means input was rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence means the store failed to write. Shared with records.
	ErrPersistence = records.ErrPersistence
)

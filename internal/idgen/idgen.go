// Package idgen issues opaque identifiers for new records.
//
// Identifiers are random (UUIDv4) rather than positional, so they stay unique
// after deletions and across devices without any coordination.
package idgen

import "github.com/google/uuid"

// Generator produces collision-resistant identifiers.
type Generator interface {
	Generate() string
}

// UUIDGenerator issues random UUIDv4 strings.
type UUIDGenerator struct{}

// New returns the default generator.
func New() UUIDGenerator {
	return UUIDGenerator{}
}

// Generate returns a new random identifier.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Func adapts a plain function to the Generator interface.
type Func func() string

func (f Func) Generate() string {
	return f()
}

var _ Generator = UUIDGenerator{}
var _ Generator = Func(nil)

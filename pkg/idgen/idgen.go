package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces identifiers for orders, reports, grants and sessions
type Generator interface {
	NewID() string
}

type uuidGenerator struct{}

// NewUUID returns a generator of random (v4) UUID strings
func NewUUID() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() string {
	return uuid.NewString()
}

// Sequence yields prefix-1, prefix-2, ... and is safe for concurrent use
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence creates a deterministic generator
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}

// Package picker draws uniformly random elements.
package picker

import (
	"math/rand/v2"
	"sync"

	"github.com/starford/serendip/internal/apperr"
)

// Picker is a uniform random source safe for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Picker seeded from the runtime's random source.
func New() *Picker {
	return NewSeeded(rand.Uint64(), rand.Uint64())
}

// NewSeeded returns a deterministic Picker, for tests and reproducible runs.
func NewSeeded(seed1, seed2 uint64) *Picker {
	return &Picker{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Index returns a uniform index in [0, n). n must be positive.
func (p *Picker) Index(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// Pick returns a uniformly chosen element of items, or apperr.ErrEmptyResult
// when items is empty.
func Pick[T any](p *Picker, items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, apperr.ErrEmptyResult
	}
	return items[p.Index(len(items))], nil
}

package service

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness the services draw from. *rand.Rand is not safe for
// concurrent use and the engine's sources run in parallel, so every draw
// goes through one lock.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a deterministic source for tests.
func NewRand(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func newTimeSeededRand() *Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}

func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.r.Shuffle(n, swap)
}

// Sample returns up to k distinct elements of items in random order.
func Sample[T any](r *Rand, items []T, k int) []T {
	if k > len(items) {
		k = len(items)
	}
	if k <= 0 {
		return []T{}
	}
	out := make([]T, len(items))
	copy(out, items)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:k]
}

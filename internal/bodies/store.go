// Package bodies owns the double-buffered body arrays of a simulation.
package bodies

import (
	"sync"
	"sync/atomic"

	"github.com/san-kum/starfield/internal/dynamo"
)

// Store owns two arenas. One is current and readable; the other is written
// by the step in progress. Swap exchanges their roles.
type Store struct {
	mu    sync.RWMutex
	cur   atomic.Uint32
	swaps atomic.Uint64
	sets  [2]dynamo.Buffer
}

// New allocates both arenas for n bodies.
func New(n int) (*Store, error) {
	if n <= 0 {
		return nil, &dynamo.ConfigError{Field: "num_bodies", Value: n, Reason: "must be positive"}
	}
	return &Store{
		sets: [2]dynamo.Buffer{dynamo.NewBuffer(0, n), dynamo.NewBuffer(1, n)},
	}, nil
}

// Len is the body count both arenas were allocated for.
func (s *Store) Len() int { return s.sets[0].Len() }

// Current returns the readable arena. The slices stay valid until the
// second Swap after this call; use Read when another goroutine steps.
func (s *Store) Current() dynamo.Buffer {
	return s.sets[s.cur.Load()]
}

// Next returns the arena the step in progress writes.
func (s *Store) Next() dynamo.Buffer {
	return s.sets[1-s.cur.Load()]
}

// Swap makes Next current. It waits for readers inside Read to finish.
func (s *Store) Swap() {
	s.mu.Lock()
	s.cur.Store(1 - s.cur.Load())
	s.swaps.Add(1)
	s.mu.Unlock()
}

// Swaps counts the hand-offs since allocation.
func (s *Store) Swaps() uint64 { return s.swaps.Load() }

// Read calls fn with the current arena and keeps Swap from running until fn
// returns. fn must not retain the buffer.
func (s *Store) Read(fn func(dynamo.Buffer)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.Current())
}

// Seed lets fn write initial state into the current arena and mirrors it
// into the other, so a halted simulation still shows the seeded bodies.
func (s *Store) Seed(fn func(dynamo.Buffer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.sets[s.cur.Load()]
	fn(cur)
	s.sets[1-s.cur.Load()].CopyFrom(cur)
}

// Snapshot copies the first k bodies of the current arena into dst, growing
// it when needed, and returns it. k <= 0 or k > Len copies every body.
func (s *Store) Snapshot(dst dynamo.Buffer, k int) dynamo.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.Current()
	if k <= 0 || k > cur.Len() {
		k = cur.Len()
	}
	if cap(dst.Positions) < k {
		dst = dynamo.NewBuffer(cur.Slot, k)
	}
	dst.Slot = cur.Slot
	dst.Positions = dst.Positions[:k]
	dst.Velocities = dst.Velocities[:k]
	copy(dst.Positions, cur.Positions[:k])
	copy(dst.Velocities, cur.Velocities[:k])
	return dst
}

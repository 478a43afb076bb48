package metagraph

import "sync"

// Guard serializes graph rebuilds against concurrent queries. Queries take
// the read side; a rebuild takes the write side and bumps the generation
// once the new graph is fully persisted, so a query can log which graph
// generation it observed.
type Guard struct {
	mu         sync.RWMutex
	generation uint64
}

// NewGuard returns a guard at generation zero.
func NewGuard() *Guard {
	return &Guard{}
}

// Read runs fn under the read lock with the current generation.
func (g *Guard) Read(fn func(generation uint64) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.generation)
}

// Rebuild runs fn under the write lock and bumps the generation when it
// succeeds. The returned generation is the one now visible to readers.
func (g *Guard) Rebuild(fn func() error) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := fn(); err != nil {
		return g.generation, err
	}
	g.generation++
	return g.generation, nil
}

// Generation returns the current graph generation.
func (g *Guard) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

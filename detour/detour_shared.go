package detour

import "sync"

// Shared guards a navmesh with one reader/writer lock. Every mutation of a
// shared navmesh goes through Write, so a multi-step change such as
// remove-then-insert is seen by readers as a single step.
type Shared struct {
	mu   sync.RWMutex
	mesh *DtNavMesh
}

func NewShared(mesh *DtNavMesh) *Shared {
	return &Shared{mesh: mesh}
}

// Read runs fn under the read lock. fn must not retain mesh.
func (s *Shared) Read(fn func(mesh *DtNavMesh)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.mesh)
}

// Write runs fn under the write lock and returns its error.
func (s *Shared) Write(fn func(mesh *DtNavMesh) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.mesh)
}

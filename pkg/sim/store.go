// Package sim is an in-process stand-in for the object store and the
// command line tools that talk to it (dmg, daos, dcp, ior, mdtest). It
// implements runner.Runner, so a scenario runs unchanged against either
// the real tools or the simulation.
package sim

import (
	"fmt"
	"path/filepath"
	"sync"

	"dmtest/pkg/types"
	"dmtest/pkg/uns"

	"github.com/google/uuid"
)

type simContainer struct {
	id     types.ContainerID
	nsPath string
	tree   *tree
}

type simPool struct {
	id         types.PoolID
	capacity   int64
	used       int64
	containers map[types.ContainerID]*simContainer
}

// Store holds pools, containers and namespace bindings.
type Store struct {
	mu       sync.Mutex
	pools    map[types.PoolID]*simPool
	bindings map[string]uns.Binding
}

func NewStore() *Store {
	return &Store{
		pools:    make(map[types.PoolID]*simPool),
		bindings: make(map[string]uns.Binding),
	}
}

func (s *Store) CreatePool(capacity int64) types.PoolID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := types.PoolID(uuid.NewString())
	s.pools[id] = &simPool{
		id:         id,
		capacity:   capacity,
		containers: make(map[types.ContainerID]*simContainer),
	}
	return id
}

func (s *Store) DestroyPool(id types.PoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[id]; !ok {
		return fmt.Errorf("pool %s does not exist", id)
	}
	for p, b := range s.bindings {
		if b.Pool == id {
			delete(s.bindings, p)
		}
	}
	delete(s.pools, id)
	return nil
}

func (s *Store) PoolCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools)
}

func (s *Store) HasPool(id types.PoolID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pools[id]
	return ok
}

// CreateContainer creates a container. An empty id gets a fresh one; a
// non-empty namespace path is bound to the new container.
func (s *Store) CreateContainer(poolID types.PoolID, id types.ContainerID, nsPath string) (types.ContainerID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return "", fmt.Errorf("pool %s does not exist", poolID)
	}
	if id == "" {
		id = types.ContainerID(uuid.NewString())
	} else if _, err := uuid.Parse(string(id)); err != nil {
		return "", fmt.Errorf("invalid container uuid %q", id)
	}
	if _, exists := p.containers[id]; exists {
		return "", fmt.Errorf("container %s already exists", id)
	}
	if nsPath != "" {
		nsPath = filepath.Clean(nsPath)
		if _, bound := s.bindings[nsPath]; bound {
			return "", fmt.Errorf("path %s is already bound to a container", nsPath)
		}
		s.bindings[nsPath] = uns.Binding{Type: uns.TypePOSIX, Pool: poolID, Container: id}
	}
	p.containers[id] = &simContainer{id: id, nsPath: nsPath, tree: newTree()}
	return id, nil
}

func (s *Store) DestroyContainer(poolID types.PoolID, id types.ContainerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return fmt.Errorf("pool %s does not exist", poolID)
	}
	c, ok := p.containers[id]
	if !ok {
		return fmt.Errorf("container %s does not exist", id)
	}
	if c.nsPath != "" {
		delete(s.bindings, c.nsPath)
	}
	p.used -= c.tree.bytes()
	delete(p.containers, id)
	return nil
}

func (s *Store) HasContainer(poolID types.PoolID, id types.ContainerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return false
	}
	_, ok = p.containers[id]
	return ok
}

// Binding returns the container bound to exactly the namespace path p.
func (s *Store) Binding(p string) (uns.Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[filepath.Clean(p)]
	return b, ok
}

// Used reports the bytes charged against a pool.
func (s *Store) Used(poolID types.PoolID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pools[poolID]; ok {
		return p.used
	}
	return 0
}

func (s *Store) containerFS(poolID types.PoolID, id types.ContainerID) (*contFS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("pool %s does not exist", poolID)
	}
	c, ok := p.containers[id]
	if !ok {
		return nil, fmt.Errorf("container %s does not exist in pool %s", id, poolID)
	}
	return &contFS{store: s, pool: p, cont: c}, nil
}

// ReadFile reads a file stored in a container.
func (s *Store) ReadFile(poolID types.PoolID, id types.ContainerID, p string) ([]byte, error) {
	cfs, err := s.containerFS(poolID, id)
	if err != nil {
		return nil, err
	}
	return cfs.ReadFile(p)
}

// Exists reports whether p exists inside a container.
func (s *Store) Exists(poolID types.PoolID, id types.ContainerID, p string) bool {
	cfs, err := s.containerFS(poolID, id)
	if err != nil {
		return false
	}
	_, err = cfs.Stat(p)
	return err == nil
}

// Corrupt flips one byte of a file stored in a container.
func (s *Store) Corrupt(poolID types.PoolID, id types.ContainerID, p string, offset int) error {
	cfs, err := s.containerFS(poolID, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	nd, ok := cfs.cont.tree.nodes[cleanPath(p)]
	if !ok || nd.dir {
		return fmt.Errorf("%s is not a file", p)
	}
	if offset < 0 || offset >= len(nd.data) {
		return fmt.Errorf("offset %d outside %s (%d bytes)", offset, p, len(nd.data))
	}
	nd.data[offset] ^= 0xff
	return nil
}

package sim

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var errNoSpace = errors.New("no space left in pool")

type entryInfo struct {
	dir  bool
	size int64
	mode os.FileMode
}

// fsys is the small filesystem surface the simulated tools need. It is
// implemented by the host filesystem and by container trees.
type fsys interface {
	Stat(p string) (entryInfo, error)
	ReadFile(p string) ([]byte, error)
	WriteFile(p string, data []byte, mode os.FileMode) error
	Mkdir(p string) error
	MkdirAll(p string) error
	ReadDir(p string) ([]string, error)
	Join(elem ...string) string
	Dir(p string) string
	Base(p string) string
}

// hostFS is the real POSIX filesystem.
type hostFS struct{}

func (hostFS) Stat(p string) (entryInfo, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return entryInfo{}, err
	}
	return entryInfo{dir: fi.IsDir(), size: fi.Size(), mode: fi.Mode().Perm()}, nil
}

func (hostFS) ReadFile(p string) ([]byte, error) { return os.ReadFile(p) }

func (hostFS) WriteFile(p string, data []byte, mode os.FileMode) error {
	return os.WriteFile(p, data, mode)
}

func (hostFS) Mkdir(p string) error    { return os.Mkdir(p, 0o755) }
func (hostFS) MkdirAll(p string) error { return os.MkdirAll(p, 0o755) }

func (hostFS) ReadDir(p string) ([]string, error) {
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (hostFS) Join(elem ...string) string { return filepath.Join(elem...) }
func (hostFS) Dir(p string) string        { return filepath.Dir(filepath.Clean(p)) }
func (hostFS) Base(p string) string       { return filepath.Base(filepath.Clean(p)) }

type node struct {
	dir  bool
	data []byte
	mode os.FileMode
}

// tree is an in-memory POSIX namespace stored in a container. Paths are
// slash separated and rooted at "/".
type tree struct {
	nodes map[string]*node
}

func newTree() *tree {
	return &tree{nodes: map[string]*node{"/": {dir: true, mode: 0o755}}}
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func (t *tree) bytes() int64 {
	var n int64
	for _, nd := range t.nodes {
		n += int64(len(nd.data))
	}
	return n
}

// contFS is a tree view charged against its pool's capacity. Callers
// hold the store lock.
type contFS struct {
	store *Store
	pool  *simPool
	cont  *simContainer
}

func notExist(op, p string) error {
	return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
}

func (c *contFS) Stat(p string) (entryInfo, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	nd, ok := c.cont.tree.nodes[cleanPath(p)]
	if !ok {
		return entryInfo{}, notExist("stat", p)
	}
	return entryInfo{dir: nd.dir, size: int64(len(nd.data)), mode: nd.mode}, nil
}

func (c *contFS) ReadFile(p string) ([]byte, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	nd, ok := c.cont.tree.nodes[cleanPath(p)]
	if !ok {
		return nil, notExist("open", p)
	}
	if nd.dir {
		return nil, fmt.Errorf("read %s: is a directory", p)
	}
	out := make([]byte, len(nd.data))
	copy(out, nd.data)
	return out, nil
}

func (c *contFS) WriteFile(p string, data []byte, mode os.FileMode) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	p = cleanPath(p)
	parent, ok := c.cont.tree.nodes[path.Dir(p)]
	if !ok || !parent.dir {
		return notExist("open", p)
	}

	var old int64
	if nd, ok := c.cont.tree.nodes[p]; ok {
		if nd.dir {
			return fmt.Errorf("open %s: is a directory", p)
		}
		old = int64(len(nd.data))
	}
	grow := int64(len(data)) - old
	if c.pool.capacity > 0 && c.pool.used+grow > c.pool.capacity {
		return fmt.Errorf("write %s: %w", p, errNoSpace)
	}
	c.pool.used += grow

	buf := make([]byte, len(data))
	copy(buf, data)
	c.cont.tree.nodes[p] = &node{data: buf, mode: mode}
	return nil
}

func (c *contFS) Mkdir(p string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.mkdirLocked(cleanPath(p))
}

func (c *contFS) mkdirLocked(p string) error {
	if _, ok := c.cont.tree.nodes[p]; ok {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	parent, ok := c.cont.tree.nodes[path.Dir(p)]
	if !ok || !parent.dir {
		return notExist("mkdir", p)
	}
	c.cont.tree.nodes[p] = &node{dir: true, mode: 0o755}
	return nil
}

func (c *contFS) MkdirAll(p string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	p = cleanPath(p)
	if p == "/" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		cur += "/" + part
		if nd, ok := c.cont.tree.nodes[cur]; ok {
			if !nd.dir {
				return fmt.Errorf("mkdir %s: not a directory", cur)
			}
			continue
		}
		if err := c.mkdirLocked(cur); err != nil {
			return err
		}
	}
	return nil
}

func (c *contFS) ReadDir(p string) ([]string, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	p = cleanPath(p)
	nd, ok := c.cont.tree.nodes[p]
	if !ok {
		return nil, notExist("readdir", p)
	}
	if !nd.dir {
		return nil, fmt.Errorf("readdir %s: not a directory", p)
	}
	var names []string
	for k := range c.cont.tree.nodes {
		if k != "/" && path.Dir(k) == p {
			names = append(names, path.Base(k))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *contFS) Join(elem ...string) string { return path.Join(elem...) }
func (c *contFS) Dir(p string) string        { return path.Dir(cleanPath(p)) }
func (c *contFS) Base(p string) string       { return path.Base(cleanPath(p)) }

// copyTree copies src into dst, where dst does not exist yet (or is an
// existing directory when src is a directory and contentsOnly is set).
func copyTree(sfs fsys, src string, dfs fsys, dst string, contentsOnly bool) error {
	info, err := sfs.Stat(src)
	if err != nil {
		return err
	}

	if !info.dir {
		data, err := sfs.ReadFile(src)
		if err != nil {
			return err
		}
		return dfs.WriteFile(dst, data, info.mode)
	}

	if !contentsOnly {
		if err := dfs.Mkdir(dst); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	names, err := sfs.ReadDir(src)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := copyTree(sfs, sfs.Join(src, name), dfs, dfs.Join(dst, name), false); err != nil {
			return err
		}
	}
	return nil
}

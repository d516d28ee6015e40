package resolver

import (
	"path/filepath"
	"strings"

	"dmtest/pkg/types"
)

// Resolver turns identifiers and paths into locators. It never checks
// whether a pool, container, or path exists; rejecting a bad locator is
// the copy tool's job.
type Resolver struct {
	mountRoot string
}

func New(mountRoot string) *Resolver {
	if mountRoot != "" {
		mountRoot = filepath.Clean(mountRoot)
	}
	return &Resolver{mountRoot: mountRoot}
}

func (r *Resolver) MountRoot() string {
	return r.mountRoot
}

// Resolve picks the addressing form for an endpoint:
//   - pool and container both set: identifier locator (path defaults to "/")
//   - a path under the mount root: namespace locator
//   - anything else: POSIX locator
func (r *Resolver) Resolve(pool types.PoolID, cont types.ContainerID, p string) types.Locator {
	if pool != "" && cont != "" {
		return Identifier(pool, cont, p)
	}
	if r.UnderMountRoot(p) {
		return Namespace(p)
	}
	return Posix(p)
}

// UnderMountRoot reports whether p sits below the mount root, comparing
// whole path segments.
func (r *Resolver) UnderMountRoot(p string) bool {
	if r.mountRoot == "" || p == "" {
		return false
	}
	return HasPathPrefix(p, r.mountRoot)
}

func Identifier(pool types.PoolID, cont types.ContainerID, p string) types.Locator {
	if p == "" {
		p = "/"
	}
	return types.Locator{Kind: types.LocatorIdentifier, Pool: pool, Container: cont, Path: p}
}

func Namespace(p string) types.Locator {
	return types.Locator{Kind: types.LocatorNamespace, Path: p}
}

func Posix(p string) types.Locator {
	return types.Locator{Kind: types.LocatorPosix, Path: p}
}

// HasPathPrefix reports whether prefix is a leading sequence of whole
// path segments of p. "/oops/a/b" does not have prefix "/a/b", and
// "/a/bc" does not have prefix "/a/b".
func HasPathPrefix(p, prefix string) bool {
	if p == "" || prefix == "" {
		return false
	}
	p = filepath.Clean(p)
	prefix = filepath.Clean(prefix)
	if p == prefix {
		return true
	}
	if prefix == string(filepath.Separator) {
		return filepath.IsAbs(p)
	}
	return strings.HasPrefix(p, prefix+string(filepath.Separator))
}

// TrimPathPrefix returns p relative to prefix as a rooted path, and
// false when prefix is not a path prefix of p.
func TrimPathPrefix(p, prefix string) (string, bool) {
	if !HasPathPrefix(p, prefix) {
		return "", false
	}
	rel, err := filepath.Rel(filepath.Clean(prefix), filepath.Clean(p))
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "/", true
	}
	return "/" + filepath.ToSlash(rel), true
}

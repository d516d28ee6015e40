// Package mount prepares the namespace root: it checks that the
// directory namespace paths are created under is usable, and can serve
// a backing directory there through a loopback FUSE filesystem.
package mount

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
	mountutils "k8s.io/mount-utils"
)

var ErrNotMounted = errors.New("not a mount point")

// Checker is the part of a mounter used to detect mount points.
type Checker interface {
	IsLikelyNotMountPoint(file string) (bool, error)
}

// NewChecker returns the host's mounter.
func NewChecker() Checker {
	return mountutils.New("")
}

// CheckRoot verifies root is an existing directory, and a mount point
// when requireMount is set.
func CheckRoot(c Checker, root string, requireMount bool) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("namespace root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("namespace root %s is not a directory", root)
	}
	if !requireMount {
		return nil
	}

	notMnt, err := c.IsLikelyNotMountPoint(root)
	if err != nil {
		return fmt.Errorf("failed to check mount point %s: %w", root, err)
	}
	if notMnt {
		return fmt.Errorf("namespace root %s: %w", root, ErrNotMounted)
	}
	return nil
}

// Loopback serves a backing directory at a mount point.
type Loopback struct {
	server  *fuse.Server
	dir     string
	backing string
	logger  *zap.Logger
}

type Options struct {
	Debug bool
	// Timeout applies to both attribute and entry caching. Zero keeps
	// the kernel from caching, so writes through the backing directory
	// are visible at once.
	Timeout time.Duration
}

// MountLoopback mounts backing at dir. It returns once the kernel has
// the mount.
func MountLoopback(backing, dir string, opts Options, logger *zap.Logger) (*Loopback, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mount point: %w", err)
	}

	root, err := fs.NewLoopbackRoot(backing)
	if err != nil {
		return nil, fmt.Errorf("failed to open backing directory %s: %w", backing, err)
	}

	timeout := opts.Timeout
	server, err := fs.Mount(dir, root, &fs.Options{
		AttrTimeout:  &timeout,
		EntryTimeout: &timeout,
		MountOptions: fuse.MountOptions{
			FsName: backing,
			Name:   "dmtest",
			Debug:  opts.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mount %s at %s: %w", backing, dir, err)
	}
	logger.Info("Mounted namespace root",
		zap.String("backing", backing),
		zap.String("mountpoint", dir))
	return &Loopback{server: server, dir: dir, backing: backing, logger: logger}, nil
}

func (l *Loopback) Dir() string {
	return l.dir
}

// Wait blocks until the filesystem is unmounted.
func (l *Loopback) Wait() {
	l.server.Wait()
}

func (l *Loopback) Unmount() error {
	if err := l.server.Unmount(); err != nil {
		return fmt.Errorf("failed to unmount %s: %w", l.dir, err)
	}
	l.logger.Info("Unmounted namespace root", zap.String("mountpoint", l.dir))
	return nil
}

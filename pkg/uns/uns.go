// Package uns reads and writes namespace-path bindings. A namespace
// path is a directory carrying an extended attribute that names the
// pool and container it stands for.
package uns

import (
	"errors"
	"fmt"
	"strings"

	"dmtest/pkg/types"

	"github.com/google/uuid"
	"github.com/pkg/xattr"
	"golang.org/x/sys/unix"
)

const (
	// Attr is the extended attribute holding the binding.
	Attr = "user.daos"

	TypePOSIX = "POSIX"
	TypeHDF5  = "HDF5"

	scheme = "DAOS."
)

var ErrNotBound = errors.New("path is not a namespace path")

type Binding struct {
	Type      string
	Pool      types.PoolID
	Container types.ContainerID
}

// String formats the attribute value, e.g. DAOS.POSIX://<pool>/<cont>.
func (b Binding) String() string {
	t := b.Type
	if t == "" {
		t = TypePOSIX
	}
	return fmt.Sprintf("%s%s://%s/%s", scheme, t, b.Pool, b.Container)
}

func Parse(value string) (Binding, error) {
	value = strings.TrimRight(value, "\x00")
	if !strings.HasPrefix(value, scheme) {
		return Binding{}, fmt.Errorf("invalid binding %q: missing %s prefix", value, scheme)
	}
	rest := strings.TrimPrefix(value, scheme)

	t, ids, ok := strings.Cut(rest, "://")
	if !ok || t == "" {
		return Binding{}, fmt.Errorf("invalid binding %q: missing type", value)
	}
	pool, cont, ok := strings.Cut(ids, "/")
	if !ok {
		return Binding{}, fmt.Errorf("invalid binding %q: expected pool/container", value)
	}
	if _, err := uuid.Parse(pool); err != nil {
		return Binding{}, fmt.Errorf("invalid binding %q: bad pool uuid: %w", value, err)
	}
	if _, err := uuid.Parse(cont); err != nil {
		return Binding{}, fmt.Errorf("invalid binding %q: bad container uuid: %w", value, err)
	}

	return Binding{Type: t, Pool: types.PoolID(pool), Container: types.ContainerID(cont)}, nil
}

// Read returns the binding stored on path, or ErrNotBound when the
// attribute is absent.
func Read(path string) (Binding, error) {
	data, err := xattr.Get(path, Attr)
	if err != nil {
		if isNoAttr(err) {
			return Binding{}, fmt.Errorf("%s: %w", path, ErrNotBound)
		}
		return Binding{}, fmt.Errorf("failed to read %s on %s: %w", Attr, path, err)
	}
	return Parse(string(data))
}

func Write(path string, b Binding) error {
	if err := xattr.Set(path, Attr, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to bind %s: %w", path, err)
	}
	return nil
}

func Remove(path string) error {
	if err := xattr.Remove(path, Attr); err != nil && !isNoAttr(err) {
		return fmt.Errorf("failed to unbind %s: %w", path, err)
	}
	return nil
}

// IsNotSupported reports whether err comes from a filesystem without
// user extended attributes.
func IsNotSupported(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}

func isNoAttr(err error) bool {
	var xerr *xattr.Error
	if errors.As(err, &xerr) {
		return errors.Is(xerr.Err, xattr.ENOATTR)
	}
	return errors.Is(err, xattr.ENOATTR)
}

package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"dmtest/pkg/command"
	"dmtest/pkg/resolver"
	"dmtest/pkg/types"
	"dmtest/pkg/uns"
)

// endpoint is one resolved side of a copy.
type endpoint struct {
	posix     bool
	pool      types.PoolID
	cont      types.ContainerID
	path      string
	viaPrefix bool
}

func (e endpoint) String() string {
	if e.posix {
		return e.path
	}
	return fmt.Sprintf("%s/%s:%s", e.pool, e.cont, e.path)
}

func (e endpoint) same(o endpoint) bool {
	if e.posix != o.posix {
		return false
	}
	if e.posix {
		return filepath.Clean(e.path) == filepath.Clean(o.path)
	}
	return e.pool == o.pool && e.cont == o.cont && cleanPath(e.path) == cleanPath(o.path)
}

func (e endpoint) isContainerRoot() bool {
	return !e.posix && cleanPath(e.path) == "/"
}

// dcp copies between POSIX paths and containers. Each side is
// resolved, in order, through the prefix hint, explicit identifiers,
// an exact namespace path, and finally as a POSIX path.
func (r *Runner) dcp(_ context.Context, _ int, args []string, stdout io.Writer) error {
	flags := newFlagSet("dcp")
	prefix := flags.String(trimDashes(command.FlagPrefix), "", "")
	srcPool := flags.String(trimDashes(command.FlagSrcPool), "", "")
	dstPool := flags.String(trimDashes(command.FlagDstPool), "", "")
	srcCont := flags.String(trimDashes(command.FlagSrcCont), "", "")
	dstCont := flags.String(trimDashes(command.FlagDstCont), "", "")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return fmt.Errorf("expected source and destination, got %d paths", flags.NArg())
	}
	srcArg, dstArg := flags.Arg(0), flags.Arg(1)

	var prefixBinding *uns.Binding
	if *prefix != "" {
		b, ok := r.store.Binding(*prefix)
		if !ok {
			return fmt.Errorf("prefix %s is not a namespace path", *prefix)
		}
		prefixBinding = &b
	}

	src, err := r.resolveEndpoint("source", srcArg, *srcPool, *srcCont, *prefix, prefixBinding)
	if err != nil {
		return err
	}
	dst, err := r.resolveEndpoint("destination", dstArg, *dstPool, *dstCont, *prefix, prefixBinding)
	if err != nil {
		return err
	}
	if prefixBinding != nil && !src.viaPrefix && !dst.viaPrefix {
		return fmt.Errorf("prefix %s does not match source or destination", *prefix)
	}

	if src.same(dst) {
		return fmt.Errorf("source and destination are the same: %s", src)
	}

	if !src.posix {
		if !r.store.HasPool(src.pool) {
			return fmt.Errorf("source pool %s does not exist", src.pool)
		}
		if !r.store.HasContainer(src.pool, src.cont) {
			return fmt.Errorf("source container %s does not exist in pool %s", src.cont, src.pool)
		}
	}

	createDst := false
	if !dst.posix {
		if !r.store.HasPool(dst.pool) {
			return fmt.Errorf("destination pool %s does not exist", dst.pool)
		}
		if !r.store.HasContainer(dst.pool, dst.cont) {
			// A missing destination container is only created for a
			// POSIX source or a source in the same pool.
			if !src.posix && src.pool != dst.pool {
				return fmt.Errorf("destination container %s does not exist in pool %s", dst.cont, dst.pool)
			}
			createDst = true
		}
	}

	sfs, err := r.fsFor(src)
	if err != nil {
		return err
	}
	srcInfo, err := sfs.Stat(src.path)
	if err != nil {
		return fmt.Errorf("source path %s does not exist", src.path)
	}

	if createDst {
		if _, err := r.store.CreateContainer(dst.pool, dst.cont, ""); err != nil {
			return fmt.Errorf("failed to create destination container: %w", err)
		}
		fmt.Fprintf(stdout, "Created destination container %s\n", dst.cont)
	}
	dfs, err := r.fsFor(dst)
	if err != nil {
		return err
	}

	target, contentsOnly, err := destinationPath(src, srcInfo, dst, dfs)
	if err != nil {
		return err
	}
	if err := copyTree(sfs, src.path, dfs, target, contentsOnly); err != nil {
		return fmt.Errorf("copy failed: %w", err)
	}

	_, err = fmt.Fprintf(stdout, "Copied %s to %s\n", src, target)
	return err
}

func (r *Runner) resolveEndpoint(side, arg, pool, cont, prefix string, prefixBinding *uns.Binding) (endpoint, error) {
	if prefixBinding != nil {
		if rel, ok := resolver.TrimPathPrefix(arg, prefix); ok {
			return endpoint{pool: prefixBinding.Pool, cont: prefixBinding.Container, path: rel, viaPrefix: true}, nil
		}
	}
	if pool != "" || cont != "" {
		if pool == "" || cont == "" {
			return endpoint{}, fmt.Errorf("%s needs both a pool and a container", side)
		}
		return endpoint{pool: types.PoolID(pool), cont: types.ContainerID(cont), path: cleanPath(arg)}, nil
	}
	if b, ok := r.store.Binding(arg); ok {
		return endpoint{pool: b.Pool, cont: b.Container, path: "/"}, nil
	}
	return endpoint{posix: true, path: arg}, nil
}

func (r *Runner) fsFor(e endpoint) (fsys, error) {
	if e.posix {
		return hostFS{}, nil
	}
	return r.store.containerFS(e.pool, e.cont)
}

// destinationPath follows cp -r: a container root copies its contents,
// an existing destination directory receives the source by name, and
// otherwise the destination is created if its parent exists.
func destinationPath(src endpoint, srcInfo entryInfo, dst endpoint, dfs fsys) (string, bool, error) {
	info, err := dfs.Stat(dst.path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}

	if src.isContainerRoot() && srcInfo.dir {
		if exists {
			if !info.dir {
				return "", false, fmt.Errorf("destination %s is not a directory", dst.path)
			}
			return dst.path, true, nil
		}
	} else if exists && info.dir {
		return dfs.Join(dst.path, filepath.Base(filepath.Clean(src.path))), false, nil
	}

	if exists {
		return dst.path, false, nil
	}
	parent, err := dfs.Stat(dfs.Dir(dst.path))
	if err != nil || !parent.dir {
		return "", false, fmt.Errorf("destination path %s does not exist", dfs.Dir(dst.path))
	}
	return dst.path, false, nil
}

func trimDashes(flag string) string {
	for len(flag) > 0 && flag[0] == '-' {
		flag = flag[1:]
	}
	return flag
}

package scenario

import (
	"context"
	"path/filepath"

	"dmtest/pkg/resolver"
	"dmtest/pkg/types"
)

// copyWithUUID copies by pool and container identifiers: container to
// container, container to POSIX, and POSIX to container.
func (s *Suite) copyWithUUID(ctx context.Context, st *state) error {
	if err := st.sc.MakeDirs(st.tmp); err != nil {
		return err
	}
	pools, err := st.pools(ctx, 1)
	if err != nil {
		return err
	}
	pool := pools[0]

	conts := make([]*types.Container, 3)
	for i := range conts {
		if conts[i], err = st.sc.CreateContainer(ctx, pool, ""); err != nil {
			return err
		}
	}

	spec := s.params.Ior
	daosFile := s.daosTestFile()
	posixFile := filepath.Join(st.tmp, s.testFileName())

	if err := s.write(ctx, st, resolver.Identifier(pool.ID, conts[0].ID, daosFile), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uuid to uuid",
		types.CopyRequest{
			Source:      st.resolver.Resolve(pool.ID, conts[0].ID, "/"),
			Destination: st.resolver.Resolve(pool.ID, conts[1].ID, "/"),
		},
		resolver.Identifier(pool.ID, conts[1].ID, daosFile), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uuid to posix",
		types.CopyRequest{
			Source:      st.resolver.Resolve(pool.ID, conts[0].ID, "/"),
			Destination: st.resolver.Resolve("", "", st.tmp),
		},
		resolver.Posix(posixFile), spec); err != nil {
		return err
	}

	return s.copyAndVerify(ctx, st, "posix to uuid",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", posixFile),
			Destination: st.resolver.Resolve(pool.ID, conts[2].ID, "/"),
		},
		resolver.Identifier(pool.ID, conts[2].ID, daosFile), spec)
}

// copyWithUNS is copyWithUUID addressed through namespace paths.
func (s *Suite) copyWithUNS(ctx context.Context, st *state) error {
	if err := st.sc.MakeDirs(st.tmp, st.unsDir); err != nil {
		return err
	}
	pools, err := st.pools(ctx, 1)
	if err != nil {
		return err
	}
	pool := pools[0]

	paths := []string{
		filepath.Join(st.unsDir, "uns1"),
		filepath.Join(st.unsDir, "uns2"),
		filepath.Join(st.unsDir, "uns3"),
	}
	conts := make([]*types.Container, len(paths))
	for i, p := range paths {
		if conts[i], err = st.sc.CreateContainer(ctx, pool, p); err != nil {
			return err
		}
	}

	spec := s.params.Ior
	daosFile := s.daosTestFile()
	posixFile := filepath.Join(st.tmp, s.testFileName())

	if err := s.write(ctx, st, resolver.Identifier(pool.ID, conts[0].ID, daosFile), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uns to uns",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", paths[0]),
			Destination: st.resolver.Resolve("", "", paths[1]),
		},
		resolver.Identifier(pool.ID, conts[1].ID, daosFile), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uns to posix",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", paths[0]),
			Destination: st.resolver.Resolve("", "", st.tmp),
		},
		resolver.Posix(posixFile), spec); err != nil {
		return err
	}

	return s.copyAndVerify(ctx, st, "posix to uns",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", posixFile),
			Destination: st.resolver.Resolve("", "", paths[2]),
		},
		resolver.Identifier(pool.ID, conts[2].ID, daosFile), spec)
}

// copyWithUUIDUNS mixes the two forms: identifiers to a namespace path
// and back.
func (s *Suite) copyWithUUIDUNS(ctx context.Context, st *state) error {
	if err := st.sc.MakeDirs(st.unsDir); err != nil {
		return err
	}
	pools, err := st.pools(ctx, 1)
	if err != nil {
		return err
	}
	pool := pools[0]

	uns2 := filepath.Join(st.unsDir, "uns2")
	cont1, err := st.sc.CreateContainer(ctx, pool, "")
	if err != nil {
		return err
	}
	cont2, err := st.sc.CreateContainer(ctx, pool, uns2)
	if err != nil {
		return err
	}
	cont3, err := st.sc.CreateContainer(ctx, pool, "")
	if err != nil {
		return err
	}

	spec := s.params.Ior
	daosFile := s.daosTestFile()

	if err := s.write(ctx, st, resolver.Identifier(pool.ID, cont1.ID, daosFile), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uuid to uns",
		types.CopyRequest{
			Source:      st.resolver.Resolve(pool.ID, cont1.ID, "/"),
			Destination: st.resolver.Resolve("", "", uns2),
		},
		resolver.Identifier(pool.ID, cont2.ID, daosFile), spec); err != nil {
		return err
	}

	return s.copyAndVerify(ctx, st, "uns to uuid",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", uns2),
			Destination: st.resolver.Resolve(pool.ID, cont3.ID, "/"),
		},
		resolver.Identifier(pool.ID, cont3.ID, daosFile), spec)
}

// copySubsets copies one directory of a container, named through its
// namespace path plus a prefix hint, to another container and to POSIX.
func (s *Suite) copySubsets(ctx context.Context, st *state) error {
	posixDir := filepath.Join(st.tmp, "posix_test")
	if err := st.sc.MakeDirs(st.tmp, st.unsDir, posixDir); err != nil {
		return err
	}
	pools, err := st.pools(ctx, 1)
	if err != nil {
		return err
	}
	pool := pools[0]

	uns1 := filepath.Join(st.unsDir, "uns1")
	cont1, err := st.sc.CreateContainer(ctx, pool, uns1)
	if err != nil {
		return err
	}
	cont2, err := st.sc.CreateContainer(ctx, pool, "")
	if err != nil {
		return err
	}

	const daosPath1 = "/test1"
	cont1Path1 := filepath.Join(uns1, "test1")
	cont1Path2 := filepath.Join(uns1, "test2")
	posixPath1 := filepath.Join(posixDir, "test1")
	spec := s.params.Mdtest

	if err := s.write(ctx, st, resolver.Identifier(pool.ID, cont1.ID, daosPath1), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uns subset to uuid",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", cont1Path1),
			Destination: st.resolver.Resolve(pool.ID, cont2.ID, "/"),
			Prefix:      uns1,
		},
		resolver.Identifier(pool.ID, cont2.ID, daosPath1), spec); err != nil {
		return err
	}

	if err := s.copyAndVerify(ctx, st, "uns subset to posix",
		types.CopyRequest{
			Source:      st.resolver.Resolve("", "", cont1Path1),
			Destination: st.resolver.Resolve("", "", posixPath1),
			Prefix:      uns1,
		},
		resolver.Posix(posixPath1), spec); err != nil {
		return err
	}

	// Copying back into a new directory under the same namespace path is
	// not yet reliable in the copy tool.
	st.pending("posix to uns subset", "copy into "+cont1Path2+" with prefix "+uns1+" is not yet supported")
	return nil
}

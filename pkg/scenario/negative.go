package scenario

import (
	"context"
	"path/filepath"

	"dmtest/pkg/negative"
	"dmtest/pkg/resolver"
)

// negativeTable builds two pools, a namespace-bound container in the first
// and a plain one in the second, seeds a POSIX and a container test
// file, then runs the negative table against them.
func (s *Suite) negativeTable(ctx context.Context, st *state) error {
	posixTestPath := filepath.Join(st.tmp, "posix_test")
	posixTestPath2 := filepath.Join(st.tmp, "posix_test2")
	if err := st.sc.MakeDirs(st.tmp, st.unsDir, posixTestPath, posixTestPath2); err != nil {
		return err
	}

	pools, err := st.pools(ctx, 2)
	if err != nil {
		return err
	}

	uns1 := filepath.Join(st.unsDir, "uns1")
	cont1, err := st.sc.CreateContainer(ctx, pools[0], uns1)
	if err != nil {
		return err
	}
	cont2, err := st.sc.CreateContainer(ctx, pools[1], "")
	if err != nil {
		return err
	}

	env := &negative.Env{
		Pool1:         pools[0],
		Pool2:         pools[1],
		Cont1:         cont1,
		Cont2:         cont2,
		UNSDir:        st.unsDir,
		UNS1:          uns1,
		TmpDir:        st.tmp,
		PosixTestFile: filepath.Join(posixTestPath, s.testFileName()),
		DaosTestFile:  s.daosTestFile(),
	}

	spec := s.params.Ior
	if err := s.write(ctx, st, resolver.Posix(env.PosixTestFile), spec); err != nil {
		return err
	}
	if err := s.write(ctx, st, resolver.Identifier(pools[0].ID, cont1.ID, env.DaosTestFile), spec); err != nil {
		return err
	}

	engine := negative.NewEngine(s.runner, s.builder, s.logger)
	verdicts, err := engine.Run(ctx, env, negative.Table())
	st.result.Verdicts = verdicts
	return err
}

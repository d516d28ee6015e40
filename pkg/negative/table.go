package negative

import (
	"path/filepath"

	"dmtest/pkg/resolver"
	"dmtest/pkg/types"
)

type Expectation int

const (
	ExpectFailure Expectation = iota
	ExpectSuccess
)

func (e Expectation) String() string {
	if e == ExpectSuccess {
		return "success"
	}
	return "failure"
}

// Env is what case builders need from the scenario: two pools, a
// container bound to a namespace path, and the test files written
// before the table runs.
type Env struct {
	Pool1 *types.Pool
	Pool2 *types.Pool
	// Cont1 lives in Pool1 and is bound to UNS1.
	Cont1 *types.Container
	Cont2 *types.Container

	UNSDir string
	UNS1   string
	TmpDir string

	PosixTestFile string
	DaosTestFile  string
}

// Case is one documented invalid condition. A case with a Pending
// reason stays in the table but is never executed.
type Case struct {
	ID        string
	Condition string
	Expect    Expectation
	Pending   string
	Request   func(env *Env) types.CopyRequest
}

func (c Case) IsPending() bool {
	return c.Pending != ""
}

const fakePath = "/fake/fake/fake"

// Table returns the copy tool's negative cases in their documented order.
func Table() []Case {
	return []Case{
		{
			ID:        "1.1",
			Condition: "source identifiers equal destination identifiers",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Identifier(env.Pool1.ID, env.Cont1.ID, "/"),
					Destination: resolver.Identifier(env.Pool1.ID, env.Cont1.ID, "/"),
				}
			},
		},
		{
			ID:        "1.2",
			Condition: "source namespace path equals destination namespace path",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Namespace(env.UNS1),
					Destination: resolver.Namespace(env.UNS1),
				}
			},
		},
		{
			ID:        "2.1",
			Condition: "prefix is not a namespace path",
			Request: func(env *Env) types.CopyRequest {
				fakeuns := filepath.Join(env.UNSDir, "fakeuns")
				return types.CopyRequest{
					Source:      resolver.Namespace(filepath.Join(fakeuns, "fakefile")),
					Destination: resolver.Posix(env.TmpDir),
					Prefix:      fakeuns,
				}
			},
		},
		{
			ID:        "2.2",
			Condition: "prefix is a namespace path unrelated to source and destination",
			Request: func(env *Env) types.CopyRequest {
				fakeuns := filepath.Join(env.UNSDir, "fakeuns")
				return types.CopyRequest{
					Source:      resolver.Namespace(filepath.Join(fakeuns, "fakefile")),
					Destination: resolver.Posix(env.TmpDir),
					Prefix:      env.UNS1,
				}
			},
		},
		{
			ID:        "2.3",
			Condition: "prefix is a substring but not a path prefix of the source",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix("/oops" + env.UNS1),
					Destination: resolver.Posix(env.TmpDir),
					Prefix:      env.UNS1,
				}
			},
		},
		{
			ID:        "2.4",
			Condition: "prefix is a substring but not a path prefix of the destination",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.TmpDir),
					Destination: resolver.Posix("/oops" + env.UNS1),
					Prefix:      env.UNS1,
				}
			},
		},
		{
			ID:        "2.7",
			Condition: "prefix is not a namespace path but is a POSIX prefix of the source",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.PosixTestFile),
					Destination: resolver.Posix(env.DaosTestFile),
					Prefix:      filepath.Dir(env.PosixTestFile),
				}
			},
		},
		{
			ID:        "2.8",
			Condition: "prefix is not a namespace path but is a POSIX prefix of the destination",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.DaosTestFile),
					Destination: resolver.Posix(env.PosixTestFile),
					Prefix:      filepath.Dir(env.PosixTestFile),
				}
			},
		},
		{
			ID:        "3.1",
			Condition: "source pool does not exist",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.DaosTestFile),
					Destination: resolver.Posix(env.PosixTestFile),
					Overrides: types.Overrides{
						SrcPool: types.PoolID(env.Cont1.ID),
						SrcCont: env.Cont1.ID,
					},
				}
			},
		},
		{
			ID:        "3.2",
			Condition: "source pool exists, source container does not",
			Pending:   "tool result is inconsistent for a missing source container",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.DaosTestFile),
					Destination: resolver.Posix(env.PosixTestFile),
					Overrides: types.Overrides{
						SrcPool: env.Pool1.ID,
						SrcCont: types.ContainerID(env.Pool1.ID),
					},
				}
			},
		},
		{
			ID:        "3.3",
			Condition: "destination pool does not exist",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.PosixTestFile),
					Destination: resolver.Posix(env.DaosTestFile),
					Overrides: types.Overrides{
						DstPool: types.PoolID(env.Cont1.ID),
						DstCont: env.Cont1.ID,
					},
				}
			},
		},
		{
			ID:        "3.4",
			Condition: "destination pool exists, destination container does not, pools differ",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Identifier(env.Pool1.ID, env.Cont1.ID, env.DaosTestFile),
					Destination: resolver.Posix(env.DaosTestFile),
					Overrides: types.Overrides{
						DstPool: env.Pool2.ID,
						DstCont: types.ContainerID(env.Pool2.ID),
					},
				}
			},
		},
		{
			ID:        "3.5",
			Condition: "source identifiers valid, source path does not exist",
			Pending:   "tool accepts a missing source path; behavior unconfirmed",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Identifier(env.Pool1.ID, env.Cont1.ID, fakePath),
					Destination: resolver.Posix(env.PosixTestFile),
				}
			},
		},
		{
			ID:        "3.6",
			Condition: "destination identifiers valid, destination path does not exist",
			Pending:   "blocked on 3.5",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(env.PosixTestFile),
					Destination: resolver.Identifier(env.Pool1.ID, env.Cont1.ID, fakePath),
				}
			},
		},
		{
			ID:        "3.7",
			Condition: "source POSIX path does not exist",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Posix(fakePath),
					Destination: resolver.Identifier(env.Pool1.ID, env.Cont1.ID, env.DaosTestFile),
				}
			},
		},
		{
			ID:        "3.8",
			Condition: "destination POSIX path does not exist",
			Request: func(env *Env) types.CopyRequest {
				return types.CopyRequest{
					Source:      resolver.Identifier(env.Pool1.ID, env.Cont1.ID, env.DaosTestFile),
					Destination: resolver.Posix(fakePath),
				}
			},
		},
		{
			ID:        "E.1",
			Condition: "destination path length is too long",
			Pending:   "not implemented",
		},
		{
			ID:        "E.2",
			Condition: "destination pool out of space",
			Pending:   "needs a pool sized below the large block size",
		},
		{
			ID:        "E.3",
			Condition: "destination POSIX filesystem out of space",
			Pending:   "not implemented",
		},
	}
}

// Lookup returns the case with the given id.
func Lookup(id string) (Case, bool) {
	for _, c := range Table() {
		if c.ID == id {
			return c, true
		}
	}
	return Case{}, false
}

package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"dmtest/pkg/command"
	"dmtest/pkg/fixture"
	"dmtest/pkg/negative"
	"dmtest/pkg/runner"
	"dmtest/pkg/sim"
	"dmtest/pkg/types"
	"dmtest/pkg/workload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testParams(t *testing.T) Params {
	t.Helper()
	root := t.TempDir()
	return Params{
		Tmp:           filepath.Join(root, "tmp"),
		UNSDir:        filepath.Join(root, "uns"),
		TestFile:      "/testFile",
		PoolSize:      1 << 30,
		ContainerType: "POSIX",
		Ior: workload.Spec{
			Kind:         workload.KindIor,
			WriteFlags:   []string{"-v", "-w", "-k"},
			ReadFlags:    []string{"-v", "-r", "-R"},
			BlockSize:    "4K",
			TransferSize: "1K",
		},
		Mdtest: workload.Spec{
			Kind:       workload.KindMdtest,
			WriteFlags: []string{"-C"},
			ReadFlags:  []string{"-E", "-X"},
			Items:      3,
			Bytes:      1024,
		},
	}
}

func testBuilder() *command.Builder {
	tools := command.DefaultTools()
	tools.WorkloadProcs = 2
	return command.NewBuilder(tools)
}

func newSimSuite(t *testing.T, wrap func(*sim.Runner) runner.Runner) (*Suite, *sim.Store, Params) {
	t.Helper()
	store := sim.NewStore()
	sr := sim.NewRunner(store, zap.NewNop())
	var r runner.Runner = sr
	if wrap != nil {
		r = wrap(sr)
	}
	params := testParams(t)
	return NewSuite(r, testBuilder(), zap.NewNop(), params), store, params
}

// intercept lets a test replace the outcome of selected invocations.
type intercept struct {
	next runner.Runner
	fn   func(ctx context.Context, inv command.Invocation) (types.Outcome, bool)
}

func (i *intercept) Run(ctx context.Context, inv command.Invocation) (types.Outcome, error) {
	if out, ok := i.fn(ctx, inv); ok {
		return out, nil
	}
	return i.next.Run(ctx, inv)
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestScenariosPassOnSimulator(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			suite, store, params := newSimSuite(t, nil)

			res, err := suite.Run(context.Background(), name)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.True(t, res.OK())

			for _, step := range res.Steps {
				assert.NotEqual(t, StepFailed, step.Status, "%s: %s", step.Name, step.Reason)
			}

			// Teardown released everything the scenario made.
			assert.Zero(t, store.PoolCount())
			assert.NoDirExists(t, filepath.Join(params.Tmp, name))
			assert.NoDirExists(t, filepath.Join(params.UNSDir, name))
		})
	}
}

func TestNegativeScenarioRoundTrip(t *testing.T) {
	suite, _, _ := newSimSuite(t, nil)

	res, err := suite.Run(context.Background(), NameNegative)
	require.NoError(t, err)

	table := negative.Table()
	require.Len(t, res.Verdicts, len(table))
	for i, v := range res.Verdicts {
		c := table[i]
		assert.Equal(t, c.ID, v.CaseID)
		if c.IsPending() {
			assert.Equal(t, negative.StatusPending, v.Status, c.ID)
			assert.Empty(t, v.Command, c.ID)
			continue
		}
		assert.Equal(t, negative.StatusExpectedFailure, v.Status, c.ID)
		assert.NotEmpty(t, v.Reason, c.ID)
		assert.Contains(t, v.Command, "dcp", c.ID)
	}
}

func TestPositiveScenarioSteps(t *testing.T) {
	suite, _, _ := newSimSuite(t, nil)

	res, err := suite.Run(context.Background(), NameUUID)
	require.NoError(t, err)

	var names []string
	for _, s := range res.Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"uuid to uuid", "uuid to uuid verify",
		"uuid to posix", "uuid to posix verify",
		"posix to uuid", "posix to uuid verify",
	}, names)
}

func TestSubsetsCarriesPendingLeg(t *testing.T) {
	suite, _, _ := newSimSuite(t, nil)

	res, err := suite.Run(context.Background(), NameSubsets)
	require.NoError(t, err)

	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, StepPending, last.Status)
	assert.Equal(t, "posix to uns subset", last.Name)
}

func TestUnexpectedPassStopsTable(t *testing.T) {
	suite, store, _ := newSimSuite(t, func(r *sim.Runner) runner.Runner {
		return &intercept{next: r, fn: func(_ context.Context, inv command.Invocation) (types.Outcome, bool) {
			if inv.Tool == command.ToolDcp {
				return types.Success(inv.Tool), true
			}
			return types.Outcome{}, false
		}}
	})

	res, err := suite.Run(context.Background(), NameNegative)
	require.Error(t, err)
	assert.ErrorIs(t, err, negative.ErrUnexpectedPass)
	assert.NotErrorIs(t, err, negative.ErrUnexpectedFailure)
	assert.Contains(t, err.Error(), "case 1.1")

	require.Len(t, res.Verdicts, 1)
	assert.Equal(t, negative.StatusUnexpectedPass, res.Verdicts[0].Status)
	assert.Zero(t, store.PoolCount())
}

func TestInterruptedLastCaseIsNotExpectedFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	executed := 0
	for _, c := range negative.Table() {
		if !c.IsPending() {
			executed++
		}
	}

	calls := 0
	suite, store, _ := newSimSuite(t, func(r *sim.Runner) runner.Runner {
		return &intercept{next: r, fn: func(_ context.Context, inv command.Invocation) (types.Outcome, bool) {
			if inv.Tool == command.ToolDcp {
				calls++
				if calls == executed {
					cancel()
				}
			}
			return types.Outcome{}, false
		}}
	})

	res, err := suite.Run(ctx, NameNegative)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	last := res.Verdicts[len(res.Verdicts)-1]
	assert.NotEqual(t, negative.StatusExpectedFailure, last.Status)
	assert.Zero(t, store.PoolCount())
}

func TestCopyFailureIsUnexpectedFailure(t *testing.T) {
	suite, store, _ := newSimSuite(t, func(r *sim.Runner) runner.Runner {
		return &intercept{next: r, fn: func(_ context.Context, inv command.Invocation) (types.Outcome, bool) {
			if inv.Tool == command.ToolDcp {
				return types.Failure(inv.Tool, "connection refused"), true
			}
			return types.Outcome{}, false
		}}
	})

	res, err := suite.Run(context.Background(), NameUUID)
	require.Error(t, err)
	assert.ErrorIs(t, err, negative.ErrUnexpectedFailure)
	assert.NotErrorIs(t, err, negative.ErrUnexpectedPass)

	require.NotEmpty(t, res.Steps)
	assert.Equal(t, StepFailed, res.Steps[0].Status)
	assert.Equal(t, "connection refused", res.Steps[0].Reason)
	assert.Zero(t, store.PoolCount())
}

func TestCorruptedDestinationFailsVerify(t *testing.T) {
	var store *sim.Store
	suite, _, _ := newSimSuite(t, func(r *sim.Runner) runner.Runner {
		store = r.Store()
		return &intercept{next: r, fn: func(_ context.Context, inv command.Invocation) (types.Outcome, bool) {
			if inv.Tool != command.ToolIor || !slices.Contains(inv.Args, "-r") {
				return types.Outcome{}, false
			}
			pool := argValue(inv.Args, "--dfs.pool")
			cont := argValue(inv.Args, "--dfs.cont")
			if pool != "" {
				// Flip one byte past the first rank's block before reading.
				_ = store.Corrupt(types.PoolID(pool), types.ContainerID(cont), argValue(inv.Args, "-o"), 4096+7)
			}
			return types.Outcome{}, false
		}}
	})

	res, err := suite.Run(context.Background(), NameUUID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVerifyFailed)

	var failed *Step
	for i := range res.Steps {
		if res.Steps[i].Status == StepFailed {
			failed = &res.Steps[i]
			break
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "uuid to uuid verify", failed.Name)
	assert.Contains(t, failed.Reason, "offset 4103")
	assert.Contains(t, failed.Reason, "rank 1")
}

func TestWriteFailureIsEnvironment(t *testing.T) {
	suite, store, _ := newSimSuite(t, func(r *sim.Runner) runner.Runner {
		return &intercept{next: r, fn: func(_ context.Context, inv command.Invocation) (types.Outcome, bool) {
			if inv.Tool == command.ToolIor && slices.Contains(inv.Args, "-w") {
				return types.Failure(inv.Tool, "no space left"), true
			}
			return types.Outcome{}, false
		}}
	})

	_, err := suite.Run(context.Background(), NameUUIDUNS)
	require.Error(t, err)
	assert.ErrorIs(t, err, fixture.ErrEnvironment)
	assert.NotErrorIs(t, err, negative.ErrUnexpectedFailure)
	assert.Zero(t, store.PoolCount())
}

func TestRunAllKeepsGoing(t *testing.T) {
	calls := 0
	suite, _, _ := newSimSuite(t, func(r *sim.Runner) runner.Runner {
		return &intercept{next: r, fn: func(_ context.Context, inv command.Invocation) (types.Outcome, bool) {
			// Fail only the first copy of the run.
			if inv.Tool == command.ToolDcp {
				calls++
				if calls == 1 {
					return types.Failure(inv.Tool, "transient"), true
				}
			}
			return types.Outcome{}, false
		}}
	})

	results, err := suite.RunAll(context.Background(), []string{NameUUID, NameUNS})
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].OK())
	assert.True(t, results[1].OK())
}

func TestLeftoverScenarioDirectoryIsEnvironmentFailure(t *testing.T) {
	suite, store, params := newSimSuite(t, nil)
	leftover := filepath.Join(params.Tmp, NameUUID)
	require.NoError(t, os.MkdirAll(leftover, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(leftover, "testFile"), []byte("old"), 0o644))

	res, err := suite.Run(context.Background(), NameUUID)
	require.Error(t, err)
	assert.ErrorIs(t, err, fixture.ErrEnvironment)
	assert.Contains(t, err.Error(), leftover)
	assert.Empty(t, res.Steps)
	assert.Zero(t, store.PoolCount())
	assert.FileExists(t, filepath.Join(leftover, "testFile"))
}

func TestUnknownScenario(t *testing.T) {
	suite, _, _ := newSimSuite(t, nil)
	_, err := suite.Run(context.Background(), "bogus")
	assert.Error(t, err)
}

func TestCanceledRunAll(t *testing.T) {
	suite, _, _ := newSimSuite(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := suite.RunAll(ctx, Names())
	assert.Empty(t, results)
	assert.True(t, errors.Is(err, context.Canceled))
}

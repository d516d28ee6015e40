// Package scenario runs the copy scenarios end to end: fixtures are
// created, test data is written with a workload generator, the copy tool
// runs, and the destination is read back and verified.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dmtest/pkg/command"
	"dmtest/pkg/fixture"
	"dmtest/pkg/negative"
	"dmtest/pkg/resolver"
	"dmtest/pkg/runner"
	"dmtest/pkg/types"
	"dmtest/pkg/workload"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	NameNegative = "negative"
	NameUUID     = "uuid"
	NameUNS      = "uns"
	NameUUIDUNS  = "uuid-uns"
	NameSubsets  = "subsets"
)

// ErrVerifyFailed means the copy succeeded but the destination did not
// read back as written.
var ErrVerifyFailed = errors.New("read-verify failed")

// Params are the per-run settings shared by every scenario.
type Params struct {
	// Tmp and UNSDir are parents; each scenario works in its own
	// subdirectory of both and removes it when done.
	Tmp    string
	UNSDir string

	TestFile      string
	PoolSize      int64
	ContainerType string

	Ior    workload.Spec
	Mdtest workload.Spec
}

type StepStatus int

const (
	StepPassed StepStatus = iota
	StepFailed
	StepPending
)

func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Step is one copy, or one copy plus its read-verify.
type Step struct {
	Name    string
	Status  StepStatus
	Reason  string
	Command string
}

type Result struct {
	Scenario string
	Steps    []Step
	Verdicts []negative.Verdict
	Err      error
}

func (r *Result) OK() bool {
	return r.Err == nil
}

type scenarioFunc func(ctx context.Context, st *state) error

// Suite runs named scenarios against one runner.
type Suite struct {
	runner  runner.Runner
	builder *command.Builder
	logger  *zap.Logger
	params  Params

	scenarios map[string]scenarioFunc
}

func NewSuite(r runner.Runner, b *command.Builder, logger *zap.Logger, params Params) *Suite {
	s := &Suite{
		runner:  r,
		builder: b,
		logger:  logger,
		params:  params,
	}
	s.scenarios = map[string]scenarioFunc{
		NameNegative: s.negativeTable,
		NameUUID:     s.copyWithUUID,
		NameUNS:      s.copyWithUNS,
		NameUUIDUNS:  s.copyWithUUIDUNS,
		NameSubsets:  s.copySubsets,
	}
	return s
}

// Names lists the scenarios in the order "all" runs them.
func Names() []string {
	return []string{NameNegative, NameUUID, NameUNS, NameUUIDUNS, NameSubsets}
}

// state is what one scenario run carries between its steps.
type state struct {
	sc       *fixture.ScenarioContext
	verifier *workload.Verifier
	resolver *resolver.Resolver
	result   *Result

	tmp    string
	unsDir string
}

// Run executes one scenario in a fresh ScenarioContext. The context is
// closed whatever happens; teardown errors are joined with the
// scenario's own.
func (s *Suite) Run(ctx context.Context, name string) (*Result, error) {
	fn, ok := s.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}

	res := &Result{Scenario: name}
	st := &state{
		sc: fixture.New(s.runner, s.builder, s.logger.With(zap.String("scenario", name)), fixture.Options{
			PoolSize:      s.params.PoolSize,
			ContainerType: s.params.ContainerType,
		}),
		verifier: workload.NewVerifier(s.runner, s.builder, s.logger),
		resolver: resolver.New(s.params.UNSDir),
		result:   res,
		tmp:      filepath.Join(s.params.Tmp, name),
		unsDir:   filepath.Join(s.params.UNSDir, name),
	}

	s.logger.Info("Starting scenario", zap.String("scenario", name))
	if err := checkFresh(st.tmp, st.unsDir); err != nil {
		res.Err = err
		s.logger.Error("Scenario not started", zap.String("scenario", name), zap.Error(err))
		return res, err
	}
	err := fn(ctx, st)
	if closeErr := st.sc.Close(context.WithoutCancel(ctx)); closeErr != nil {
		err = multierr.Append(err, closeErr)
	}
	res.Err = err

	if err != nil {
		s.logger.Error("Scenario failed", zap.String("scenario", name), zap.Error(err))
	} else {
		s.logger.Info("Scenario passed", zap.String("scenario", name))
	}
	return res, err
}

// RunAll runs each scenario in order. A failed scenario does not stop
// the ones after it; every result is returned.
func (s *Suite) RunAll(ctx context.Context, names []string) ([]*Result, error) {
	var errs error
	results := make([]*Result, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, multierr.Append(errs, err)
		}
		res, err := s.Run(ctx, name)
		if res != nil {
			results = append(results, res)
		}
		errs = multierr.Append(errs, err)
	}
	return results, errs
}

// checkFresh refuses to reuse a scenario directory. One left behind by
// an interrupted run is not ours to remove.
func checkFresh(dirs ...string) error {
	for _, d := range dirs {
		_, err := os.Stat(d)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s already exists, remove it before running again", fixture.ErrEnvironment, d)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: %v", fixture.ErrEnvironment, err)
		}
	}
	return nil
}

func (s *Suite) testFileName() string {
	return strings.TrimPrefix(s.params.TestFile, "/")
}

func (s *Suite) daosTestFile() string {
	return "/" + s.testFileName()
}

// copy runs one copy that is expected to succeed.
func (s *Suite) copy(ctx context.Context, st *state, step string, req types.CopyRequest) error {
	inv := s.builder.Copy(req)
	s.logger.Info("Copying", zap.String("step", step), zap.String("command", inv.String()))

	out, err := s.runner.Run(ctx, inv)
	if err != nil {
		st.fail(step, err.Error(), inv.String())
		return fmt.Errorf("%s: %w", step, err)
	}
	if out.Failed() {
		st.fail(step, out.Reason, inv.String())
		return fmt.Errorf("%s: %w: %s", step, negative.ErrUnexpectedFailure, out.Reason)
	}
	st.result.Steps = append(st.result.Steps, Step{Name: step, Status: StepPassed, Command: inv.String()})
	return nil
}

// verify reads loc back with spec's read flags.
func (s *Suite) verify(ctx context.Context, st *state, step string, loc types.Locator, spec workload.Spec) error {
	name := step + " verify"
	out, err := st.verifier.ReadVerify(ctx, loc, spec)
	if err != nil {
		st.fail(name, err.Error(), "")
		return fmt.Errorf("%s: %w", name, err)
	}
	if out.Failed() {
		st.fail(name, out.Reason, "")
		return fmt.Errorf("%s: %w: %s", name, ErrVerifyFailed, out.Reason)
	}
	st.result.Steps = append(st.result.Steps, Step{Name: name, Status: StepPassed})
	return nil
}

// copyAndVerify is the common shape of a positive step.
func (s *Suite) copyAndVerify(ctx context.Context, st *state, step string, req types.CopyRequest, check types.Locator, spec workload.Spec) error {
	if err := s.copy(ctx, st, step, req); err != nil {
		return err
	}
	return s.verify(ctx, st, step, check, spec)
}

// write seeds test data. A failure here is an environment problem, not
// a copy outcome.
func (s *Suite) write(ctx context.Context, st *state, loc types.Locator, spec workload.Spec) error {
	out, err := st.verifier.Write(ctx, loc, spec)
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", fixture.ErrEnvironment, loc, err)
	}
	if out.Failed() {
		return fmt.Errorf("%w: write %s: %s", fixture.ErrEnvironment, loc, out.Reason)
	}
	return nil
}

func (st *state) fail(step, reason, cmd string) {
	st.result.Steps = append(st.result.Steps, Step{Name: step, Status: StepFailed, Reason: reason, Command: cmd})
}

func (st *state) pending(step, reason string) {
	st.result.Steps = append(st.result.Steps, Step{Name: step, Status: StepPending, Reason: reason})
}

// pools creates n pools.
func (st *state) pools(ctx context.Context, n int) ([]*types.Pool, error) {
	pools := make([]*types.Pool, 0, n)
	for i := 0; i < n; i++ {
		p, err := st.sc.CreatePool(ctx)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, nil
}

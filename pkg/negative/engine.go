package negative

import (
	"context"
	"errors"
	"fmt"

	"dmtest/pkg/command"
	"dmtest/pkg/runner"
	"dmtest/pkg/types"

	"go.uber.org/zap"
)

var (
	ErrUnexpectedPass    = errors.New("expected fail but passed")
	ErrUnexpectedFailure = errors.New("expected pass but failed")
)

type Status int

const (
	StatusPassed Status = iota
	StatusExpectedFailure
	StatusPending
	StatusUnexpectedPass
	StatusUnexpectedFailure
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusExpectedFailure:
		return "failed as expected"
	case StatusPending:
		return "pending"
	case StatusUnexpectedPass:
		return "unexpectedly passed"
	case StatusUnexpectedFailure:
		return "unexpectedly failed"
	default:
		return "unknown"
	}
}

// OK reports whether the verdict agrees with the table.
func (s Status) OK() bool {
	return s == StatusPassed || s == StatusExpectedFailure || s == StatusPending
}

type Verdict struct {
	CaseID    string
	Condition string
	Expect    Expectation
	Status    Status
	Reason    string
	Command   string
}

// Decide compares an outcome with the case's expectation. Both kinds of
// divergence produce an error naming the case; they wrap different
// sentinels so callers can tell them apart.
func Decide(c Case, out types.Outcome) (Verdict, error) {
	v := Verdict{CaseID: c.ID, Condition: c.Condition, Expect: c.Expect, Reason: out.Reason}

	switch {
	case out.Failed() && c.Expect == ExpectFailure:
		v.Status = StatusExpectedFailure
		return v, nil
	case out.Failed():
		v.Status = StatusUnexpectedFailure
		return v, fmt.Errorf("case %s (%s): %w: %s", c.ID, c.Condition, ErrUnexpectedFailure, out.Reason)
	case c.Expect == ExpectFailure:
		v.Status = StatusUnexpectedPass
		return v, fmt.Errorf("case %s (%s): %w", c.ID, c.Condition, ErrUnexpectedPass)
	default:
		v.Status = StatusPassed
		return v, nil
	}
}

// Engine drives cases through the copy tool one at a time.
type Engine struct {
	runner  runner.Runner
	builder *command.Builder
	logger  *zap.Logger
}

func NewEngine(r runner.Runner, b *command.Builder, logger *zap.Logger) *Engine {
	return &Engine{runner: r, builder: b, logger: logger}
}

// RunCase executes one case and decides it. Pending cases are reported
// without being run.
func (e *Engine) RunCase(ctx context.Context, env *Env, c Case) (Verdict, error) {
	if c.IsPending() || c.Request == nil {
		e.logger.Warn("Skipping pending case",
			zap.String("case", c.ID),
			zap.String("condition", c.Condition),
			zap.String("reason", c.Pending))
		return Verdict{CaseID: c.ID, Condition: c.Condition, Expect: c.Expect, Status: StatusPending, Reason: c.Pending}, nil
	}

	inv := e.builder.Copy(c.Request(env))
	out, err := e.runner.Run(ctx, inv)
	if err != nil {
		return Verdict{CaseID: c.ID, Condition: c.Condition, Expect: c.Expect, Command: inv.String()},
			fmt.Errorf("case %s: %w", c.ID, err)
	}

	v, err := Decide(c, out)
	v.Command = inv.String()
	switch {
	case err != nil:
		e.logger.Error("Case diverged from table",
			zap.String("case", c.ID),
			zap.String("status", v.Status.String()),
			zap.String("command", v.Command),
			zap.String("stderr", out.Stderr))
	case v.Status == StatusExpectedFailure:
		e.logger.Info("==> "+c.ID+" "+c.Condition,
			zap.String("expected_error", out.Reason))
	default:
		e.logger.Info("==> "+c.ID+" "+c.Condition, zap.String("status", v.Status.String()))
	}
	return v, err
}

// Run executes cases in order and stops at the first one that diverges
// from the table. The verdicts gathered so far are always returned.
func (e *Engine) Run(ctx context.Context, env *Env, cases []Case) ([]Verdict, error) {
	verdicts := make([]Verdict, 0, len(cases))
	for _, c := range cases {
		v, err := e.RunCase(ctx, env, c)
		verdicts = append(verdicts, v)
		if err != nil {
			return verdicts, err
		}
	}
	return verdicts, nil
}

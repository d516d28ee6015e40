package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dmtest/pkg/command"
	"dmtest/pkg/types"

	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Minute

// ErrTimeout is returned when an invocation outlives its timeout. The
// process is killed and no outcome is reported. Cancellation of the
// caller's context is reported the same way, wrapping context.Canceled.
var ErrTimeout = errors.New("invocation timed out")

// Runner executes one invocation to completion. A non-zero exit is an
// Outcome, not an error; errors mean the tool could not be run at all.
type Runner interface {
	Run(ctx context.Context, inv command.Invocation) (types.Outcome, error)
}

// ExecRunner runs invocations as local processes.
type ExecRunner struct {
	logger  *zap.Logger
	timeout time.Duration
	workDir string
}

func NewExecRunner(logger *zap.Logger, timeout time.Duration, workDir string) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{
		logger:  logger,
		timeout: timeout,
		workDir: workDir,
	}
}

func (r *ExecRunner) Run(ctx context.Context, inv command.Invocation) (types.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := inv.Argv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running command",
		zap.String("tool", inv.Tool),
		zap.String("command", inv.String()))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	// A killed process exits non-zero; that is never a tool outcome.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return types.Outcome{}, fmt.Errorf("%s after %s: %w", inv.Tool, r.timeout, ErrTimeout)
		}
		return types.Outcome{}, fmt.Errorf("%s interrupted: %w", inv.Tool, ctxErr)
	}

	out := types.Outcome{
		Tool:   inv.Tool,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return types.Outcome{}, fmt.Errorf("failed to start %s: %w", inv.Tool, err)
		}
		out.Status = types.StatusFailure
		out.ExitCode = exitErr.ExitCode()
		out.Reason = FailureReason(out.Stderr, out.ExitCode)
	}

	r.logger.Debug("Command finished",
		zap.String("tool", inv.Tool),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("elapsed", elapsed))

	return out, nil
}

// FailureReason picks the last non-empty stderr line, falling back to
// the exit status.
func FailureReason(stderr string, exitCode int) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return fmt.Sprintf("exit status %d", exitCode)
}

// Recorder wraps a Runner and remembers every invocation it was given.
type Recorder struct {
	Runner Runner
	Calls  []command.Invocation
}

func (r *Recorder) Run(ctx context.Context, inv command.Invocation) (types.Outcome, error) {
	r.Calls = append(r.Calls, inv)
	return r.Runner.Run(ctx, inv)
}

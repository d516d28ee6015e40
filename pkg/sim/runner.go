package sim

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"dmtest/pkg/command"
	"dmtest/pkg/types"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Runner executes invocations against a Store instead of spawning
// processes. Tools are picked by the program's base name, so a builder
// configured with absolute paths still works.
type Runner struct {
	store  *Store
	logger *zap.Logger
}

func NewRunner(store *Store, logger *zap.Logger) *Runner {
	return &Runner{store: store, logger: logger}
}

func (r *Runner) Store() *Store {
	return r.store
}

type toolFunc func(ctx context.Context, procs int, args []string, stdout io.Writer) error

func (r *Runner) Run(ctx context.Context, inv command.Invocation) (types.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return types.Outcome{}, err
	}

	var tool toolFunc
	switch filepath.Base(inv.Program) {
	case command.ToolDmg:
		tool = r.dmg
	case command.ToolDaos:
		tool = r.daos
	case command.ToolDcp:
		tool = r.dcp
	case command.ToolIor:
		tool = r.ior
	case command.ToolMdtest:
		tool = r.mdtest
	default:
		return types.Outcome{}, fmt.Errorf("simulated runner has no tool %q", inv.Program)
	}

	r.logger.Debug("Simulating command", zap.String("command", inv.String()))

	var stdout strings.Builder
	if err := tool(ctx, inv.Procs(), inv.Args, &stdout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Outcome{}, fmt.Errorf("%s interrupted: %w", inv.Tool, ctxErr)
		}
		out := types.Failure(inv.Tool, err.Error())
		out.Stdout = stdout.String()
		out.Stderr = fmt.Sprintf("%s: %s\n", inv.Tool, err)
		return out, nil
	}

	out := types.Success(inv.Tool)
	out.Stdout = stdout.String()
	return out, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(true)
	return fs
}

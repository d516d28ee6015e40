package workload

import (
	"context"
	"fmt"

	"dmtest/pkg/command"
	"dmtest/pkg/runner"
	"dmtest/pkg/types"

	"go.uber.org/zap"
)

type Kind string

const (
	// KindIor is single large-file I/O.
	KindIor Kind = "ior"
	// KindMdtest is many small files plus metadata.
	KindMdtest Kind = "mdtest"
)

// Spec parameterizes a workload. Write and read flags are passed to the
// tool untouched; the read flags are expected to include the tool's
// verify option.
type Spec struct {
	Kind         Kind
	WriteFlags   []string
	ReadFlags    []string
	BlockSize    string
	TransferSize string
	Items        int
	Bytes        int64
}

// Verifier writes deterministic content through a workload generator
// and later reads it back with verification. It does no I/O itself.
type Verifier struct {
	runner  runner.Runner
	builder *command.Builder
	logger  *zap.Logger
}

func NewVerifier(r runner.Runner, b *command.Builder, logger *zap.Logger) *Verifier {
	return &Verifier{runner: r, builder: b, logger: logger}
}

// Write runs the write pass against loc.
func (v *Verifier) Write(ctx context.Context, loc types.Locator, spec Spec) (types.Outcome, error) {
	return v.run(ctx, loc, spec, spec.WriteFlags, "write")
}

// ReadVerify runs the read-verify pass against loc. A Failure outcome
// means the workload tool found missing or mismatched data.
func (v *Verifier) ReadVerify(ctx context.Context, loc types.Locator, spec Spec) (types.Outcome, error) {
	return v.run(ctx, loc, spec, spec.ReadFlags, "read-verify")
}

func (v *Verifier) run(ctx context.Context, loc types.Locator, spec Spec, flags []string, phase string) (types.Outcome, error) {
	inv, err := v.Invocation(loc, spec, flags)
	if err != nil {
		return types.Outcome{}, err
	}

	out, err := v.runner.Run(ctx, inv)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("%s %s: %w", spec.Kind, phase, err)
	}

	if out.Failed() {
		v.logger.Warn("Workload failed",
			zap.String("tool", out.Tool),
			zap.String("phase", phase),
			zap.String("locator", loc.String()),
			zap.String("reason", out.Reason))
	} else {
		v.logger.Debug("Workload passed",
			zap.String("tool", out.Tool),
			zap.String("phase", phase),
			zap.String("locator", loc.String()))
	}
	return out, nil
}

// Invocation builds the workload command for loc. Identifier locators
// use the store-native API, everything else goes through POSIX.
func (v *Verifier) Invocation(loc types.Locator, spec Spec, flags []string) (command.Invocation, error) {
	api, p := command.APIPosix, loc.Path
	var pool types.PoolID
	var cont types.ContainerID
	if loc.Kind == types.LocatorIdentifier {
		api, p = command.APIDFS, loc.ContainerPath()
		pool, cont = loc.Pool, loc.Container
	}

	switch spec.Kind {
	case KindIor:
		return v.builder.Ior(command.IorArgs{
			API:          api,
			TestFile:     p,
			BlockSize:    spec.BlockSize,
			TransferSize: spec.TransferSize,
			Flags:        flags,
			Pool:         pool,
			Cont:         cont,
		}), nil
	case KindMdtest:
		return v.builder.Mdtest(command.MdtestArgs{
			API:        api,
			TestDir:    p,
			Items:      spec.Items,
			WriteBytes: spec.Bytes,
			ReadBytes:  spec.Bytes,
			Flags:      flags,
			Pool:       pool,
			Cont:       cont,
		}), nil
	default:
		return command.Invocation{}, fmt.Errorf("unknown workload kind %q", spec.Kind)
	}
}

// Package fixture owns the resources of one scenario: pools,
// containers and working directories, released together at the end.
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"dmtest/pkg/command"
	"dmtest/pkg/runner"
	"dmtest/pkg/types"
	"dmtest/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrEnvironment marks setup and teardown failures. They abort the
// scenario and are never compared against expected outcomes.
var ErrEnvironment = errors.New("environment failure")

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

type Options struct {
	PoolSize      int64
	ContainerType string
}

// ScenarioContext is passed to every step of a scenario in place of
// shared mutable state. Close releases everything it created.
type ScenarioContext struct {
	runner  runner.Runner
	builder *command.Builder
	logger  *zap.Logger
	opts    Options

	pools      []*types.Pool
	containers []*types.Container
	dirs       []string
}

func New(r runner.Runner, b *command.Builder, logger *zap.Logger, opts Options) *ScenarioContext {
	if opts.ContainerType == "" {
		opts.ContainerType = "POSIX"
	}
	return &ScenarioContext{
		runner:  r,
		builder: b,
		logger:  logger,
		opts:    opts,
	}
}

func (s *ScenarioContext) Runner() runner.Runner     { return s.runner }
func (s *ScenarioContext) Builder() *command.Builder { return s.builder }
func (s *ScenarioContext) Logger() *zap.Logger       { return s.logger }

func (s *ScenarioContext) Pools() []*types.Pool           { return s.pools }
func (s *ScenarioContext) Containers() []*types.Container { return s.containers }

func (s *ScenarioContext) exec(ctx context.Context, inv command.Invocation, what string) (types.Outcome, error) {
	out, err := s.runner.Run(ctx, inv)
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrEnvironment, what, err)
	}
	if out.Failed() {
		s.logger.Error("Environment command failed",
			zap.String("step", what),
			zap.String("command", inv.String()),
			zap.String("reason", out.Reason))
		return out, fmt.Errorf("%w: %s: %s", ErrEnvironment, what, out.Reason)
	}
	return out, nil
}

type poolCreateOutput struct {
	Response struct {
		UUID string `json:"uuid"`
	} `json:"response"`
	Error *string `json:"error"`
}

func (s *ScenarioContext) CreatePool(ctx context.Context) (*types.Pool, error) {
	out, err := s.exec(ctx, s.builder.PoolCreate(s.opts.PoolSize), "pool create")
	if err != nil {
		return nil, err
	}

	var parsed poolCreateOutput
	if err := json.Unmarshal([]byte(out.Stdout), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse pool create output: %v", ErrEnvironment, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: pool create: %s", ErrEnvironment, *parsed.Error)
	}
	if _, err := uuid.Parse(parsed.Response.UUID); err != nil {
		return nil, fmt.Errorf("%w: pool create returned bad uuid %q", ErrEnvironment, parsed.Response.UUID)
	}

	pool := &types.Pool{ID: types.PoolID(parsed.Response.UUID), Capacity: s.opts.PoolSize}
	s.pools = append(s.pools, pool)
	s.logger.Info("Created pool", zap.String("pool", string(pool.ID)), zap.String("capacity", utils.FormatDataSize(pool.Capacity)))
	return pool, nil
}

// CreateContainer creates a container in pool, bound to nsPath when it
// is not empty.
func (s *ScenarioContext) CreateContainer(ctx context.Context, pool *types.Pool, nsPath string) (*types.Container, error) {
	out, err := s.exec(ctx, s.builder.ContainerCreate(pool.ID, s.opts.ContainerType, nsPath), "container create")
	if err != nil {
		return nil, err
	}

	id := uuidPattern.FindString(out.Stdout)
	if id == "" {
		return nil, fmt.Errorf("%w: no container uuid in output %q", ErrEnvironment, out.Stdout)
	}

	cont := &types.Container{ID: types.ContainerID(id), Pool: pool.ID, NamespacePath: nsPath}
	s.containers = append(s.containers, cont)
	s.logger.Info("Created container",
		zap.String("pool", string(pool.ID)),
		zap.String("container", id),
		zap.String("path", nsPath))
	return cont, nil
}

// MakeDirs creates each directory with its parents. Only the topmost
// directory a call actually creates is registered for removal on Close,
// so directories that already existed, and whatever they hold, survive
// the scenario.
func (s *ScenarioContext) MakeDirs(paths ...string) error {
	for _, p := range paths {
		top, err := topMissing(p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEnvironment, err)
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrEnvironment, err)
		}
		if top != "" {
			s.logger.Debug("Created directory", zap.String("path", p), zap.String("owned", top))
			s.dirs = append(s.dirs, top)
		}
	}
	return nil
}

// topMissing walks up from p and returns the highest ancestor (or p
// itself) that does not exist yet. It returns "" when p exists.
func topMissing(p string) (string, error) {
	p = filepath.Clean(p)
	top := ""
	for {
		_, err := os.Stat(p)
		if err == nil {
			return top, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		top = p
		parent := filepath.Dir(p)
		if parent == p {
			return top, nil
		}
		p = parent
	}
}

// RemoveDirs removes each directory tree. Paths that were never created
// are not an error.
func RemoveDirs(paths ...string) error {
	var errs error
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close destroys containers, then pools, then directories, each in
// reverse creation order. It keeps going after a failure and reports
// all of them.
func (s *ScenarioContext) Close(ctx context.Context) error {
	var errs error

	for i := len(s.containers) - 1; i >= 0; i-- {
		c := s.containers[i]
		if _, err := s.exec(ctx, s.builder.ContainerDestroy(c.Pool, c.ID), "container destroy"); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	s.containers = nil

	for i := len(s.pools) - 1; i >= 0; i-- {
		p := s.pools[i]
		if _, err := s.exec(ctx, s.builder.PoolDestroy(p.ID), "pool destroy"); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	s.pools = nil

	for i := len(s.dirs) - 1; i >= 0; i-- {
		if err := RemoveDirs(s.dirs[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %v", ErrEnvironment, err))
		}
	}
	s.dirs = nil

	return errs
}

// Track registers a container the scenario did not create itself, such
// as one the copy tool created implicitly, so Close destroys it.
func (s *ScenarioContext) Track(c *types.Container) {
	s.containers = append(s.containers, c)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dmtest/pkg/command"
	"dmtest/pkg/config"
	"dmtest/pkg/mount"
	"dmtest/pkg/runner"
	"dmtest/pkg/scenario"
	"dmtest/pkg/sim"
	"dmtest/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd() *cobra.Command {
	var (
		simulate     bool
		requireMount bool
	)

	names := append(scenario.Names(), "all")
	cmd := &cobra.Command{
		Use:       "run [scenario...]",
		Short:     "Run copy scenarios",
		Long:      "Run one or more scenarios (negative, uuid, uns, uuid-uns, subsets) or all of them.",
		ValidArgs: names,
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			selected := expandScenarios(args)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Mount.Fuse {
				lb, err := mount.MountLoopback(cfg.Mount.Backing, cfg.Paths.UNSDir, mount.Options{Debug: verbose}, logger)
				if err != nil {
					return err
				}
				defer lb.Unmount()
			} else if requireMount {
				if err := mount.CheckRoot(mount.NewChecker(), cfg.Paths.UNSDir, true); err != nil {
					return err
				}
			}

			if err := preflight(cfg, logger); err != nil {
				return err
			}

			suite, err := newSuite(cfg, simulate, logger)
			if err != nil {
				return err
			}

			logger.Info("Running scenarios",
				zap.Strings("scenarios", selected),
				zap.Bool("simulated", simulate))

			results, runErr := suite.RunAll(ctx, selected)
			fmt.Println(renderResults(results))
			if runErr != nil {
				return fmt.Errorf("%d of %d scenarios failed", countFailed(results), len(selected))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&simulate, "sim", false, "run against the in-process simulated tools")
	cmd.Flags().BoolVar(&requireMount, "require-mount", false, "fail unless the namespace root is a mount point")
	return cmd
}

func expandScenarios(args []string) []string {
	if len(args) == 0 {
		return scenario.Names()
	}
	var out []string
	for _, a := range args {
		if a == "all" {
			return scenario.Names()
		}
		out = append(out, a)
	}
	return out
}

func newSuite(cfg *config.Config, simulate bool, logger *zap.Logger) (*scenario.Suite, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	poolSize, err := cfg.PoolSize()
	if err != nil {
		return nil, err
	}
	ior, err := cfg.IorSpec()
	if err != nil {
		return nil, err
	}
	mdtest, err := cfg.MdtestSpec()
	if err != nil {
		return nil, err
	}

	var r runner.Runner
	if simulate {
		r = sim.NewRunner(sim.NewStore(), logger)
	} else {
		if cfg.Paths.WorkDir != "" {
			if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create workdir: %w", err)
			}
		}
		r = runner.NewExecRunner(logger, timeout, cfg.Paths.WorkDir)
	}

	return scenario.NewSuite(r, command.NewBuilder(cfg.Tools()), logger, scenario.Params{
		Tmp:           cfg.Paths.Tmp,
		UNSDir:        cfg.Paths.UNSDir,
		TestFile:      cfg.Ior.TestFile,
		PoolSize:      poolSize,
		ContainerType: cfg.Container.Type,
		Ior:           ior,
		Mdtest:        mdtest,
	}), nil
}

// preflight checks the POSIX side can hold a test file and one copy of
// it for every workload rank.
func preflight(cfg *config.Config, logger *zap.Logger) error {
	bs, err := utils.ParseDataSize(cfg.Ior.BlockSize)
	if err != nil {
		return err
	}
	procs := int64(cfg.Launcher.Processes)
	if procs < 1 {
		procs = 1
	}
	need := 2 * bs * procs

	free, err := mount.FreeSpace(cfg.Paths.Tmp)
	if err != nil {
		return err
	}
	logger.Debug("Free space",
		zap.String("path", cfg.Paths.Tmp),
		zap.String("free", utils.FormatDataSize(int64(free))),
		zap.String("need", utils.FormatDataSize(need)))
	return mount.CheckSpace(cfg.Paths.Tmp, need)
}

func countFailed(results []*scenario.Result) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

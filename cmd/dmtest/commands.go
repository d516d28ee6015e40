package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dmtest/pkg/command"
	"dmtest/pkg/mount"
	"dmtest/pkg/negative"
	"dmtest/pkg/resolver"
	"dmtest/pkg/types"
	"dmtest/pkg/uns"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func casesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List the negative copy cases",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(renderCases(negative.Table()))
		},
	}
}

func argvCmd() *cobra.Command {
	var (
		prefix                             string
		srcPool, srcCont, dstPool, dstCont string
		oneLine                            bool
	)

	cmd := &cobra.Command{
		Use:   "argv SRC DST",
		Short: "Print the copy command a request turns into",
		Long: `Resolve SRC and DST the way scenarios do (identifiers, then paths under
the namespace root, then POSIX) and print the launcher and copy tool argv.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			res := resolver.New(cfg.Paths.UNSDir)
			req := types.CopyRequest{
				Source:      res.Resolve(types.PoolID(srcPool), types.ContainerID(srcCont), args[0]),
				Destination: res.Resolve(types.PoolID(dstPool), types.ContainerID(dstCont), args[1]),
				Prefix:      prefix,
			}
			// A lone pool or container cannot form an identifier locator;
			// pass it through as an override instead.
			if req.Source.Kind != types.LocatorIdentifier {
				req.Overrides.SrcPool, req.Overrides.SrcCont = types.PoolID(srcPool), types.ContainerID(srcCont)
			}
			if req.Destination.Kind != types.LocatorIdentifier {
				req.Overrides.DstPool, req.Overrides.DstCont = types.PoolID(dstPool), types.ContainerID(dstCont)
			}

			inv := command.NewBuilder(cfg.Tools()).Copy(req)
			if oneLine {
				fmt.Println(inv.String())
				return nil
			}
			fmt.Printf("# source: %s\n# destination: %s\n", req.Source, req.Destination)
			fmt.Println(strings.Join(inv.Argv(), "\n"))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "namespace path prefix hint")
	cmd.Flags().StringVar(&srcPool, "src-pool", "", "source pool")
	cmd.Flags().StringVar(&srcCont, "src-cont", "", "source container")
	cmd.Flags().StringVar(&dstPool, "dst-pool", "", "destination pool")
	cmd.Flags().StringVar(&dstCont, "dst-cont", "", "destination container")
	cmd.Flags().BoolVar(&oneLine, "line", false, "print a single quoted command line")
	return cmd
}

func unsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uns",
		Short: "Inspect and edit namespace path bindings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get PATH",
		Short: "Print the pool and container a namespace path is bound to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := uns.Read(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", b)
			fmt.Printf("%s %s\n", labelStyle("type:"), b.Type)
			fmt.Printf("%s %s\n", labelStyle("pool:"), b.Pool)
			fmt.Printf("%s %s\n", labelStyle("container:"), b.Container)
			return nil
		},
	})

	var (
		pool, cont, contType string
		remove               bool
	)
	set := &cobra.Command{
		Use:   "set PATH",
		Short: "Bind a directory to a pool and container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove {
				return uns.Remove(args[0])
			}
			b := uns.Binding{Type: contType, Pool: types.PoolID(pool), Container: types.ContainerID(cont)}
			// Round trip through Parse so bad identifiers are rejected
			// before anything is written.
			if _, err := uns.Parse(b.String()); err != nil {
				return err
			}
			return uns.Write(args[0], b)
		},
	}
	set.Flags().StringVar(&pool, "pool", "", "pool uuid")
	set.Flags().StringVar(&cont, "cont", "", "container uuid")
	set.Flags().StringVar(&contType, "type", uns.TypePOSIX, "container type")
	set.Flags().BoolVar(&remove, "remove", false, "remove the binding instead")
	cmd.AddCommand(set)

	return cmd
}

func mountCmd() *cobra.Command {
	var (
		check bool
	)

	cmd := &cobra.Command{
		Use:   "mount [BACKING] [MOUNTPOINT]",
		Short: "Serve a directory as the namespace root",
		Long: `Mount BACKING at MOUNTPOINT through a loopback FUSE filesystem and serve
it until interrupted. Both default to mount.backing and paths.uns_dir from
the params file. With --check, only report whether the namespace root is a
mount point.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backing, dir := cfg.Mount.Backing, cfg.Paths.UNSDir
			if len(args) > 0 {
				backing = args[0]
			}
			if len(args) > 1 {
				dir = args[1]
			}

			if check {
				if err := mount.CheckRoot(mount.NewChecker(), dir, true); err != nil {
					return err
				}
				fmt.Printf("%s is mounted\n", dir)
				return nil
			}

			if backing == "" {
				return fmt.Errorf("no backing directory given")
			}
			lb, err := mount.MountLoopback(backing, dir, mount.Options{Debug: verbose}, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				if err := lb.Unmount(); err != nil {
					logger.Error("Unmount failed", zap.Error(err))
				}
			}()

			// Returns on interrupt or when unmounted from another shell.
			lb.Wait()
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "only check that the namespace root is mounted")
	return cmd
}

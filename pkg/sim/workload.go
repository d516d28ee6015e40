package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"dmtest/pkg/command"
	"dmtest/pkg/types"
	"dmtest/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// pattern is the deterministic byte stream a rank writes. Any rank or
// offset mix-up changes the expected bytes.
func pattern(rank, seq int, size int64) []byte {
	buf := make([]byte, size)
	seed := uint32(rank)*2654435761 + uint32(seq)*40503 + 1
	for i := range buf {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		buf[i] = byte(seed)
	}
	return buf
}

func (r *Runner) workloadFS(api, pool, cont string) (fsys, error) {
	switch api {
	case command.APIPosix:
		return hostFS{}, nil
	case command.APIDFS:
		if pool == "" || cont == "" {
			return nil, fmt.Errorf("DFS needs --dfs.pool and --dfs.cont")
		}
		return r.store.containerFS(types.PoolID(pool), types.ContainerID(cont))
	default:
		return nil, fmt.Errorf("unsupported api %q", api)
	}
}

// ior writes one shared file made of one block per rank, and on read
// checks its size and, with -R, every byte.
func (r *Runner) ior(ctx context.Context, procs int, args []string, stdout io.Writer) error {
	flags := newFlagSet("ior")
	api := flags.StringP("api", "a", command.APIPosix, "")
	blockSize := flags.StringP("blockSize", "b", "1M", "")
	transferSize := flags.StringP("transferSize", "t", "256K", "")
	testFile := flags.StringP("testFile", "o", "testFile", "")
	write := flags.BoolP("writeFile", "w", false, "")
	read := flags.BoolP("readFile", "r", false, "")
	checkRead := flags.BoolP("checkRead", "R", false, "")
	flags.BoolP("checkWrite", "W", false, "")
	flags.BoolP("keepFile", "k", false, "")
	flags.IntP("setTimeStampSignature", "G", 0, "")
	flags.BoolP("filePerProc", "F", false, "")
	flags.BoolP("verbose", "v", false, "")
	pool := flags.String("dfs.pool", "", "")
	cont := flags.String("dfs.cont", "", "")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if !*write && !*read {
		return fmt.Errorf("ior needs -w or -r")
	}

	bs, err := utils.ParseDataSize(*blockSize)
	if err != nil {
		return fmt.Errorf("bad block size: %w", err)
	}
	ts, err := utils.ParseDataSize(*transferSize)
	if err != nil {
		return fmt.Errorf("bad transfer size: %w", err)
	}
	if bs <= 0 || ts <= 0 || bs%ts != 0 {
		return fmt.Errorf("block size %d must be a positive multiple of transfer size %d", bs, ts)
	}

	wfs, err := r.workloadFS(*api, *pool, *cont)
	if err != nil {
		return err
	}

	size := bs * int64(procs)

	if *write {
		data := make([]byte, size)
		err := forEachRank(ctx, procs, func(rank int) error {
			copy(data[int64(rank)*bs:], pattern(rank, 0, bs))
			return nil
		})
		if err != nil {
			return err
		}
		if err := wfs.WriteFile(*testFile, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *testFile, err)
		}
		fmt.Fprintf(stdout, "write: %d ranks x %d bytes to %s\n", procs, bs, *testFile)
	}

	if *read {
		got, err := wfs.ReadFile(*testFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", *testFile, err)
		}
		if int64(len(got)) != size {
			return fmt.Errorf("read %s: expected %d bytes, found %d", *testFile, size, len(got))
		}
		if *checkRead {
			// Each rank checks its own block; the lowest bad offset is reported.
			bad := make([]int64, procs)
			err := forEachRank(ctx, procs, func(rank int) error {
				lo := int64(rank) * bs
				bad[rank] = -1
				if i := firstMismatch(got[lo:lo+bs], pattern(rank, 0, bs)); i >= 0 {
					bad[rank] = lo + int64(i)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for rank, off := range bad {
				if off >= 0 {
					return fmt.Errorf("data check error in %s at offset %d (rank %d)", *testFile, off, rank)
				}
			}
		}
		fmt.Fprintf(stdout, "read: %d bytes from %s verified\n", len(got), *testFile)
	}
	return nil
}

// forEachRank runs fn once per rank concurrently, like the ranks of an
// MPI job. It stops early when ctx is canceled.
func forEachRank(ctx context.Context, procs int, fn func(rank int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < procs; rank++ {
		rank := rank
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(rank)
		})
	}
	return g.Wait()
}

// mdtest writes Items files per rank under the test directory, each of
// WriteBytes bytes. The read pass checks that every file is present with
// the right size, and with -X that its content matches.
func (r *Runner) mdtest(ctx context.Context, procs int, args []string, stdout io.Writer) error {
	flags := newFlagSet("mdtest")
	api := flags.StringP("api", "a", command.APIPosix, "")
	testDir := flags.StringP("dir", "d", "./out", "")
	items := flags.IntP("items", "n", 1, "")
	writeBytes := flags.Int64P("write-bytes", "w", 0, "")
	readBytes := flags.Int64P("read-bytes", "e", 0, "")
	create := flags.BoolP("create-only", "C", false, "")
	stat := flags.BoolP("stat-only", "T", false, "")
	readOnly := flags.BoolP("read-only", "E", false, "")
	verify := flags.BoolP("verify", "X", false, "")
	flags.BoolP("unique-dir", "u", false, "")
	flags.BoolP("files-only", "F", false, "")
	pool := flags.String("dfs.pool", "", "")
	cont := flags.String("dfs.cont", "", "")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if !*create && !*stat && !*readOnly {
		return fmt.Errorf("mdtest needs one of -C, -T or -E")
	}

	wfs, err := r.workloadFS(*api, *pool, *cont)
	if err != nil {
		return err
	}
	name := func(rank, i int) string {
		return wfs.Join(*testDir, fmt.Sprintf("file.mdtest.%d.%d", rank, i))
	}

	if *create {
		if err := wfs.MkdirAll(*testDir); err != nil {
			return fmt.Errorf("mkdir %s: %w", *testDir, err)
		}
		err := forEachRank(ctx, procs, func(rank int) error {
			for i := 0; i < *items; i++ {
				if err := wfs.WriteFile(name(rank, i), pattern(rank, i+1, *writeBytes), 0o644); err != nil {
					return fmt.Errorf("create %s: %w", name(rank, i), err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "created %d files in %s\n", procs * *items, *testDir)
	}

	if *stat || *readOnly {
		size := *readBytes
		if size == 0 {
			size = *writeBytes
		}
		err := forEachRank(ctx, procs, func(rank int) error {
			for i := 0; i < *items; i++ {
				if err := checkItem(wfs, name(rank, i), rank, i, size, *readOnly, *verify); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "checked %d files in %s\n", procs * *items, *testDir)
	}
	return nil
}

func checkItem(wfs fsys, p string, rank, i int, size int64, read, verify bool) error {
	info, err := wfs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("missing file %s", p)
		}
		return err
	}
	if info.dir {
		return fmt.Errorf("%s is a directory", p)
	}
	if info.size != size {
		return fmt.Errorf("%s: expected %d bytes, found %d", p, size, info.size)
	}
	if !read {
		return nil
	}
	data, err := wfs.ReadFile(p)
	if err != nil {
		return err
	}
	if verify && !bytes.Equal(data, pattern(rank, i+1, size)) {
		return fmt.Errorf("verify failed for %s at offset %d", p, firstMismatch(data, pattern(rank, i+1, size)))
	}
	return nil
}

func firstMismatch(got, want []byte) int {
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			return i
		}
	}
	if len(got) != len(want) {
		return len(want)
	}
	return -1
}

package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dmtest/pkg/command"
	"dmtest/pkg/resolver"
	"dmtest/pkg/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type env struct {
	t       *testing.T
	store   *Store
	runner  *Runner
	builder *command.Builder
	tmp     string
	unsDir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := NewStore()
	tools := command.DefaultTools()
	tools.Launcher = ""
	tmp := t.TempDir()
	unsDir := filepath.Join(tmp, "uns")
	require.NoError(t, os.MkdirAll(unsDir, 0o755))
	return &env{
		t:       t,
		store:   store,
		runner:  NewRunner(store, zap.NewNop()),
		builder: command.NewBuilder(tools),
		tmp:     tmp,
		unsDir:  unsDir,
	}
}

func (e *env) run(inv command.Invocation) types.Outcome {
	e.t.Helper()
	out, err := e.runner.Run(context.Background(), inv)
	require.NoError(e.t, err)
	return out
}

func (e *env) copy(req types.CopyRequest) types.Outcome {
	e.t.Helper()
	return e.run(e.builder.Copy(req))
}

func (e *env) container(pool types.PoolID, nsPath string) types.ContainerID {
	e.t.Helper()
	if nsPath != "" {
		require.NoError(e.t, os.Mkdir(nsPath, 0o755))
	}
	id, err := e.store.CreateContainer(pool, "", nsPath)
	require.NoError(e.t, err)
	return id
}

func (e *env) writeContainerFile(pool types.PoolID, cont types.ContainerID, p string, data []byte) {
	e.t.Helper()
	cfs, err := e.store.containerFS(pool, cont)
	require.NoError(e.t, err)
	require.NoError(e.t, cfs.WriteFile(p, data, 0o644))
}

func TestAdminTools(t *testing.T) {
	e := newEnv(t)

	out := e.run(e.builder.PoolCreate(1 << 20))
	require.True(t, out.Succeeded(), out.String())
	assert.Contains(t, out.Stdout, `"uuid"`)

	out = e.run(e.builder.ContainerCreate("missing", "POSIX", ""))
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "does not exist")

	out = e.run(e.builder.PoolDestroy("missing"))
	assert.True(t, out.Failed())
}

func TestContainerCreateBindsPath(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	nsPath := filepath.Join(e.unsDir, "uns1")

	out := e.run(e.builder.ContainerCreate(pool, "POSIX", nsPath))
	require.True(t, out.Succeeded(), out.String())
	assert.DirExists(t, nsPath)

	b, ok := e.store.Binding(nsPath)
	require.True(t, ok)
	assert.Equal(t, pool, b.Pool)

	out = e.run(e.builder.ContainerCreate(pool, "POSIX", nsPath))
	assert.True(t, out.Failed(), "binding an existing path must fail")
}

func TestCopyRejectsSameEndpoint(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	uns1 := filepath.Join(e.unsDir, "uns1")
	cont := e.container(pool, uns1)

	out := e.copy(types.CopyRequest{
		Source:      resolver.Identifier(pool, cont, "/"),
		Destination: resolver.Identifier(pool, cont, "/"),
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "same")

	out = e.copy(types.CopyRequest{
		Source:      resolver.Namespace(uns1),
		Destination: resolver.Namespace(uns1),
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "same")
}

func TestCopyPrefixIsPathPrefixNotSubstring(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	uns1 := filepath.Join(e.unsDir, "uns1")
	cont := e.container(pool, uns1)
	e.writeContainerFile(pool, cont, "/data", []byte("payload"))

	dst := filepath.Join(e.tmp, "out")

	out := e.copy(types.CopyRequest{
		Source:      resolver.Posix("/oops" + uns1 + "/data"),
		Destination: resolver.Posix(dst),
		Prefix:      uns1,
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "does not match")

	out = e.copy(types.CopyRequest{
		Source:      resolver.Namespace(uns1 + "/data"),
		Destination: resolver.Posix(dst),
		Prefix:      uns1,
	})
	require.True(t, out.Succeeded(), out.String())
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCopyPrefixMustBeNamespacePath(t *testing.T) {
	e := newEnv(t)
	src := filepath.Join(e.tmp, "posix", "file")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	out := e.copy(types.CopyRequest{
		Source:      resolver.Posix(src),
		Destination: resolver.Posix(filepath.Join(e.tmp, "dst")),
		Prefix:      filepath.Dir(src),
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "not a namespace path")
}

func TestImplicitContainerCreation(t *testing.T) {
	e := newEnv(t)
	pool1 := e.store.CreatePool(1 << 20)
	pool2 := e.store.CreatePool(1 << 20)
	cont1 := e.container(pool1, "")
	e.writeContainerFile(pool1, cont1, "/testFile", []byte("abc"))

	t.Run("same pool creates the destination", func(t *testing.T) {
		fresh := types.ContainerID(uuid.NewString())
		out := e.copy(types.CopyRequest{
			Source:      resolver.Identifier(pool1, cont1, "/testFile"),
			Destination: resolver.Identifier(pool1, fresh, "/testFile"),
		})
		require.True(t, out.Succeeded(), out.String())
		assert.True(t, e.store.Exists(pool1, fresh, "/testFile"))
	})

	t.Run("posix source creates the destination", func(t *testing.T) {
		src := filepath.Join(e.tmp, "posix_file")
		require.NoError(t, os.WriteFile(src, []byte("abc"), 0o644))
		fresh := types.ContainerID(uuid.NewString())
		out := e.copy(types.CopyRequest{
			Source:      resolver.Posix(src),
			Destination: resolver.Identifier(pool2, fresh, "/"),
		})
		require.True(t, out.Succeeded(), out.String())
		assert.True(t, e.store.Exists(pool2, fresh, "/posix_file"))
	})

	t.Run("cross pool does not", func(t *testing.T) {
		fresh := types.ContainerID(uuid.NewString())
		out := e.copy(types.CopyRequest{
			Source:      resolver.Identifier(pool1, cont1, "/testFile"),
			Destination: resolver.Identifier(pool2, fresh, "/testFile"),
		})
		assert.True(t, out.Failed())
		assert.Contains(t, out.Reason, "does not exist")
		assert.False(t, e.store.HasContainer(pool2, fresh))
	})
}

func TestCopyMissingPaths(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	cont := e.container(pool, "")
	e.writeContainerFile(pool, cont, "/testFile", []byte("abc"))

	out := e.copy(types.CopyRequest{
		Source:      resolver.Posix("/fake/fake/fake"),
		Destination: resolver.Identifier(pool, cont, "/testFile"),
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "source path")

	out = e.copy(types.CopyRequest{
		Source:      resolver.Identifier(pool, cont, "/testFile"),
		Destination: resolver.Posix("/fake/fake/fake"),
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "destination path")
}

func TestCopyContainerRootToPosixDir(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	cont := e.container(pool, "")
	e.writeContainerFile(pool, cont, "/testFile", []byte("abc"))
	cfs, err := e.store.containerFS(pool, cont)
	require.NoError(t, err)
	require.NoError(t, cfs.MkdirAll("/dir/sub"))
	require.NoError(t, cfs.WriteFile("/dir/sub/f", []byte("nested"), 0o644))

	out := e.copy(types.CopyRequest{
		Source:      resolver.Identifier(pool, cont, "/"),
		Destination: resolver.Posix(e.tmp),
	})
	require.True(t, out.Succeeded(), out.String())
	assert.FileExists(t, filepath.Join(e.tmp, "testFile"))
	data, err := os.ReadFile(filepath.Join(e.tmp, "dir", "sub", "f"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(data))
}

func TestPoolCapacity(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(4)
	cont := e.container(pool, "")
	src := filepath.Join(e.tmp, "big")
	require.NoError(t, os.WriteFile(src, []byte("0123456789"), 0o644))

	out := e.copy(types.CopyRequest{
		Source:      resolver.Posix(src),
		Destination: resolver.Identifier(pool, cont, "/"),
	})
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "no space")
	assert.Zero(t, e.store.Used(pool))
}

func TestIorDetectsCorruption(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	cont := e.container(pool, "")

	args := command.IorArgs{API: command.APIDFS, TestFile: "/testFile", BlockSize: "1K", TransferSize: "256", Pool: pool, Cont: cont}
	write := args
	write.Flags = []string{"-w", "-k"}
	read := args
	read.Flags = []string{"-r", "-R"}

	require.True(t, e.run(e.builder.Ior(write)).Succeeded())
	require.True(t, e.run(e.builder.Ior(read)).Succeeded())

	require.NoError(t, e.store.Corrupt(pool, cont, "/testFile", 100))
	out := e.run(e.builder.Ior(read))
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "offset 100")
}

func TestIorReportsLowestBadRank(t *testing.T) {
	e := newEnv(t)
	tools := command.DefaultTools()
	tools.WorkloadProcs = 3
	b := command.NewBuilder(tools)
	pool := e.store.CreatePool(1 << 20)
	cont := e.container(pool, "")

	args := command.IorArgs{API: command.APIDFS, TestFile: "/testFile", BlockSize: "1K", TransferSize: "256", Pool: pool, Cont: cont}
	write := args
	write.Flags = []string{"-w", "-k"}
	read := args
	read.Flags = []string{"-r", "-R"}

	require.True(t, e.run(b.Ior(write)).Succeeded())
	data, err := e.store.ReadFile(pool, cont, "/testFile")
	require.NoError(t, err)
	require.Len(t, data, 3*1024)

	require.NoError(t, e.store.Corrupt(pool, cont, "/testFile", 2*1024+5))
	require.NoError(t, e.store.Corrupt(pool, cont, "/testFile", 1024+9))
	out := e.run(b.Ior(read))
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "offset 1033 (rank 1)")
}

func TestCanceledToolIsAnError(t *testing.T) {
	e := newEnv(t)
	pool := e.store.CreatePool(1 << 20)
	cont := e.container(pool, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := e.builder.Ior(command.IorArgs{API: command.APIDFS, TestFile: "/testFile", BlockSize: "1K", TransferSize: "256", Pool: pool, Cont: cont, Flags: []string{"-w"}})
	_, err := e.runner.Run(ctx, inv)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMdtestDetectsMissingFile(t *testing.T) {
	e := newEnv(t)
	dir := filepath.Join(e.tmp, "md")

	args := command.MdtestArgs{API: command.APIPosix, TestDir: dir, Items: 5, WriteBytes: 64, ReadBytes: 64}
	write := args
	write.Flags = []string{"-C"}
	read := args
	read.Flags = []string{"-E", "-X"}

	require.True(t, e.run(e.builder.Mdtest(write)).Succeeded())
	require.True(t, e.run(e.builder.Mdtest(read)).Succeeded())

	require.NoError(t, os.Remove(filepath.Join(dir, "file.mdtest.0.3")))
	out := e.run(e.builder.Mdtest(read))
	assert.True(t, out.Failed())
	assert.Contains(t, out.Reason, "missing file")
}

func TestUnknownTool(t *testing.T) {
	e := newEnv(t)
	_, err := e.runner.Run(context.Background(), command.Invocation{Tool: "rsync", Program: "rsync"})
	assert.Error(t, err)
}

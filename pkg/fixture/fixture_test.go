package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dmtest/pkg/command"
	"dmtest/pkg/sim"
	"dmtest/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newScenario(t *testing.T) (*ScenarioContext, *sim.Store) {
	t.Helper()
	store := sim.NewStore()
	tools := command.DefaultTools()
	tools.Launcher = ""
	sc := New(sim.NewRunner(store, zap.NewNop()), command.NewBuilder(tools), zap.NewNop(), Options{PoolSize: 1 << 20})
	return sc, store
}

func TestCreateAndRelease(t *testing.T) {
	sc, store := newScenario(t)
	ctx := context.Background()
	unsDir := filepath.Join(t.TempDir(), "uns")
	require.NoError(t, sc.MakeDirs(unsDir))

	pool, err := sc.CreatePool(ctx)
	require.NoError(t, err)
	assert.True(t, store.HasPool(pool.ID))

	uns1 := filepath.Join(unsDir, "uns1")
	c1, err := sc.CreateContainer(ctx, pool, uns1)
	require.NoError(t, err)
	assert.True(t, c1.HasNamespace())
	assert.True(t, store.HasContainer(pool.ID, c1.ID))

	c2, err := sc.CreateContainer(ctx, pool, "")
	require.NoError(t, err)
	assert.False(t, c2.HasNamespace())

	require.NoError(t, sc.Close(ctx))
	assert.False(t, store.HasPool(pool.ID))
	assert.NoDirExists(t, unsDir)
	assert.Empty(t, sc.Pools())
	assert.Empty(t, sc.Containers())
}

func TestEnvironmentFailureIsFatal(t *testing.T) {
	sc, _ := newScenario(t)

	_, err := sc.CreateContainer(context.Background(), &types.Pool{ID: "missing"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnvironment))
}

func TestCloseReportsEveryFailure(t *testing.T) {
	sc, store := newScenario(t)
	ctx := context.Background()

	pool, err := sc.CreatePool(ctx)
	require.NoError(t, err)
	_, err = sc.CreateContainer(ctx, pool, "")
	require.NoError(t, err)

	// Pull the pool out from under the scenario.
	require.NoError(t, store.DestroyPool(pool.ID))

	err = sc.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnvironment)
	assert.Contains(t, err.Error(), "container destroy")
	assert.Contains(t, err.Error(), "pool destroy")
}

func TestDirectoryFixturesAreIdempotent(t *testing.T) {
	root := t.TempDir()
	before, err := os.ReadDir(root)
	require.NoError(t, err)

	a := filepath.Join(root, "posix_test")
	b := filepath.Join(root, "posix_test2", "nested")

	sc, _ := newScenario(t)
	require.NoError(t, sc.MakeDirs(a, b))
	require.NoError(t, sc.MakeDirs(a), "creating an existing directory is fine")
	require.NoError(t, os.WriteFile(filepath.Join(a, "f"), []byte("x"), 0o644))

	require.NoError(t, RemoveDirs(a))
	require.NoError(t, sc.Close(context.Background()), "removing an already removed directory is fine")
	assert.NoError(t, RemoveDirs(filepath.Join(root, "never_created")))

	after, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDirectoryFixturesKeepExistingDirectories(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "preexisting")
	keep := filepath.Join(existing, "keep")
	require.NoError(t, os.MkdirAll(existing, 0o755))
	require.NoError(t, os.WriteFile(keep, []byte("data"), 0o644))

	tests := []struct {
		name  string
		paths []string
	}{
		{name: "existing directory", paths: []string{existing}},
		{name: "new child of existing directory", paths: []string{filepath.Join(existing, "child")}},
		{name: "new parents", paths: []string{filepath.Join(root, "parent", "leaf")}},
		{name: "mixed", paths: []string{existing, filepath.Join(root, "parent", "leaf"), filepath.Join(root, "parent", "other")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, _ := newScenario(t)
			require.NoError(t, sc.MakeDirs(tt.paths...))
			for _, p := range tt.paths {
				assert.DirExists(t, p)
			}
			require.NoError(t, sc.Close(context.Background()))

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "preexisting", entries[0].Name())

			inside, err := os.ReadDir(existing)
			require.NoError(t, err)
			require.Len(t, inside, 1)
			assert.Equal(t, "keep", inside[0].Name())

			data, err := os.ReadFile(keep)
			require.NoError(t, err)
			assert.Equal(t, "data", string(data))
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dmtest/pkg/workload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	tools := cfg.Tools()
	assert.Equal(t, "dcp", tools.Dcp)
	assert.Equal(t, "mpirun", tools.Launcher)
	assert.Equal(t, 3, tools.CopyProcs)
	assert.Equal(t, 1, tools.WorkloadProcs)

	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	data := `
paths:
  tmp: /scratch/tmp
  uns_dir: /scratch/uns
datamover:
  path: /opt/mpifileutils/bin/dcp
  processes: 4
  timeout: 90s
launcher:
  path: /usr/bin/mpirun
  hostfile: /etc/hosts.mpi
  extra_args: ["--oversubscribe"]
  processes: 2
ior:
  flags_write: "-w -k"
  flags_read: "-r -R"
  block_size: 4M
  transfer_size: 1M
  test_file: /big
mdtest:
  items: 10
  bytes: 4K
pool:
  size: 2G
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/scratch/uns", cfg.Paths.UNSDir)
	assert.Equal(t, "/opt/mpifileutils/bin/dcp", cfg.DataMover.Path)
	// Unset keys keep their defaults.
	assert.Equal(t, "dmg", cfg.Pool.DmgPath)
	assert.Equal(t, "POSIX", cfg.Container.Type)

	tools := cfg.Tools()
	assert.Equal(t, 4, tools.CopyProcs)
	assert.Equal(t, 2, tools.WorkloadProcs)
	assert.Equal(t, []string{"--oversubscribe"}, tools.LauncherArgs)

	size, err := cfg.PoolSize()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<30), size)

	ior, err := cfg.IorSpec()
	require.NoError(t, err)
	assert.Equal(t, workload.KindIor, ior.Kind)
	assert.Equal(t, "4M", ior.BlockSize)
	assert.Equal(t, "1M", ior.TransferSize)
	assert.Equal(t, []string{"-w", "-k"}, ior.WriteFlags)
	assert.Equal(t, []string{"-r", "-R"}, ior.ReadFlags)

	md, err := cfg.MdtestSpec()
	require.NoError(t, err)
	assert.Equal(t, 10, md.Items)
	assert.Equal(t, int64(4096), md.Bytes)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DMTEST_DCP", "/env/dcp")
	t.Setenv("DMTEST_PROCESSES", "8")
	t.Setenv("DMTEST_POOL_SIZE", "512M")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/dcp", cfg.DataMover.Path)
	assert.Equal(t, 8, cfg.DataMover.Processes)

	size, err := cfg.PoolSize()
	require.NoError(t, err)
	assert.Equal(t, int64(512<<20), size)
}

func TestEnvOverrideBadProcesses(t *testing.T) {
	t.Setenv("DMTEST_PROCESSES", "lots")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no dcp", func(c *Config) { c.DataMover.Path = "" }},
		{"zero processes", func(c *Config) { c.DataMover.Processes = 0 }},
		{"bad timeout", func(c *Config) { c.DataMover.Timeout = "soon" }},
		{"bad pool size", func(c *Config) { c.Pool.Size = "big" }},
		{"block not multiple of transfer", func(c *Config) {
			c.Ior.BlockSize = "3K"
			c.Ior.TransferSize = "2K"
		}},
		{"no mdtest items", func(c *Config) { c.Mdtest.Items = 0 }},
		{"no uns dir", func(c *Config) { c.Paths.UNSDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

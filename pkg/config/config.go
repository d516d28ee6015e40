package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dmtest/pkg/command"
	"dmtest/pkg/utils"
	"dmtest/pkg/workload"

	"gopkg.in/yaml.v3"
)

// Config is the params file for a harness run. Sizes are human-readable
// strings ("1K", "1G") and flag lists are whitespace separated, the way
// they appear on the tools' command lines.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	DataMover DataMoverConfig `yaml:"datamover"`
	Launcher  LauncherConfig  `yaml:"launcher"`
	Ior       IorConfig       `yaml:"ior"`
	Mdtest    MdtestConfig    `yaml:"mdtest"`
	Pool      PoolConfig      `yaml:"pool"`
	Container ContainerConfig `yaml:"container"`
	Mount     MountConfig     `yaml:"mount"`
}

type PathsConfig struct {
	Tmp     string `yaml:"tmp"`
	WorkDir string `yaml:"workdir"`
	UNSDir  string `yaml:"uns_dir"`
}

type DataMoverConfig struct {
	Path      string `yaml:"path"`
	Processes int    `yaml:"processes"`
	Timeout   string `yaml:"timeout"`
}

type LauncherConfig struct {
	Path      string   `yaml:"path"`
	Hostfile  string   `yaml:"hostfile"`
	ExtraArgs []string `yaml:"extra_args"`
	Processes int      `yaml:"processes"`
}

type IorConfig struct {
	Path           string `yaml:"path"`
	FlagsWrite     string `yaml:"flags_write"`
	FlagsRead      string `yaml:"flags_read"`
	BlockSize      string `yaml:"block_size"`
	BlockSizeLarge string `yaml:"block_size_large"`
	TransferSize   string `yaml:"transfer_size"`
	TestFile       string `yaml:"test_file"`
}

type MdtestConfig struct {
	Path       string `yaml:"path"`
	FlagsWrite string `yaml:"flags_write"`
	FlagsRead  string `yaml:"flags_read"`
	Items      int    `yaml:"items"`
	Bytes      string `yaml:"bytes"`
}

type PoolConfig struct {
	DmgPath string `yaml:"dmg_path"`
	Size    string `yaml:"size"`
}

type ContainerConfig struct {
	DaosPath string `yaml:"daos_path"`
	Type     string `yaml:"type"`
}

// MountConfig describes the namespace root. With Fuse set, Backing is
// mounted onto Paths.UNSDir through a loopback filesystem before a run.
type MountConfig struct {
	Fuse    bool   `yaml:"fuse"`
	Backing string `yaml:"backing"`
}

func Default() *Config {
	tmp := os.TempDir()
	return &Config{
		Paths: PathsConfig{
			Tmp:     filepath.Join(tmp, "dmtest"),
			WorkDir: filepath.Join(tmp, "dmtest", "work"),
			UNSDir:  filepath.Join(tmp, "dmtest", "uns"),
		},
		DataMover: DataMoverConfig{
			Path:      command.ToolDcp,
			Processes: 3,
			Timeout:   "10m",
		},
		Launcher: LauncherConfig{
			Path:      "mpirun",
			Processes: 1,
		},
		Ior: IorConfig{
			Path:           command.ToolIor,
			FlagsWrite:     "-v -w -k",
			FlagsRead:      "-v -r -R",
			BlockSize:      "1K",
			BlockSizeLarge: "1G",
			TransferSize:   "1K",
			TestFile:       "/testFile",
		},
		Mdtest: MdtestConfig{
			Path:       command.ToolMdtest,
			FlagsWrite: "-C",
			FlagsRead:  "-E -X",
			Items:      1,
			Bytes:      "1K",
		},
		Pool: PoolConfig{
			DmgPath: command.ToolDmg,
			Size:    "1G",
		},
		Container: ContainerConfig{
			DaosPath: command.ToolDaos,
			Type:     "POSIX",
		},
	}
}

// Load reads a YAML params file over the defaults, then applies
// DMTEST_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Paths.Tmp = getEnv("DMTEST_TMP", c.Paths.Tmp)
	c.Paths.WorkDir = getEnv("DMTEST_WORKDIR", c.Paths.WorkDir)
	c.Paths.UNSDir = getEnv("DMTEST_UNS_DIR", c.Paths.UNSDir)
	c.DataMover.Path = getEnv("DMTEST_DCP", c.DataMover.Path)
	c.DataMover.Timeout = getEnv("DMTEST_TIMEOUT", c.DataMover.Timeout)
	c.Launcher.Path = getEnv("DMTEST_LAUNCHER", c.Launcher.Path)
	c.Launcher.Hostfile = getEnv("DMTEST_HOSTFILE", c.Launcher.Hostfile)
	c.Ior.Path = getEnv("DMTEST_IOR", c.Ior.Path)
	c.Mdtest.Path = getEnv("DMTEST_MDTEST", c.Mdtest.Path)
	c.Pool.DmgPath = getEnv("DMTEST_DMG", c.Pool.DmgPath)
	c.Pool.Size = getEnv("DMTEST_POOL_SIZE", c.Pool.Size)
	c.Container.DaosPath = getEnv("DMTEST_DAOS", c.Container.DaosPath)

	if v := os.Getenv("DMTEST_PROCESSES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DMTEST_PROCESSES: %w", err)
		}
		c.DataMover.Processes = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Paths.Tmp == "" || c.Paths.UNSDir == "" {
		return fmt.Errorf("paths.tmp and paths.uns_dir are required")
	}
	if c.DataMover.Path == "" {
		return fmt.Errorf("datamover.path is required")
	}
	if c.DataMover.Processes < 1 {
		return fmt.Errorf("datamover.processes must be at least 1, got %d", c.DataMover.Processes)
	}
	if c.Launcher.Path != "" && c.Launcher.Processes < 1 {
		return fmt.Errorf("launcher.processes must be at least 1, got %d", c.Launcher.Processes)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := c.PoolSize(); err != nil {
		return err
	}
	if _, err := c.IorSpec(); err != nil {
		return err
	}
	if _, err := c.MdtestSpec(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Timeout() (time.Duration, error) {
	if c.DataMover.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.DataMover.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid datamover.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("datamover.timeout must not be negative")
	}
	return d, nil
}

func (c *Config) PoolSize() (int64, error) {
	size, err := utils.ParseDataSize(c.Pool.Size)
	if err != nil {
		return 0, fmt.Errorf("invalid pool.size: %w", err)
	}
	return size, nil
}

// Tools returns the program paths and launcher settings for the
// command builder.
func (c *Config) Tools() command.Tools {
	return command.Tools{
		Dcp:           c.DataMover.Path,
		Ior:           c.Ior.Path,
		Mdtest:        c.Mdtest.Path,
		Dmg:           c.Pool.DmgPath,
		Daos:          c.Container.DaosPath,
		Launcher:      c.Launcher.Path,
		Hostfile:      c.Launcher.Hostfile,
		LauncherArgs:  c.Launcher.ExtraArgs,
		CopyProcs:     c.DataMover.Processes,
		WorkloadProcs: c.Launcher.Processes,
	}
}

// IorSpec is the single large-file workload.
func (c *Config) IorSpec() (workload.Spec, error) {
	bs, err := utils.ParseDataSize(c.Ior.BlockSize)
	if err != nil {
		return workload.Spec{}, fmt.Errorf("invalid ior.block_size: %w", err)
	}
	ts, err := utils.ParseDataSize(c.Ior.TransferSize)
	if err != nil {
		return workload.Spec{}, fmt.Errorf("invalid ior.transfer_size: %w", err)
	}
	if ts == 0 || bs%ts != 0 {
		return workload.Spec{}, fmt.Errorf("ior.block_size %s is not a multiple of ior.transfer_size %s", c.Ior.BlockSize, c.Ior.TransferSize)
	}
	return workload.Spec{
		Kind:         workload.KindIor,
		WriteFlags:   strings.Fields(c.Ior.FlagsWrite),
		ReadFlags:    strings.Fields(c.Ior.FlagsRead),
		BlockSize:    utils.FormatToolSize(bs),
		TransferSize: utils.FormatToolSize(ts),
	}, nil
}

// MdtestSpec is the many-small-files workload.
func (c *Config) MdtestSpec() (workload.Spec, error) {
	n, err := utils.ParseDataSize(c.Mdtest.Bytes)
	if err != nil {
		return workload.Spec{}, fmt.Errorf("invalid mdtest.bytes: %w", err)
	}
	if c.Mdtest.Items < 1 {
		return workload.Spec{}, fmt.Errorf("mdtest.items must be at least 1, got %d", c.Mdtest.Items)
	}
	return workload.Spec{
		Kind:       workload.KindMdtest,
		WriteFlags: strings.Fields(c.Mdtest.FlagsWrite),
		ReadFlags:  strings.Fields(c.Mdtest.FlagsRead),
		Items:      c.Mdtest.Items,
		Bytes:      n,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

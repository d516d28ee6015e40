package command

import (
	"strconv"

	"dmtest/pkg/types"
)

// Workload access modes.
const (
	APIPosix = "POSIX"
	APIDFS   = "DFS"
)

// IorArgs drives ior for single large-file I/O.
type IorArgs struct {
	API          string
	TestFile     string
	BlockSize    string
	TransferSize string
	Flags        []string
	Pool         types.PoolID
	Cont         types.ContainerID
}

func (a IorArgs) Args() []string {
	args := []string{"-a", a.API}
	if a.BlockSize != "" {
		args = append(args, "-b", a.BlockSize)
	}
	if a.TransferSize != "" {
		args = append(args, "-t", a.TransferSize)
	}
	args = append(args, "-o", a.TestFile)
	args = append(args, a.Flags...)
	return append(args, dfsArgs(a.API, a.Pool, a.Cont)...)
}

// MdtestArgs drives mdtest for many-small-file and metadata I/O.
type MdtestArgs struct {
	API        string
	TestDir    string
	Items      int
	WriteBytes int64
	ReadBytes  int64
	Flags      []string
	Pool       types.PoolID
	Cont       types.ContainerID
}

func (a MdtestArgs) Args() []string {
	args := []string{"-a", a.API, "-d", a.TestDir}
	if a.Items > 0 {
		args = append(args, "-n", strconv.Itoa(a.Items))
	}
	if a.WriteBytes > 0 {
		args = append(args, "-w", strconv.FormatInt(a.WriteBytes, 10))
	}
	if a.ReadBytes > 0 {
		args = append(args, "-e", strconv.FormatInt(a.ReadBytes, 10))
	}
	args = append(args, a.Flags...)
	return append(args, dfsArgs(a.API, a.Pool, a.Cont)...)
}

func dfsArgs(api string, pool types.PoolID, cont types.ContainerID) []string {
	if api != APIDFS {
		return nil
	}
	var args []string
	if pool != "" {
		args = append(args, "--dfs.pool", string(pool))
	}
	if cont != "" {
		args = append(args, "--dfs.cont", string(cont))
	}
	return args
}

package command

import (
	"dmtest/pkg/types"
)

const (
	ToolDcp    = "dcp"
	ToolIor    = "ior"
	ToolMdtest = "mdtest"
	ToolDmg    = "dmg"
	ToolDaos   = "daos"
)

// Tools holds the program paths and launcher settings used to build
// invocations.
type Tools struct {
	Dcp    string
	Ior    string
	Mdtest string
	Dmg    string
	Daos   string

	Launcher     string
	Hostfile     string
	LauncherArgs []string

	CopyProcs     int
	WorkloadProcs int
}

func DefaultTools() Tools {
	return Tools{
		Dcp:           ToolDcp,
		Ior:           ToolIor,
		Mdtest:        ToolMdtest,
		Dmg:           ToolDmg,
		Daos:          ToolDaos,
		Launcher:      "mpirun",
		CopyProcs:     3,
		WorkloadProcs: 1,
	}
}

type Builder struct {
	tools Tools
}

func NewBuilder(tools Tools) *Builder {
	return &Builder{tools: tools}
}

func (b *Builder) Tools() Tools {
	return b.tools
}

func (b *Builder) launcher(procs int) *Launcher {
	if b.tools.Launcher == "" {
		return nil
	}
	return &Launcher{
		Path:      b.tools.Launcher,
		Procs:     procs,
		Hostfile:  b.tools.Hostfile,
		ExtraArgs: b.tools.LauncherArgs,
	}
}

// Copy builds the copy tool invocation for a request.
func (b *Builder) Copy(req types.CopyRequest) Invocation {
	return b.CopyArgs(CopyArgsFor(req))
}

func (b *Builder) CopyArgs(a CopyArgs) Invocation {
	return Invocation{
		Tool:     ToolDcp,
		Launcher: b.launcher(b.tools.CopyProcs),
		Program:  b.tools.Dcp,
		Args:     a.Args(),
	}
}

func (b *Builder) Ior(a IorArgs) Invocation {
	return Invocation{
		Tool:     ToolIor,
		Launcher: b.launcher(b.tools.WorkloadProcs),
		Program:  b.tools.Ior,
		Args:     a.Args(),
	}
}

func (b *Builder) Mdtest(a MdtestArgs) Invocation {
	return Invocation{
		Tool:     ToolMdtest,
		Launcher: b.launcher(b.tools.WorkloadProcs),
		Program:  b.tools.Mdtest,
		Args:     a.Args(),
	}
}

func (b *Builder) PoolCreate(size int64) Invocation {
	return Invocation{Tool: ToolDmg, Program: b.tools.Dmg, Args: PoolCreateArgs(size)}
}

func (b *Builder) PoolDestroy(pool types.PoolID) Invocation {
	return Invocation{Tool: ToolDmg, Program: b.tools.Dmg, Args: PoolDestroyArgs(pool)}
}

func (b *Builder) ContainerCreate(pool types.PoolID, contType, nsPath string) Invocation {
	return Invocation{Tool: ToolDaos, Program: b.tools.Daos, Args: ContainerCreateArgs(pool, contType, nsPath)}
}

func (b *Builder) ContainerDestroy(pool types.PoolID, cont types.ContainerID) Invocation {
	return Invocation{Tool: ToolDaos, Program: b.tools.Daos, Args: ContainerDestroyArgs(pool, cont)}
}

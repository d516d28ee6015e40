package command

import (
	"strconv"

	"dmtest/pkg/types"
)

// Pool and container management go through the store's admin tools:
// dmg for pools, daos for containers.

func PoolCreateArgs(size int64) []string {
	return []string{"-j", "pool", "create", "--size", strconv.FormatInt(size, 10)}
}

func PoolDestroyArgs(pool types.PoolID) []string {
	return []string{"-j", "pool", "destroy", "--pool", string(pool), "--force"}
}

func ContainerCreateArgs(pool types.PoolID, contType, nsPath string) []string {
	args := []string{"container", "create", "--pool", string(pool)}
	if contType != "" {
		args = append(args, "--type", contType)
	}
	if nsPath != "" {
		args = append(args, "--path", nsPath)
	}
	return args
}

func ContainerDestroyArgs(pool types.PoolID, cont types.ContainerID) []string {
	return []string{"container", "destroy", "--pool", string(pool), "--cont", string(cont), "--force"}
}

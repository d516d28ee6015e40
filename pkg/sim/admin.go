package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"dmtest/pkg/types"
)

type dmgResponse struct {
	Response interface{} `json:"response"`
	Error    *string     `json:"error"`
	Status   int         `json:"status"`
}

type poolCreateResponse struct {
	UUID    string `json:"uuid"`
	SvcReps []int  `json:"svc_reps"`
}

// dmg supports "pool create --size N" and "pool destroy --pool ID".
func (r *Runner) dmg(_ context.Context, _ int, args []string, stdout io.Writer) error {
	fs := newFlagSet("dmg")
	jsonOut := fs.BoolP("json", "j", false, "")
	size := fs.Int64("size", 0, "")
	pool := fs.String("pool", "", "")
	fs.Bool("force", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) != 2 || rest[0] != "pool" {
		return fmt.Errorf("unsupported dmg command %v", rest)
	}

	switch rest[1] {
	case "create":
		if *size <= 0 {
			return fmt.Errorf("pool size must be positive")
		}
		id := r.store.CreatePool(*size)
		if *jsonOut {
			return json.NewEncoder(stdout).Encode(dmgResponse{
				Response: poolCreateResponse{UUID: string(id), SvcReps: []int{0}},
			})
		}
		_, err := fmt.Fprintf(stdout, "Pool created with UUID %s\n", id)
		return err
	case "destroy":
		if err := r.store.DestroyPool(types.PoolID(*pool)); err != nil {
			return err
		}
		if *jsonOut {
			return json.NewEncoder(stdout).Encode(dmgResponse{})
		}
		_, err := fmt.Fprintf(stdout, "Pool-destroy command succeeded\n")
		return err
	default:
		return fmt.Errorf("unsupported dmg pool command %q", rest[1])
	}
}

// daos supports "container create" and "container destroy". Creating
// with --path makes the directory and binds it to the new container.
func (r *Runner) daos(_ context.Context, _ int, args []string, stdout io.Writer) error {
	fs := newFlagSet("daos")
	pool := fs.String("pool", "", "")
	cont := fs.String("cont", "", "")
	contType := fs.String("type", "POSIX", "")
	nsPath := fs.String("path", "", "")
	fs.Bool("force", false, "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) != 2 || rest[0] != "container" {
		return fmt.Errorf("unsupported daos command %v", rest)
	}

	switch rest[1] {
	case "create":
		if *contType != "POSIX" {
			return fmt.Errorf("unsupported container type %q", *contType)
		}
		if *nsPath != "" {
			if err := os.Mkdir(*nsPath, 0o755); err != nil {
				return fmt.Errorf("failed to create namespace path: %w", err)
			}
		}
		id, err := r.store.CreateContainer(types.PoolID(*pool), types.ContainerID(*cont), *nsPath)
		if err != nil {
			if *nsPath != "" {
				os.Remove(*nsPath)
			}
			return err
		}
		_, err = fmt.Fprintf(stdout, "Successfully created container %s\n", id)
		return err
	case "destroy":
		if err := r.store.DestroyContainer(types.PoolID(*pool), types.ContainerID(*cont)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(stdout, "Successfully destroyed container %s\n", *cont)
		return err
	default:
		return fmt.Errorf("unsupported daos container command %q", rest[1])
	}
}

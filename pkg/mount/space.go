package mount

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

var ErrInsufficientSpace = errors.New("insufficient free space")

// FreeSpace returns the bytes available on the filesystem that holds p,
// or that will hold it once created.
func FreeSpace(p string) (uint64, error) {
	dir, err := existingAncestor(p)
	if err != nil {
		return 0, err
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to get usage of %s: %w", dir, err)
	}
	return usage.Free, nil
}

// CheckSpace fails with ErrInsufficientSpace when fewer than need bytes
// are free for p.
func CheckSpace(p string, need int64) error {
	free, err := FreeSpace(p)
	if err != nil {
		return err
	}
	if need > 0 && free < uint64(need) {
		return fmt.Errorf("%s: %w: need %d bytes, %d free", p, ErrInsufficientSpace, need, free)
	}
	return nil
}

func existingAncestor(p string) (string, error) {
	p, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor of %s", p)
		}
		p = parent
	}
}

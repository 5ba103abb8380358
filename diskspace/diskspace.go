// Package diskspace provides a small capability object for probing
// free/total bytes of a filesystem path and the size of a file, so the
// file cache's free-space reclaim loop can be driven deterministically
// in tests (spec.md §9).
package diskspace

import (
	"os"

	"golang.org/x/sys/unix"
)

// Usage reports free and total bytes for the filesystem backing path.
type Usage struct {
	Free  uint64
	Total uint64
}

// Probe abstracts filesystem free-space and file-size queries.
type Probe interface {
	// Usage returns the free/total bytes of the filesystem containing
	// path.
	Usage(path string) (Usage, error)

	// Size returns the size in bytes of the file at path.
	Size(path string) (int64, error)
}

// Real is a Probe backed by statfs(2) and os.Stat.
type Real struct{}

func (Real) Usage(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, err
	}
	bsize := uint64(st.Bsize)
	return Usage{
		Free:  st.Bavail * bsize,
		Total: st.Blocks * bsize,
	}, nil
}

func (Real) Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

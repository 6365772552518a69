//go:build unix

package artifact

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps size bytes of f into memory read-only.
func mapFile(f *os.File, size int) (data []byte, unmap func(b []byte) (err error), err error) {
	data, err = unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}

	return data, unix.Munmap, nil
}

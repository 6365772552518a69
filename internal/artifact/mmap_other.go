//go:build !unix

package artifact

import (
	"fmt"
	"io"
	"os"
)

// mapFile reads size bytes of f into memory.
func mapFile(f *os.File, size int) (data []byte, unmap func(b []byte) (err error), err error) {
	data = make([]byte, size)
	_, err = io.ReadFull(f, data)
	if err != nil {
		return nil, nil, fmt.Errorf("reading: %w", err)
	}

	return data, nil, nil
}

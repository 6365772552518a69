package artifact

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/AdguardTeam/golibs/errors"
)

// Mapped is an artifact mapped from a file.  Its contents alias the mapping
// and must not be used after Close.
type Mapped struct {
	// Contents are the decoded contents of the artifact.
	*Contents

	data   []byte
	unmap  func(b []byte) (err error)
	closed atomic.Bool
}

// Open maps the artifact file at path and decodes it.
func Open(path string) (m *Mapped, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}

	size := fi.Size()
	if size < int64(headerSize) {
		return nil, fmt.Errorf("opening artifact: %w: %d bytes", ErrTruncated, size)
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}

	m = &Mapped{
		data:  data,
		unmap: unmap,
	}

	m.Contents, err = Decode(data)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("decoding %q: %w", path, err), m.Close())
	}

	return m, nil
}

// Size returns the size of the mapped artifact in bytes.
func (m *Mapped) Size() (n int) {
	return len(m.data)
}

// Close releases the mapping.  It is safe to call more than once.
func (m *Mapped) Close() (err error) {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}

	err = m.unmap(m.data)
	if err != nil {
		return fmt.Errorf("unmapping artifact: %w", err)
	}

	return nil
}

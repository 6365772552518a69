package flatfilter

import (
	"sync/atomic"

	"github.com/AdguardTeam/flatfilter/internal/artifact"
	"github.com/AdguardTeam/flatfilter/internal/lookup"
	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/google/uuid"
)

// snapshot is an immutable compiled filter list published by an [Engine].
// Readers hold a reference while they use it, and the underlying artifact is
// released when the last reference is dropped.
type snapshot struct {
	// table is the lookup table over filters.
	table *lookup.Table

	// release frees the artifact data.  It is nil for in-memory snapshots.
	release func() (err error)

	// filters are the compiled filters in the order of the artifact.
	filters []*rules.NetworkFilter

	// stats are the statistics of the snapshot.
	stats Stats

	// refs is the number of references.  The engine holds one reference to
	// the current snapshot.
	refs atomic.Int64
}

// newSnapshot returns a snapshot of c with a single reference.  release may
// be nil.
func newSnapshot(
	c *artifact.Contents,
	release func() (err error),
	size int,
	source string,
) (s *snapshot, err error) {
	tbl, err := lookup.NewTable(c.Index, len(c.Filters))
	if err != nil {
		return nil, err
	}

	s = &snapshot{
		table:   tbl,
		release: release,
		filters: c.Filters,
		stats: Stats{
			BuildID:     c.Header.BuildID,
			Source:      source,
			Compression: c.Header.Compression.String(),
			Filters:     len(c.Filters),
			Buckets:     tbl.Buckets(),
			Capacity:    tbl.Capacity(),
			Size:        size,
			Version:     c.Header.Version,
		},
	}
	s.refs.Store(1)

	return s, nil
}

// tryIncRef adds a reference unless the snapshot has already been released.
func (s *snapshot) tryIncRef() (ok bool) {
	for {
		refs := s.refs.Load()
		if refs <= 0 {
			return false
		}

		if s.refs.CompareAndSwap(refs, refs+1) {
			return true
		}
	}
}

// decRef drops a reference and releases the artifact when it was the last
// one.
func (s *snapshot) decRef() (err error) {
	if s.refs.Add(-1) != 0 || s.release == nil {
		return nil
	}

	return s.release()
}

// Stats are the statistics of the currently published filter list.
type Stats struct {
	// Source is the path of the artifact file or "memory".
	Source string

	// Compression is the compression of the records section.
	Compression string

	// Filters is the number of compiled filters.
	Filters int

	// Buckets is the number of shortcut buckets in the lookup table.
	Buckets int

	// Capacity is the number of slots in the lookup table.
	Capacity int

	// Size is the size of the artifact in bytes.
	Size int

	// BuildID identifies the compilation that produced the artifact.
	BuildID uuid.UUID

	// Version is the index format version of the artifact.
	Version uint32
}

package lookup

import (
	"fmt"
	"slices"

	"github.com/AdguardTeam/flatfilter/filterutil"
	"github.com/AdguardTeam/flatfilter/internal/flatindex"
)

// Table answers lookups over [Arrays].  The arrays are borrowed, possibly from
// a memory-mapped file, and are never modified.  A Table is safe for
// concurrent use.
type Table struct {
	index    *flatindex.View[uint32, uint32]
	offsets  []uint32
	postings []uint32
	other    []uint32
}

// NewTable validates a and returns a table over it.  filters is the number of
// filters the indexes in a refer to.
func NewTable(a *Arrays, filters int) (t *Table, err error) {
	index, err := flatindex.NewView(a.Keys, a.Values)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}

	err = validateArrays(a, filters)
	if err != nil {
		return nil, err
	}

	return &Table{
		index:    index,
		offsets:  a.Offsets,
		postings: a.Postings,
		other:    a.Other,
	}, nil
}

// validateArrays checks that every bucket of a is within its postings and that
// every filter index is less than filters.
func validateArrays(a *Arrays, filters int) (err error) {
	if len(a.Offsets) == 0 {
		return fmt.Errorf("%w: no offsets", ErrBadArrays)
	}

	prev := a.Offsets[0]
	if prev != 0 {
		return fmt.Errorf("%w: first offset is %d", ErrBadArrays, prev)
	}

	for i, off := range a.Offsets[1:] {
		if off < prev {
			return fmt.Errorf("%w: offset %d is %d, want at least %d", ErrBadArrays, i+1, off, prev)
		}

		prev = off
	}

	if int(prev) != len(a.Postings) {
		return fmt.Errorf("%w: last offset is %d, postings: %d", ErrBadArrays, prev, len(a.Postings))
	}

	buckets := uint32(a.Buckets())
	for i, k := range a.Keys {
		if k != 0 && a.Values[i] >= buckets {
			return fmt.Errorf("%w: slot %d: bucket %d out of range", ErrBadArrays, i, a.Values[i])
		}
	}

	err = validateIndexes("posting", a.Postings, filters)
	if err != nil {
		return err
	}

	return validateIndexes("other", a.Other, filters)
}

// validateIndexes checks that every filter index in idxs is less than filters.
func validateIndexes(name string, idxs []uint32, filters int) (err error) {
	for i, idx := range idxs {
		if uint64(idx) >= uint64(filters) {
			return fmt.Errorf("%w: %s %d: filter %d out of range, filters: %d", ErrBadArrays, name, i, idx, filters)
		}
	}

	return nil
}

// Capacity returns the number of slots of the key index.
func (t *Table) Capacity() (n int) {
	return t.index.Capacity()
}

// Buckets returns the number of distinct shortcuts.
func (t *Table) Buckets() (n int) {
	return len(t.offsets) - 1
}

// Bucket returns the indexes of the filters stored under key.  Callers must
// not modify the returned slice.
func (t *Table) Bucket(key uint32) (idxs []uint32) {
	b, ok := t.index.Get(key)
	if !ok {
		return nil
	}

	return t.postings[t.offsets[b]:t.offsets[b+1]]
}

// Other returns the indexes of the filters without a shortcut.  Callers must
// not modify the returned slice.
func (t *Table) Other() (idxs []uint32) {
	return t.other
}

// Candidates returns the sorted, deduplicated indexes of the filters which may
// match urlLower, the lowercased request URL.
func (t *Table) Candidates(urlLower string) (idxs []uint32) {
	idxs = slices.Clone(t.other)
	for i := 0; i <= len(urlLower)-shortcutLength; i++ {
		key := filterutil.KeyBetween(urlLower, i, i+shortcutLength)
		idxs = append(idxs, t.Bucket(key)...)
	}

	slices.Sort(idxs)

	return slices.Compact(idxs)
}

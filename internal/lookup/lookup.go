// Package lookup implements the shortcut index that narrows the set of
// network filters which have to be evaluated against a request URL.
//
// Each indexable filter is stored under one "shortcut": a hash of a substring
// of shortcutLength bytes taken from one of its literals.  At match time,
// every substring of the same length of the lowercased URL is hashed and
// looked up, so only the filters sharing a shortcut with the URL are returned
// as candidates.  Filters without a usable shortcut are always candidates.
package lookup

import (
	"github.com/AdguardTeam/golibs/errors"
)

// shortcutLength is the length of the substrings used as keys.
const shortcutLength = 5

// ErrBadArrays is returned by [NewTable] for inconsistent arrays.
const ErrBadArrays errors.Error = "lookup: inconsistent arrays"

// Arrays is the flat representation of the index.  Every field is a plain
// array, so that it can be persisted and used without parsing.
type Arrays struct {
	// Keys are the shortcut hashes of the slot layout produced by
	// flatindex.Builder.Consume.
	Keys []uint32

	// Values are the bucket numbers of the corresponding keys.
	Values []uint32

	// Offsets are the bounds of the buckets within Postings: bucket i is
	// Postings[Offsets[i]:Offsets[i+1]].  It has one more element than there
	// are buckets.
	Offsets []uint32

	// Postings are the concatenated buckets.  Each element is an index of a
	// filter within the slice passed to [Build].
	Postings []uint32

	// Other are the indexes of the filters without a shortcut.
	Other []uint32
}

// Buckets returns the number of buckets.
func (a *Arrays) Buckets() (n int) {
	return max(len(a.Offsets)-1, 0)
}

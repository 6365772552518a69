package flatindex

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrBadLayout is returned by [NewView] for arrays that cannot come from a
// [Builder].
const ErrBadLayout errors.Error = "flatindex: bad slot layout"

// View is an immutable index over arrays produced by [Builder.Consume].  The
// arrays are borrowed and never modified, so a View is safe for concurrent
// use as long as the memory behind them stays valid.
type View[K Key, V any] struct {
	keys   []K
	values []V
}

// type check
var _ slotKeys[uint32] = (*View[uint32, struct{}])(nil)

// NewView wraps keys and values.  They must have the same length, which must
// be zero or a power of two, and at least one key must be empty.
func NewView[K Key, V any](keys []K, values []V) (v *View[K, V], err error) {
	switch n := len(keys); {
	case n != len(values):
		return nil, fmt.Errorf("%w: %d keys and %d values", ErrBadLayout, n, len(values))
	case n == 0:
		return &View[K, V]{}, nil
	case !isPowerOfTwo(n):
		return nil, fmt.Errorf("%w: capacity %d is not a power of two", ErrBadLayout, n)
	}

	// A corrupted array without empty slots would make every missing key
	// probe forever.
	for _, k := range keys {
		if k == 0 {
			return &View[K, V]{keys: keys, values: values}, nil
		}
	}

	return nil, fmt.Errorf("%w: no empty slots", ErrBadLayout)
}

// Len implements the slotKeys interface for *View.
func (v *View[K, V]) Len() (n int) {
	return len(v.keys)
}

// KeyAt implements the slotKeys interface for *View.
func (v *View[K, V]) KeyAt(i int) (k K) {
	return v.keys[i]
}

// Capacity returns the number of slots, which is the length of the key array.
func (v *View[K, V]) Capacity() (n int) {
	return len(v.keys)
}

// Get returns the value of the first slot holding k on its probe sequence.
// The zero key is never found.
func (v *View[K, V]) Get(k K) (val V, ok bool) {
	if k == 0 || len(v.keys) == 0 {
		return val, false
	}

	i, found := probe[K](v, k, true)
	if !found {
		return val, false
	}

	return v.values[i], true
}

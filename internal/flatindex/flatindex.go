// Package flatindex implements an open-addressed hash index whose build-time
// layout is identical to its read-time layout.
//
// A [Builder] accumulates entries into two parallel arrays, keys and values,
// and hands them over with [Builder.Consume].  A [View] wraps the same arrays,
// usually borrowed from a memory-mapped file, and answers lookups without
// copying or parsing them.  Both use the single probe function of this
// package, so the probe sequences cannot diverge.
//
// The zero value of the key type marks an empty slot and is never a valid
// key.  An alternative is a separate presence bitmap per slot, which would
// free up the zero key at the cost of one more memory access per probe and
// one more persisted array.  The index uses the sentinel layout, and any move
// to a bitmap is a format change.
package flatindex

import (
	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/exp/constraints"
)

// FormatVersion is the revision of the slot layout: the hash function, the
// probe sequence, and the sentinel convention.  Any change to them must bump
// it, because persisted indexes would otherwise silently stop finding keys.
const FormatVersion uint32 = 1

// Key is the constraint for index keys.  The zero value is reserved.
type Key interface {
	constraints.Unsigned
}

// errSentinelKey is the panic value for inserting the reserved key.
const errSentinelKey errors.Error = "flatindex: inserting the sentinel key"

// slotKeys is the part of a slot array that probing needs.  It is
// implemented by both [Builder] and [View].
type slotKeys[K Key] interface {
	// Len returns the capacity.  It is always zero or a power of two.
	Len() (n int)

	// KeyAt returns the key in slot i.
	KeyAt(i int) (k K)
}

// hash mixes the bits of k with the finalizer of SplitMix64, so that
// sequential keys spread over the low bits used for masking.
func hash[K Key](k K) (h uint64) {
	h = uint64(k)
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31

	return h
}

// probe walks the slots of s starting at hash(k) with steps 1, 2, 3, and so
// on.  It stops at the first empty slot, or, if stopAtKey is true, at the
// first slot holding k.  found reports whether the returned slot holds k.
//
// The capacity must be a power of two and the table must have at least one
// empty slot.  Triangular steps over a power-of-two capacity visit every slot,
// so the loop terminates.
func probe[K Key](s slotKeys[K], k K, stopAtKey bool) (i int, found bool) {
	mask := uint64(s.Len() - 1)
	idx := hash(k) & mask
	for step := uint64(1); ; step++ {
		cur := s.KeyAt(int(idx))
		if cur == 0 {
			return int(idx), false
		} else if stopAtKey && cur == k {
			return int(idx), true
		}

		idx = (idx + step) & mask
	}
}

// isPowerOfTwo returns true if n is a positive power of two.
func isPowerOfTwo(n int) (ok bool) {
	return n > 0 && n&(n-1) == 0
}

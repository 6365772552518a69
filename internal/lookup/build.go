package lookup

import (
	"math"
	"strings"

	"github.com/AdguardTeam/flatfilter/filterutil"
	"github.com/AdguardTeam/flatfilter/internal/flatindex"
	"github.com/AdguardTeam/flatfilter/rules"
)

// builder accumulates the buckets during [Build].
type builder struct {
	// keys maps shortcut hashes to bucket numbers.
	keys *flatindex.Builder[uint32, uint32]

	// histogram counts the filters stored under each shortcut.  It helps to
	// choose the least used shortcut of a literal.
	histogram *flatindex.Builder[uint32, int]

	buckets [][]uint32
	other   []uint32
}

// Build creates the index arrays for filters.  The indexes in the result refer
// to positions within filters.
func Build(filters []*rules.NetworkFilter) (a *Arrays) {
	b := &builder{
		keys:      flatindex.NewBuilder[uint32, uint32](len(filters)),
		histogram: flatindex.NewBuilder[uint32, int](len(filters)),
	}

	for i, f := range filters {
		b.add(f, uint32(i))
	}

	keys, values := b.keys.Consume()
	a = &Arrays{
		Keys:    keys,
		Values:  values,
		Offsets: make([]uint32, 0, len(b.buckets)+1),
		Other:   b.other,
	}

	var off uint32
	a.Offsets = append(a.Offsets, off)
	for _, bucket := range b.buckets {
		a.Postings = append(a.Postings, bucket...)
		off += uint32(len(bucket))
		a.Offsets = append(a.Offsets, off)
	}

	return a
}

// add stores the filter with the index idx under the shortcut of each of its
// literals.  If any literal has no shortcut, the filter goes to other.
func (b *builder) add(f *rules.NetworkFilter, idx uint32) {
	literals := filterLiterals(f)
	if len(literals) == 0 {
		b.other = append(b.other, idx)

		return
	}

	keys := make([]uint32, 0, len(literals))
	for _, lit := range literals {
		k, ok := b.shortcutKey(lit)
		if !ok {
			b.other = append(b.other, idx)

			return
		}

		keys = append(keys, k)
	}

	for _, k := range keys {
		count, _ := b.histogram.Get(k)
		b.histogram.Insert(k, count+1, false)

		bucketID := b.keys.GetOrInsert(k, uint32(len(b.buckets)))
		if int(bucketID) == len(b.buckets) {
			b.buckets = append(b.buckets, nil)
		}

		// Several literals of an AnyOf pattern may share a shortcut.
		bucket := b.buckets[bucketID]
		if n := len(bucket); n > 0 && bucket[n-1] == idx {
			continue
		}

		b.buckets[bucketID] = append(bucket, idx)
	}
}

// shortcutKey returns the key of the least used substring of shortcutLength
// bytes of the shortcut of lit.
func (b *builder) shortcutKey(lit string) (key uint32, ok bool) {
	sc := findShortcut(lit)
	if len(sc) < shortcutLength || isAnyURLShortcut(sc) {
		return 0, false
	}

	minCount := math.MaxInt
	for i := 0; i <= len(sc)-shortcutLength; i++ {
		k := filterutil.KeyBetween(sc, i, i+shortcutLength)
		count, _ := b.histogram.Get(k)
		if count < minCount {
			minCount, key = count, k
		}
	}

	return key, true
}

// filterLiterals returns the strings the shortcuts of f are taken from.
// Regular expressions have none, and hostname-anchored filters without a
// pattern use their hostname.
func filterLiterals(f *rules.NetworkFilter) (literals []string) {
	if f.IsCompleteRegex() {
		return nil
	}

	if f.Filter.IsEmpty() && f.Hostname != "" {
		return []string{f.Hostname}
	}

	return f.Filter.Literals()
}

// findShortcut returns the longest part of lit without wildcards and
// separators.
func findShortcut(lit string) (sc string) {
	for _, part := range strings.FieldsFunc(lit, isSpecial) {
		if len(part) > len(sc) {
			sc = part
		}
	}

	return sc
}

// isSpecial returns true for the characters which may not be a part of a
// shortcut.
func isSpecial(c rune) (ok bool) {
	return c == '*' || c == '^' || c == '|'
}

// isAnyURLShortcut checks if the shortcut potentially matches too many URLs.
func isAnyURLShortcut(sc string) (ok bool) {
	switch scLen := len(sc); {
	case
		scLen < len("ws://")+1 && strings.HasPrefix(sc, "ws:"),
		scLen < len("wss://")+1 && strings.HasPrefix(sc, "wss:"),
		scLen < len("https://")+1 && strings.HasPrefix(sc, "http"):
		return true
	default:
		return false
	}
}

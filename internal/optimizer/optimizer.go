// Package optimizer reduces the number of network filters by fusing filters
// that only differ in their patterns.
package optimizer

import (
	"cmp"
	"slices"
	"strings"

	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// errEmptyGroup is the panic value for fusing a group without members.
const errEmptyGroup errors.Error = "optimizer: fusing an empty group"

// groupKey is the part of a filter that must be equal for filters to be fused.
// The regex bit is excluded, since fusion merges it.
//
// TODO: Confirm that literal and wildcard patterns with otherwise
// equal flags should share a group.  See TestOptimize_regexCoGrouping.
type groupKey struct {
	mask            rules.Mask
	isCompleteRegex bool
}

// newGroupKey returns the grouping key of f.
func newGroupKey(f *rules.NetworkFilter) (k groupKey) {
	return groupKey{
		mask:            f.Mask &^ rules.MaskIsRegex,
		isCompleteRegex: f.IsCompleteRegex(),
	}
}

// Optimize returns filters with every group of fusable filters sharing the
// same flags merged into a single filter.  The result is sorted by ID.
// filters must have unique IDs and are not modified; the returned slice may
// contain the same pointers for filters that have not been fused.
func Optimize(filters []*rules.NetworkFilter) (res []*rules.NetworkFilter) {
	res = make([]*rules.NetworkFilter, 0, len(filters))

	var order []groupKey
	groups := map[groupKey][]*rules.NetworkFilter{}
	for _, f := range filters {
		if !f.IsFusable() {
			res = append(res, f)

			continue
		}

		k := newGroupKey(f)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}

		groups[k] = append(groups[k], f)
	}

	for _, k := range order {
		g := groups[k]
		if len(g) == 1 {
			res = append(res, g[0])
		} else {
			res = append(res, fuse(g))
		}
	}

	slices.SortFunc(res, func(a, b *rules.NetworkFilter) (c int) {
		return cmp.Compare(a.ID, b.ID)
	})

	return res
}

// fuse merges the members of group into a new filter.  group must not be
// empty and its members must share the grouping key.
func fuse(group []*rules.NetworkFilter) (f *rules.NetworkFilter) {
	if len(group) == 0 {
		panic(errEmptyGroup)
	}

	f = group[0].Clone()

	var literals []string
	var raw []string
	isEmpty := false
	for _, m := range group {
		f.ID = min(f.ID, m.ID)
		f.Mask |= m.Mask & (rules.MaskIsRegex | rules.MaskIsCompleteRegex)

		if m.RawLine != "" {
			raw = append(raw, m.RawLine)
		}

		if m.Filter.IsEmpty() {
			isEmpty = true
		} else if !isEmpty {
			literals = append(literals, m.Filter.Literals()...)
		}
	}

	if isEmpty {
		f.Filter = rules.EmptyPart()
	} else {
		f.Filter = rules.PartFromLiterals(literals)
	}

	f.RawLine = strings.Join(raw, rules.RawLineSeparator)

	return f
}

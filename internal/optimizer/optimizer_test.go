package optimizer_test

import (
	"testing"

	"github.com/AdguardTeam/flatfilter/internal/optimizer"
	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMask is a mask of a plain blocking filter.
const testMask = rules.MaskDefaultOptions

// newFilter returns a fusable filter with the given pattern.
func newFilter(id uint64, mask rules.Mask, p rules.FilterPart) (f *rules.NetworkFilter) {
	return &rules.NetworkFilter{
		ID:     id,
		Mask:   mask,
		Filter: p,
	}
}

// ids returns the IDs of filters.
func ids(filters []*rules.NetworkFilter) (res []uint64) {
	for _, f := range filters {
		res = append(res, f.ID)
	}

	return res
}

func TestOptimize_example(t *testing.T) {
	t.Parallel()

	passthrough := newFilter(3, testMask|rules.MaskIsHostnameAnchor, rules.SimplePart("baz"))
	passthrough.Hostname = "example.org"

	in := []*rules.NetworkFilter{
		newFilter(0, testMask, rules.SimplePart("foo")),
		newFilter(1, testMask, rules.SimplePart("bar")),
		newFilter(2, testMask, rules.SimplePart("foo")),
		passthrough,
	}

	out := optimizer.Optimize(in)
	require.Len(t, out, 2)

	fused := out[0]
	assert.Equal(t, uint64(0), fused.ID)
	assert.Equal(t, rules.PartAnyOf, fused.Filter.Kind())
	assert.Equal(t, []string{"foo", "bar", "foo"}, fused.Filter.Literals())
	assert.Equal(t, testMask, fused.Mask)

	assert.Same(t, passthrough, out[1])

	// The input is not modified.
	assert.Equal(t, []string{"foo"}, in[0].Filter.Literals())
}

func TestOptimize_parsed(t *testing.T) {
	t.Parallel()

	lines := []string{
		"-advert-",
		"/track.gif",
		"||example.org^",
		"/banner.$domain=example.com",
		"pixel.png",
	}

	in := make([]*rules.NetworkFilter, 0, len(lines))
	for i, l := range lines {
		f, err := rules.NewNetworkFilter(l, uint64(i), true)
		require.NoError(t, err)
		require.NotNil(t, f)

		in = append(in, f)
	}

	out := optimizer.Optimize(in)
	require.Len(t, out, 3)

	assert.Equal(t, []uint64{0, 2, 3}, ids(out))

	fused := out[0]
	assert.Equal(t, []string{"-advert-", "/track.gif", "pixel.png"}, fused.Filter.Literals())
	assert.Equal(t, in[0].Mask|in[1].Mask|in[4].Mask, fused.Mask)
	assert.Equal(t, []string{"-advert-", "/track.gif", "pixel.png"}, fused.RawLines())
	assert.Equal(t, "-advert- <+> /track.gif <+> pixel.png", fused.String())
}

func TestOptimize_semantics(t *testing.T) {
	t.Parallel()

	in := []*rules.NetworkFilter{
		newFilter(10, testMask, rules.SimplePart("ads")),
		newFilter(11, testMask, rules.SimplePart("track")),
	}

	out := optimizer.Optimize(in)
	require.Len(t, out, 1)

	fused := out[0]
	assert.Equal(t, uint64(10), fused.ID)
	assert.Equal(t, rules.PartAnyOf, fused.Filter.Kind())
	assert.Equal(t, []string{"ads", "track"}, fused.Filter.Literals())
	assert.Equal(t, in[0].Mask|in[1].Mask, fused.Mask)

	// Every request matched by one of the inputs is matched by the result.
	for _, f := range in {
		assert.Subset(t, fused.Filter.Literals(), f.Filter.Literals())
	}
}

func TestOptimize_absorbingEmpty(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		parts []rules.FilterPart
	}{{
		name: "first",
		parts: []rules.FilterPart{
			rules.EmptyPart(),
			rules.SimplePart("a"),
			rules.SimplePart("b"),
		},
	}, {
		name: "middle",
		parts: []rules.FilterPart{
			rules.SimplePart("a"),
			rules.EmptyPart(),
			rules.AnyOfPart([]string{"b", "c"}),
		},
	}, {
		name: "last",
		parts: []rules.FilterPart{
			rules.SimplePart("a"),
			rules.EmptyPart(),
		},
	}, {
		name: "all",
		parts: []rules.FilterPart{
			rules.EmptyPart(),
			rules.EmptyPart(),
		},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in := make([]*rules.NetworkFilter, 0, len(tc.parts))
			for i, p := range tc.parts {
				in = append(in, newFilter(uint64(i), testMask, p))
			}

			out := optimizer.Optimize(in)
			require.Len(t, out, 1)

			assert.True(t, out[0].Filter.IsEmpty())
			assert.Equal(t, uint64(0), out[0].ID)
		})
	}
}

func TestOptimize_idempotent(t *testing.T) {
	t.Parallel()

	in := []*rules.NetworkFilter{
		newFilter(0, testMask, rules.SimplePart("a")),
		newFilter(1, testMask|rules.MaskIsException, rules.SimplePart("b")),
		newFilter(2, testMask, rules.SimplePart("c")),
		newFilter(3, testMask|rules.MaskIsException, rules.SimplePart("d")),
		newFilter(4, testMask|rules.MaskIsImportant, rules.SimplePart("e")),
	}

	once := optimizer.Optimize(in)
	twice := optimizer.Optimize(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, []uint64{0, 1, 4}, ids(once))
}

func TestOptimize_order(t *testing.T) {
	t.Parallel()

	redirect := newFilter(1, testMask|rules.MaskIsRedirect, rules.SimplePart("r"))
	redirect.ModifierOption = "noopjs"

	csp := newFilter(4, testMask|rules.MaskIsCSP, rules.EmptyPart())
	csp.ModifierOption = "script-src 'none'"

	domain := newFilter(6, testMask, rules.SimplePart("d"))
	domain.OptDomains = []uint32{1}

	tagged := newFilter(7, testMask, rules.SimplePart("t"))
	tagged.Tag = "keep"

	in := []*rules.NetworkFilter{
		newFilter(0, testMask, rules.SimplePart("a")),
		redirect,
		newFilter(2, testMask&^rules.MaskFirstParty, rules.SimplePart("b")),
		newFilter(3, testMask|rules.MaskIsException, rules.SimplePart("c")),
		csp,
		newFilter(5, testMask, rules.SimplePart("e")),
		domain,
		tagged,
		newFilter(8, testMask|rules.MaskIsException, rules.SimplePart("f")),
	}

	out := optimizer.Optimize(in)

	// Fused filters keep their smallest ID, so the other IDs of their groups
	// are the only ones missing.
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 6, 7}, ids(out))
	assert.IsIncreasing(t, ids(out))

	assert.Same(t, redirect, out[1])
	assert.Same(t, in[2], out[2])
	assert.Same(t, csp, out[4])
	assert.Same(t, domain, out[5])
	assert.Same(t, tagged, out[6])

	total := 0
	for _, f := range out {
		total += max(f.Filter.Len(), 1)
	}

	assert.Equal(t, len(in), total)
}

func TestOptimize_empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, optimizer.Optimize(nil))
}

// TestOptimize_regexCoGrouping pins the current grouping of literal and
// wildcard patterns.  The regex bit is not a part of the grouping key, so a
// plain literal may end up in a filter that requires regex evaluation.
func TestOptimize_regexCoGrouping(t *testing.T) {
	t.Parallel()

	literal := newFilter(0, testMask, rules.SimplePart("ads"))
	wildcard := newFilter(1, testMask|rules.MaskIsRegex, rules.SimplePart("ad*s"))
	complete := newFilter(2, testMask|rules.MaskIsCompleteRegex, rules.SimplePart("/ad+s/"))

	out := optimizer.Optimize([]*rules.NetworkFilter{literal, wildcard, complete})
	require.Len(t, out, 2)

	fused := out[0]
	assert.Equal(t, []string{"ads", "ad*s"}, fused.Filter.Literals())
	assert.True(t, fused.IsRegex())
	assert.False(t, fused.IsCompleteRegex())

	assert.Same(t, complete, out[1])
}

package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/flatfilter/filterutil"
	"github.com/AdguardTeam/flatfilter/internal/lookup"
	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFilters parses lines into filters with IDs equal to their indexes.
func newFilters(tb testing.TB, lines ...string) (filters []*rules.NetworkFilter) {
	tb.Helper()

	for i, l := range lines {
		f, err := rules.NewNetworkFilter(l, uint64(i), true)
		require.NoError(tb, err)
		require.NotNil(tb, f)

		filters = append(filters, f)
	}

	return filters
}

// newTable builds a table over filters.
func newTable(tb testing.TB, filters []*rules.NetworkFilter) (tbl *lookup.Table) {
	tb.Helper()

	tbl, err := lookup.NewTable(lookup.Build(filters), len(filters))
	require.NoError(tb, err)

	return tbl
}

// key returns the lookup key of s.
func key(s string) (k uint32) {
	return filterutil.KeyBetween(s, 0, len(s))
}

func TestTable_Candidates(t *testing.T) {
	t.Parallel()

	filters := newFilters(
		t,
		"||example.org^",
		"/ads/banner.gif",
		"ads",
		"/Banner/",
		"$script",
		"track",
		"http://",
	)

	// An AnyOf pattern whose literals share the shortcut.
	filters[5] = &rules.NetworkFilter{
		Filter: rules.AnyOfPart([]string{"tracker", "tracker-pixel"}),
		ID:     5,
		Mask:   rules.MaskDefaultOptions,
	}

	tbl := newTable(t, filters)

	assert.Equal(t, []uint32{2, 3, 4, 6}, tbl.Other())
	assert.Equal(t, 3, tbl.Buckets())
	assert.Equal(t, []uint32{5}, tbl.Bucket(key("track")))

	testCases := []struct {
		name string
		url  string
		want []uint32
	}{{
		name: "hostname_and_path",
		url:  "https://example.org/ads/banner.gif",
		want: []uint32{0, 1, 2, 3, 4, 6},
	}, {
		name: "any_of",
		url:  "https://tracker.net/",
		want: []uint32{2, 3, 4, 5, 6},
	}, {
		name: "repeated",
		url:  "https://tracker.net/tracker",
		want: []uint32{2, 3, 4, 5, 6},
	}, {
		name: "short",
		url:  "ab",
		want: []uint32{2, 3, 4, 6},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tbl.Candidates(tc.url))
		})
	}
}

func TestBuild_leastUsedShortcut(t *testing.T) {
	t.Parallel()

	filters := newFilters(t, "banner-top", "banner-side", "banner-left")
	a := lookup.Build(filters)
	tbl := newTable(t, filters)

	assert.Equal(t, []uint32{0}, tbl.Bucket(key("banne")))
	assert.Equal(t, []uint32{1}, tbl.Bucket(key("anner")))
	assert.Equal(t, []uint32{2}, tbl.Bucket(key("nner-")))

	assert.Equal(t, 3, a.Buckets())
	assert.Equal(t, []uint32{0, 1, 2, 3}, a.Offsets)
	assert.Empty(t, a.Other)

	// The slot layout keeps the load factor.
	occupied := 0
	for _, k := range a.Keys {
		if k != 0 {
			occupied++
		}
	}

	assert.Equal(t, 3, occupied)
	assert.LessOrEqual(t, 2*occupied, len(a.Keys))
}

func TestBuild_empty(t *testing.T) {
	t.Parallel()

	a := lookup.Build(nil)
	assert.Equal(t, []uint32{0}, a.Offsets)
	assert.Zero(t, a.Buckets())

	tbl, err := lookup.NewTable(a, 0)
	require.NoError(t, err)

	assert.Empty(t, tbl.Candidates("https://example.org/"))
}

func TestNewTable_errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		arrays     *lookup.Arrays
		name       string
		wantErrMsg string
	}{{
		arrays: &lookup.Arrays{
			Keys:   []uint32{0, 1, 0},
			Values: []uint32{0, 0, 0},
		},
		name:       "bad_capacity",
		wantErrMsg: "lookup: flatindex: bad slot layout: capacity 3 is not a power of two",
	}, {
		arrays: &lookup.Arrays{
			Keys:   []uint32{0, 0},
			Values: []uint32{0, 0},
		},
		name:       "no_offsets",
		wantErrMsg: "lookup: inconsistent arrays: no offsets",
	}, {
		arrays: &lookup.Arrays{
			Keys:    []uint32{0, 0},
			Values:  []uint32{0, 0},
			Offsets: []uint32{1, 1},
		},
		name:       "first_offset",
		wantErrMsg: "lookup: inconsistent arrays: first offset is 1",
	}, {
		arrays: &lookup.Arrays{
			Keys:     []uint32{0, 0},
			Values:   []uint32{0, 0},
			Offsets:  []uint32{0, 2, 1},
			Postings: []uint32{0},
		},
		name:       "decreasing",
		wantErrMsg: "lookup: inconsistent arrays: offset 2 is 1, want at least 2",
	}, {
		arrays: &lookup.Arrays{
			Keys:     []uint32{0, 0},
			Values:   []uint32{0, 0},
			Offsets:  []uint32{0, 2},
			Postings: []uint32{0},
		},
		name:       "postings",
		wantErrMsg: "lookup: inconsistent arrays: last offset is 2, postings: 1",
	}, {
		arrays: &lookup.Arrays{
			Keys:     []uint32{0, 7},
			Values:   []uint32{0, 1},
			Offsets:  []uint32{0, 1},
			Postings: []uint32{0},
		},
		name:       "bucket",
		wantErrMsg: "lookup: inconsistent arrays: slot 1: bucket 1 out of range",
	}, {
		arrays: &lookup.Arrays{
			Keys:     []uint32{0, 7},
			Values:   []uint32{0, 0},
			Offsets:  []uint32{0, 1},
			Postings: []uint32{7},
		},
		name:       "posting_filter",
		wantErrMsg: "lookup: inconsistent arrays: posting 0: filter 7 out of range, filters: 2",
	}, {
		arrays: &lookup.Arrays{
			Keys:    []uint32{0, 0},
			Values:  []uint32{0, 0},
			Offsets: []uint32{0},
			Other:   []uint32{0, 2},
		},
		name:       "other_filter",
		wantErrMsg: "lookup: inconsistent arrays: other 1: filter 2 out of range, filters: 2",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tbl, err := lookup.NewTable(tc.arrays, 2)
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)

			assert.Nil(t, tbl)
		})
	}
}

func BenchmarkTable_Candidates(b *testing.B) {
	lines := []string{
		"||example.org^",
		"/ads/banner.gif",
		"-advert-",
		"/track.gif",
		"||tracker.net^$third-party",
		"/pixel/*/img.png",
	}

	tbl := newTable(b, newFilters(b, lines...))

	const url = "https://www.example.org/static/ads/banner.gif?utm_source=test"

	var idxs []uint32

	b.ReportAllocs()
	for b.Loop() {
		idxs = tbl.Candidates(url)
	}

	require.NotEmpty(b, idxs)

	// Most recent results:
	//
	// goos: linux
	// goarch: amd64
	// pkg: github.com/AdguardTeam/flatfilter/internal/lookup
	// cpu: AMD Ryzen 7 PRO 4750U with Radeon Graphics
	// BenchmarkTable_Candidates-16    	 1364712	       879.2 ns/op	      16 B/op	       2 allocs/op
}

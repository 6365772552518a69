package flatfilter_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AdguardTeam/flatfilter"
	"github.com/AdguardTeam/flatfilter/filterlist"
	"github.com/AdguardTeam/flatfilter/internal/artifact"
	"github.com/AdguardTeam/flatfilter/internal/lookup"
	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRules are the rules of the test list.
const testRules = `! Test list
||example.org^
/banner.gif
-advert-
/track.gif
@@||example.org/allowed$script
example.org##.banner
`

// testURL is the URL matched in tests.
const testURL = "https://EXAMPLE.org/banner.gif"

// newEngine returns a new engine for tests which is closed on cleanup.
func newEngine(tb testing.TB, c *flatfilter.Config) (e *flatfilter.Engine) {
	tb.Helper()

	c.Logger = slogutil.NewDiscardLogger()
	c.KeepRawText = true

	e, err := flatfilter.New(c)
	require.NoError(tb, err)
	testutil.CleanupAndRequireSuccess(tb, e.Close)

	return e
}

// newLists returns the rule lists with the test rules.
func newLists() (lists []filterlist.RuleList) {
	return []filterlist.RuleList{&filterlist.StringRuleList{
		RulesText:   testRules,
		ID:          1,
		KeepRawText: true,
	}}
}

// filterTexts returns the texts of filters.
func filterTexts(filters []*rules.NetworkFilter) (texts []string) {
	for _, f := range filters {
		texts = append(texts, f.String())
	}

	return texts
}

func TestEngine_Compile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		want        []string
		optimize    bool
		wantFilters int
	}{{
		name:        "plain",
		want:        []string{"||example.org^", "/banner.gif"},
		optimize:    false,
		wantFilters: 5,
	}, {
		name:        "optimized",
		want:        []string{"||example.org^", "/banner.gif <+> -advert- <+> /track.gif"},
		optimize:    true,
		wantFilters: 3,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, &flatfilter.Config{
				Compression: "zstd",
				Optimize:    tc.optimize,
			})

			err := e.Compile(context.Background(), newLists())
			require.NoError(t, err)

			assert.Equal(t, tc.want, filterTexts(e.Candidates(testURL)))

			st, ok := e.Stats()
			require.True(t, ok)

			assert.Equal(t, tc.wantFilters, st.Filters)
			assert.Equal(t, "memory", st.Source)
			assert.Equal(t, "zstd", st.Compression)
			assert.Equal(t, uint32(1), st.Version)
			assert.Positive(t, st.Size)
		})
	}
}

func TestEngine_Compile_file(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filters.flt")

	e := newEngine(t, &flatfilter.Config{
		ArtifactPath: path,
		Compression:  "lz4",
		Optimize:     true,
	})

	err := e.Compile(context.Background(), newLists())
	require.NoError(t, err)

	compiled, ok := e.Stats()
	require.True(t, ok)

	assert.Equal(t, path, compiled.Source)

	loader := newEngine(t, &flatfilter.Config{})
	err = loader.Load(context.Background(), path)
	require.NoError(t, err)

	loaded, ok := loader.Stats()
	require.True(t, ok)

	assert.Equal(t, compiled, loaded)
	assert.Equal(t, filterTexts(e.Candidates(testURL)), filterTexts(loader.Candidates(testURL)))

	// Recompiling replaces the file under the published mapping.
	err = e.Compile(context.Background(), newLists())
	require.NoError(t, err)

	recompiled, ok := e.Stats()
	require.True(t, ok)

	assert.NotEqual(t, compiled.BuildID, recompiled.BuildID)
	assert.Equal(t, filterTexts(e.Candidates(testURL)), filterTexts(loader.Candidates(testURL)))
}

func TestEngine_Compile_keepsPrevious(t *testing.T) {
	t.Parallel()

	e := newEngine(t, &flatfilter.Config{})

	err := e.Compile(context.Background(), newLists())
	require.NoError(t, err)

	before, ok := e.Stats()
	require.True(t, ok)

	dup := append(newLists(), newLists()...)
	err = e.Compile(context.Background(), dup)
	testutil.AssertErrorMsg(t, "compiling: list at index 1: duplicate list id: 1", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = e.Compile(ctx, newLists())
	require.ErrorIs(t, err, context.Canceled)

	after, ok := e.Stats()
	require.True(t, ok)

	assert.Equal(t, before, after)
	assert.Len(t, e.Candidates(testURL), 2)
}

func TestEngine_Load_errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "filters.flt")

	e := newEngine(t, &flatfilter.Config{
		ArtifactPath: path,
	})

	err := e.Compile(context.Background(), newLists())
	require.NoError(t, err)

	before, ok := e.Stats()
	require.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	binary.LittleEndian.PutUint32(data[4:], 1000)

	stale := filepath.Join(dir, "stale.flt")
	err = os.WriteFile(stale, data, 0o644)
	require.NoError(t, err)

	err = e.Load(context.Background(), stale)
	require.ErrorIs(t, err, flatfilter.ErrVersionMismatch)

	err = e.Load(context.Background(), filepath.Join(dir, "missing.flt"))
	require.ErrorIs(t, err, os.ErrNotExist)

	f, err := rules.NewNetworkFilter("/banner-top", 0, false)
	require.NoError(t, err)
	require.NotNil(t, f)

	filters := []*rules.NetworkFilter{f}
	a := lookup.Build(filters)
	require.NotEmpty(t, a.Postings)

	// A posting pointing past the filters.
	a.Postings[0] = 7

	buf := &bytes.Buffer{}
	err = artifact.Encode(buf, &artifact.Contents{
		Index:   a,
		Filters: filters,
	})
	require.NoError(t, err)

	outOfRange := filepath.Join(dir, "out_of_range.flt")
	err = os.WriteFile(outOfRange, buf.Bytes(), 0o644)
	require.NoError(t, err)

	err = e.Load(context.Background(), outOfRange)
	require.ErrorIs(t, err, lookup.ErrBadArrays)

	assert.NotPanics(t, func() {
		_ = e.Candidates("https://example.org/banner-top")
	})

	after, ok := e.Stats()
	require.True(t, ok)

	assert.Equal(t, before, after)
}

func TestEngine_Close(t *testing.T) {
	t.Parallel()

	e, err := flatfilter.New(&flatfilter.Config{
		Logger: slogutil.NewDiscardLogger(),
	})
	require.NoError(t, err)

	assert.Empty(t, e.Candidates(testURL))

	_, ok := e.Stats()
	assert.False(t, ok)

	err = e.Compile(context.Background(), newLists())
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.Empty(t, e.Candidates(testURL))

	err = e.Compile(context.Background(), newLists())
	assert.ErrorIs(t, err, flatfilter.ErrClosed)

	err = e.Load(context.Background(), "filters.flt")
	assert.ErrorIs(t, err, flatfilter.ErrClosed)
}

func TestNew_badCompression(t *testing.T) {
	t.Parallel()

	_, err := flatfilter.New(&flatfilter.Config{
		Compression: "brotli",
	})
	testutil.AssertErrorMsg(t, `config: unknown compression "brotli"`, err)
}

func TestEngine_concurrent(t *testing.T) {
	t.Parallel()

	e := newEngine(t, &flatfilter.Config{
		ArtifactPath: filepath.Join(t.TempDir(), "filters.flt"),
		Optimize:     true,
	})

	err := e.Compile(context.Background(), newLists())
	require.NoError(t, err)

	const readers = 4

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	counts := make([]int, readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for {
				select {
				case <-stop:
					return
				default:
					if len(e.Candidates(testURL)) != 2 {
						counts[i]++
					}
				}
			}
		}()
	}

	for range 10 {
		err = e.Compile(context.Background(), newLists())
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()

	assert.Equal(t, make([]int, readers), counts)
}

func BenchmarkEngine_Candidates(b *testing.B) {
	e := newEngine(b, &flatfilter.Config{
		Optimize: true,
	})

	err := e.Compile(context.Background(), newLists())
	require.NoError(b, err)

	var filters []*rules.NetworkFilter
	for b.Loop() {
		filters = e.Candidates(testURL)
	}

	assert.Len(b, filters, 2)
}

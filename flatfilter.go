// Package flatfilter compiles ad-blocking network filter lists into a compact
// persisted index and serves candidate filters for URLs.
//
// Compilation parses the rule lists, fuses compatible filters, builds the
// shortcut index, and encodes it into an artifact.  The artifact is then
// loaded back and published atomically, so readers either see the complete
// new filter list or the previous one.
package flatfilter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/flatfilter/filterlist"
	"github.com/AdguardTeam/flatfilter/internal/artifact"
	"github.com/AdguardTeam/flatfilter/internal/lookup"
	"github.com/AdguardTeam/flatfilter/internal/optimizer"
	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/google/uuid"
)

const (
	// ErrClosed is returned by the methods of a closed [Engine].
	ErrClosed errors.Error = "engine is closed"

	// ErrVersionMismatch is returned by [Engine.Load] for artifacts compiled
	// with a different index format.
	ErrVersionMismatch = artifact.ErrVersionMismatch
)

// sourceMemory is the source of snapshots which have no artifact file.
const sourceMemory = "memory"

// Engine compiles filter lists and serves the currently published one.  All
// methods are safe for concurrent use.  Lookups never block on compilations.
type Engine struct {
	logger *slog.Logger

	// current is the published snapshot.  It is nil before the first
	// compilation and after Close.
	current atomic.Pointer[snapshot]

	// compileMu serializes compilations, loads, and closing.
	compileMu *sync.Mutex

	artifactPath string
	compression  artifact.Compression
	keepRawText  bool
	optimize     bool
	closed       bool
}

// New returns a new engine with no published filter list.  c must not be
// nil.
func New(c *Config) (e *Engine, err error) {
	comp, err := artifact.ParseCompression(c.Compression)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		logger:       logger,
		compileMu:    &sync.Mutex{},
		artifactPath: c.ArtifactPath,
		compression:  comp,
		keepRawText:  c.KeepRawText,
		optimize:     c.Optimize,
	}, nil
}

// Compile parses lists, compiles them, and publishes the result.  The engine
// does not close lists.  If any step fails, the previously published filter
// list stays in force.
func (e *Engine) Compile(ctx context.Context, lists []filterlist.RuleList) (err error) {
	e.compileMu.Lock()
	defer e.compileMu.Unlock()

	if e.closed {
		return ErrClosed
	}

	s, err := e.compile(ctx, lists)
	if err != nil {
		e.logger.ErrorContext(ctx, "compilation failed, keeping previous filters", slogutil.KeyError, err)

		return fmt.Errorf("compiling: %w", err)
	}

	e.publish(ctx, s)

	return nil
}

// compile builds a snapshot of lists.
func (e *Engine) compile(ctx context.Context, lists []filterlist.RuleList) (s *snapshot, err error) {
	storage, err := filterlist.NewRuleStorage(e.logger, lists)
	if err != nil {
		return nil, err
	}

	res, err := storage.Filters(ctx)
	if err != nil {
		return nil, err
	}

	filters := res.Filters
	if !e.keepRawText {
		for _, f := range filters {
			f.RawLine = ""
		}
	}

	parsed := len(filters)
	if e.optimize {
		filters = optimizer.Optimize(filters)
	}

	buildID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating build id: %w", err)
	}

	c := &artifact.Contents{
		Index:   lookup.Build(filters),
		Filters: filters,
		Header: artifact.Header{
			BuildID:     buildID,
			Compression: e.compression,
		},
	}

	if e.artifactPath == "" {
		s, err = e.compileInMemory(c)
	} else {
		s, err = e.compileToFile(c)
	}
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(
		ctx,
		"compiled filters",
		"lists", len(lists),
		"invalid", res.Invalid,
		"parsed", parsed,
		"fused", len(filters),
		"capacity", s.stats.Capacity,
		"version", s.stats.Version,
		"build_id", buildID,
	)

	return s, nil
}

// compileInMemory encodes c and decodes the result back without writing it to
// disk.
func (e *Engine) compileInMemory(c *artifact.Contents) (s *snapshot, err error) {
	buf := &bytes.Buffer{}
	err = artifact.Encode(buf, c)
	if err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}

	data := buf.Bytes()
	decoded, err := artifact.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}

	return newSnapshot(decoded, nil, len(data), sourceMemory)
}

// compileToFile writes c to a temporary file next to the artifact file, maps
// and validates it, and only then moves it over the artifact file.
func (e *Engine) compileToFile(c *artifact.Contents) (s *snapshot, err error) {
	tmpName, err := writeTemp(e.artifactPath, c)
	if err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}

	s, err = openSnapshot(tmpName, e.artifactPath)
	if err != nil {
		return nil, errors.Join(err, os.Remove(tmpName))
	}

	// Existing mappings of the previous file stay valid.
	err = os.Rename(tmpName, e.artifactPath)
	if err != nil {
		err = fmt.Errorf("replacing artifact: %w", err)

		return nil, errors.Join(err, s.decRef(), os.Remove(tmpName))
	}

	return s, nil
}

// writeTemp writes the encoded c into a new temporary file in the directory of
// path and returns its name.
func writeTemp(path string, c *artifact.Contents) (tmpName string, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}

	tmpName = tmp.Name()
	err = writeAndClose(tmp, c)
	if err != nil {
		return "", errors.Join(err, os.Remove(tmpName))
	}

	return tmpName, nil
}

// writeAndClose writes c to f, syncs it, and closes it.
func writeAndClose(f *os.File, c *artifact.Contents) (err error) {
	defer func() { err = errors.Join(err, f.Close()) }()

	w := bufio.NewWriterSize(f, 256*1024)
	err = artifact.Encode(w, c)
	if err != nil {
		return err
	}

	err = w.Flush()
	if err != nil {
		return err
	}

	return f.Sync()
}

// openSnapshot maps the artifact file at path and returns its snapshot.
// source is reported in the statistics of the snapshot.
func openSnapshot(path, source string) (s *snapshot, err error) {
	m, err := artifact.Open(path)
	if err != nil {
		return nil, err
	}

	s, err = newSnapshot(m.Contents, m.Close, m.Size(), source)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("artifact %q: %w", path, err), m.Close())
	}

	return s, nil
}

// Load maps a previously compiled artifact file and publishes it.  If the
// artifact cannot be used, the previously published filter list stays in
// force.  An artifact with a different format version returns an error
// matching [ErrVersionMismatch] and must be recompiled.
func (e *Engine) Load(ctx context.Context, path string) (err error) {
	e.compileMu.Lock()
	defer e.compileMu.Unlock()

	if e.closed {
		return ErrClosed
	}

	s, err := openSnapshot(path, path)
	if err != nil {
		e.logger.ErrorContext(ctx, "loading failed, keeping previous filters", slogutil.KeyError, err)

		return fmt.Errorf("loading: %w", err)
	}

	e.publish(ctx, s)

	return nil
}

// publish makes s current and drops the engine's reference to the previous
// snapshot.  e.compileMu must be locked.
func (e *Engine) publish(ctx context.Context, s *snapshot) {
	prev := e.current.Swap(s)

	e.logger.InfoContext(
		ctx,
		"published filters",
		"source", s.stats.Source,
		"filters", s.stats.Filters,
		"build_id", s.stats.BuildID,
	)

	if prev != nil {
		e.release(ctx, prev)
	}
}

// acquire returns the current snapshot with an added reference or nil if
// there is none.
func (e *Engine) acquire() (s *snapshot) {
	for {
		s = e.current.Load()
		if s == nil || s.tryIncRef() {
			return s
		}

		// The snapshot has just been replaced and released, so load the new
		// one.
	}
}

// release drops a reference to s and logs the error of releasing it, if any.
func (e *Engine) release(ctx context.Context, s *snapshot) {
	err := s.decRef()
	if err != nil {
		e.logger.ErrorContext(ctx, "releasing snapshot", slogutil.KeyError, err)
	}
}

// Candidates returns the filters which may match rawURL: the filters whose
// shortcut occurs in the lowercased URL and the filters without a shortcut.
// The result is sorted by filter position and stays valid after the filter
// list is replaced.
func (e *Engine) Candidates(rawURL string) (filters []*rules.NetworkFilter) {
	s := e.acquire()
	if s == nil {
		return nil
	}
	defer e.release(context.Background(), s)

	idxs := s.table.Candidates(strings.ToLower(rawURL))
	if len(idxs) == 0 {
		return nil
	}

	filters = make([]*rules.NetworkFilter, 0, len(idxs))
	for _, idx := range idxs {
		filters = append(filters, s.filters[idx])
	}

	return filters
}

// Stats returns the statistics of the published filter list.  ok is false if
// there is none.
func (e *Engine) Stats() (st Stats, ok bool) {
	s := e.acquire()
	if s == nil {
		return Stats{}, false
	}
	defer e.release(context.Background(), s)

	return s.stats, true
}

// type check
var _ io.Closer = (*Engine)(nil)

// Close implements the [io.Closer] interface for *Engine.  The published
// filter list is released once the in-flight lookups finish.
func (e *Engine) Close() (err error) {
	e.compileMu.Lock()
	defer e.compileMu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	prev := e.current.Swap(nil)
	if prev == nil {
		return nil
	}

	err = prev.decRef()
	if err != nil {
		return fmt.Errorf("closing engine: %w", err)
	}

	return nil
}

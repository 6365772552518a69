package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/flatfilter"
	"github.com/AdguardTeam/flatfilter/filterlist"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/shirou/gopsutil/v3/process"
)

// Options are the global console arguments.
type Options struct {
	// Verbose enables debug-level logs.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// ConfigPath is the path to the INI file with the default values of the
	// arguments.
	ConfigPath string `short:"c" long:"config" description:"Path to an INI file with default argument values." default:""`
}

// compileCommand compiles filter lists into an artifact file.
type compileCommand struct {
	opts *Options

	// FilterLists are the paths to the filter lists.
	FilterLists []string `short:"f" long:"filter" description:"Path to the filter list. Can be specified multiple times." required:"true"`

	// Output is the path of the artifact file.
	Output string `short:"o" long:"output" description:"Path to the compiled artifact." required:"true"`

	// Compression is the compression of the filter records.
	Compression string `long:"compression" description:"Compression of the filter records." choice:"none" choice:"lz4" choice:"zstd" default:"zstd"`

	// NoOptimize disables the fusion of filters.
	NoOptimize bool `long:"no-optimize" description:"Do not fuse compatible filters."`

	// RawText makes the artifact keep the rule texts.
	RawText bool `long:"raw-text" description:"Keep the original rule texts for debugging."`
}

// inspectCommand prints the information about an artifact file.
type inspectCommand struct {
	opts *Options

	// Input is the path of the artifact file.
	Input string `short:"i" long:"input" description:"Path to the compiled artifact." required:"true"`

	// URLs are the URLs to print the candidate filters for.
	URLs []string `short:"u" long:"url" description:"URL to show the candidate filters for. Can be specified multiple times."`
}

func main() {
	opts := &Options{}
	parser := goFlags.NewParser(opts, goFlags.Default)

	_ = errors.Must(parser.AddCommand(
		"compile",
		"Compile filter lists",
		"Parses, optimizes, and indexes the filter lists and writes the artifact.",
		&compileCommand{opts: opts},
	))

	_ = errors.Must(parser.AddCommand(
		"inspect",
		"Inspect an artifact",
		"Loads the artifact and prints its statistics and candidate filters.",
		&inspectCommand{opts: opts},
	))

	var err error
	configPath := findConfigPath(os.Args[1:])
	if configPath != "" {
		err = goFlags.NewIniParser(parser).ParseFile(configPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "reading config: %s\n", err)

			os.Exit(1)
		}
	}

	_, err = parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}
}

// findConfigPath returns the value of the config option from args, if any.
// The INI file must be read before the other arguments so that they override
// its values.
func findConfigPath(args []string) (path string) {
	opts := &Options{}
	parser := goFlags.NewParser(opts, goFlags.IgnoreUnknown)

	_, _ = parser.ParseArgs(args)

	return opts.ConfigPath
}

// newLogger returns the logger for the command-line tool.
func newLogger(opts *Options) (l *slog.Logger) {
	lvl := slog.LevelInfo
	if opts.Verbose {
		lvl = slog.LevelDebug
	}

	return slogutil.New(&slogutil.Config{
		Output:       os.Stderr,
		Format:       slogutil.FormatText,
		Level:        lvl,
		AddTimestamp: true,
	})
}

// Execute implements the [goFlags.Commander] interface for *compileCommand.
func (c *compileCommand) Execute(_ []string) (err error) {
	ctx := context.Background()
	l := newLogger(c.opts)

	lists := make([]filterlist.RuleList, 0, len(c.FilterLists))
	defer func() { err = errors.Join(err, closeLists(lists)) }()

	for i, path := range c.FilterLists {
		var list *filterlist.FileRuleList
		list, err = filterlist.NewFileRuleList(i, path, c.RawText)
		if err != nil {
			return fmt.Errorf("opening filter list %q: %w", path, err)
		}

		lists = append(lists, list)
	}

	engine, err := flatfilter.New(&flatfilter.Config{
		Logger:       l,
		ArtifactPath: c.Output,
		Compression:  c.Compression,
		KeepRawText:  c.RawText,
		Optimize:     !c.NoOptimize,
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, engine.Close()) }()

	err = engine.Compile(ctx, lists)
	if err != nil {
		return err
	}

	st, _ := engine.Stats()
	logStats(ctx, l, st)
	logMemoryUsage(ctx, l)

	return nil
}

// closeLists closes every list.
func closeLists(lists []filterlist.RuleList) (err error) {
	var errs []error
	for _, l := range lists {
		errs = append(errs, l.Close())
	}

	return errors.Annotate(errors.Join(errs...), "closing filter lists: %w")
}

// Execute implements the [goFlags.Commander] interface for *inspectCommand.
func (c *inspectCommand) Execute(_ []string) (err error) {
	ctx := context.Background()
	l := newLogger(c.opts)

	engine, err := flatfilter.New(&flatfilter.Config{
		Logger: l,
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, engine.Close()) }()

	err = engine.Load(ctx, c.Input)
	if err != nil {
		return err
	}

	st, _ := engine.Stats()
	logStats(ctx, l, st)

	for _, u := range c.URLs {
		filters := engine.Candidates(u)
		l.InfoContext(ctx, "candidates", "url", u, "count", len(filters))
		for _, f := range filters {
			l.InfoContext(ctx, "candidate", "id", f.ID, "filter", f)
		}
	}

	logMemoryUsage(ctx, l)

	return nil
}

// logStats logs the statistics of a published filter list.
func logStats(ctx context.Context, l *slog.Logger, st flatfilter.Stats) {
	l.InfoContext(
		ctx,
		"artifact",
		"source", st.Source,
		"build_id", st.BuildID,
		"version", st.Version,
		"compression", st.Compression,
		"filters", st.Filters,
		"buckets", st.Buckets,
		"capacity", st.Capacity,
		"size", st.Size,
	)
}

// logMemoryUsage logs the resident set size of the process.
func logMemoryUsage(ctx context.Context, l *slog.Logger) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		l.WarnContext(ctx, "getting process", slogutil.KeyError, err)

		return
	}

	mi, err := p.MemoryInfo()
	if err != nil {
		l.WarnContext(ctx, "getting memory info", slogutil.KeyError, err)

		return
	}

	l.InfoContext(ctx, "memory usage", "rss_kb", mi.RSS/1024)
}

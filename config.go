package flatfilter

import "log/slog"

// Config is the configuration of an [Engine].
type Config struct {
	// Logger is used to log compilations and publications.  If nil,
	// [slog.Default] is used.
	Logger *slog.Logger

	// ArtifactPath is the path of the compiled artifact file.  If empty,
	// compiled artifacts are only kept in memory.
	ArtifactPath string

	// Compression is the compression of the records section of compiled
	// artifacts: "none", "lz4", or "zstd".  Empty string means "none".
	Compression string

	// KeepRawText makes the compiled filters keep the original rule texts.
	// It increases the size of the artifact and is mostly useful for
	// debugging.
	KeepRawText bool

	// Optimize enables the fusion of compatible filters during compilation.
	Optimize bool
}

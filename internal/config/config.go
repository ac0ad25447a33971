package config

// Config groups CLI-level settings into one explicit value. No package
// in this module builds or reads a Config: the CLI binds its flags to
// package-level variables in internal/cobra, and cmd/main.go passes
// LogLevelInfo to logger.Init directly.
type Config struct {
	LogLevel string
	Output   OutputFormat

	// ChunkSizeOverride, when non-zero, is used in place of a
	// superblock-derived chunk size for headerless/raw images where no
	// metadata is available to read one from.
	ChunkSizeOverride int64
}

// Default returns a Config with LogLevelInfo and OutputFormatTable and
// no chunk-size override.
func Default() Config {
	return Config{
		LogLevel: LogLevelInfo,
		Output:   OutputFormatTable,
	}
}

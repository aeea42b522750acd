package app

import (
	"io"
	"log/slog"
)

// logLevels maps the accepted log-level config values to slog levels.
// Unrecognized values fall back to info; the CLI rejects them earlier.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the app's own logger from its config. The process-wide
// default logger is left untouched so embedded instances stay isolated.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	level, ok := logLevels[cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}

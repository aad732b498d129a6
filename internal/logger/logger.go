package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init installs the default slog logger: human-readable text at debug level
// in development, JSON at info level otherwise.
func Init(env string, debug bool) *slog.Logger {
	return InitWriter(os.Stdout, env, debug)
}

func InitWriter(w io.Writer, env string, debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if debug || env == "development" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

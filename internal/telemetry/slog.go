package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// parseLogLevel maps the configured level string to a slog.Level.
// Unrecognized values fall back to info so a typo in LGC_LOGGING_LEVEL never
// silences the server.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs the process-wide slog default from the logging
// section of the configuration (LGC_LOGGING_FORMAT, LGC_LOGGING_LEVEL).
//
// format "json" selects JSONHandler, which log collectors ingest directly;
// anything else selects TextHandler for local runs. The server's own request
// logs go through this logger, separate from the log records clients ingest
// into the database.
//
// Installing the default means request handlers, repositories, and shippers
// can call slog.Info and friends without threading a *slog.Logger around.
func SetupLogger(format, level string) {
	lvl := parseLogLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug, // file:line only when debugging
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger configured", "format", format, "level", lvl.String())
}

package internal

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the process logger. Env and level arrive already
// validated by NewConfig: env is "dev" or "prod", level one of debug,
// info, warn, error. Prod emits JSON with RFC3339Nano timestamps for
// the log pipeline; dev emits text for terminals.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	lvl := parseLogLevel(level)

	if env == "prod" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: lvl,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
				}
				return a
			},
		}))
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

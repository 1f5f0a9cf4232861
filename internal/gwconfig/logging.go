package gwconfig

import (
	"fmt"
	"log/slog"
	"os"
)

// InitLogging installs a process-wide slog default handler from the [log]
// section: level, destination file (or stderr when outfile is empty), and
// either text or json format.
func InitLogging(cfg LogConfig) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	out := os.Stderr
	if cfg.Outfile != "" {
		f, err := os.OpenFile(cfg.Outfile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log outfile %s: %w", cfg.Outfile, err)
		}
		out = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

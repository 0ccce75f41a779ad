package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LogOptions selects the handler and level for command logging.
type LogOptions struct {
	Format  string // text|json; empty means text
	Verbose bool
	Quiet   bool
}

// newLogger builds the slog logger commands pass down to the pipeline.
// Verbose wins over Quiet.
func newLogger(w io.Writer, opts LogOptions) (*slog.Logger, error) {
	var hopts slog.HandlerOptions
	switch {
	case opts.Verbose:
		hopts.Level = slog.LevelDebug
	case opts.Quiet:
		hopts.Level = slog.LevelWarn
	default:
		hopts.Level = slog.LevelInfo
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, &hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &hopts)), nil
	default:
		return nil, newUsageError(fmt.Sprintf("invalid --log-format %q (allowed: text, json)", opts.Format))
	}
}

// Package cli implements the downline command-line interface.
//
// The commands cover the whole life of a downline tree: keeping members in
// a store, laying the tree out as focused bubbles, drawing it, serving it
// over HTTP and browsing it in the terminal. The CLI is built using cobra
// and logs with charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - member: init, add, rm, mv, ls and export members of an owner's tree
//   - render: draw a snapshot or a stored tree as SVG, PNG, PDF or JSON
//   - layout: compute bubble positions for a focus and save them
//   - visualize: draw a saved layout
//   - browse: explore a tree interactively, moving the focus with the keyboard
//   - serve: run the HTTP API
//   - cache: manage the render cache
//
// # Configuration
//
// Settings come from config.toml, a .env file and DOWNLINE_* variables
// (see package config); --config and --env-file select the files.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long an operation took once it is done.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, rounded to the millisecond.
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default() when
// none is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

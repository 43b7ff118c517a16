// Package log configures the process logger and hands out per-component
// children of it.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is the process logger. Components derive from it with
// WithComponent.
var Logger = NewConsoleLogger(os.Stdout, "info")

// Options selects the level and sinks of the process logger.
type Options struct {
	Level string
	// JSON writes JSON to stdout instead of the colored console format.
	JSON bool
	// File, if set, receives a JSON copy of every line.
	File string
}

var (
	mu      sync.Mutex
	file    *os.File
	current Options
)

// Init replaces the process logger. A log file opened by a previous Init
// is closed.
func Init(opts Options) error {
	var f *os.File
	if opts.File != "" {
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
	}
	return swap(opts, f)
}

// Close closes the log file, if any. Logging continues on the console.
// Loggers derived before Close still hold the file and must not be used.
func Close() error {
	mu.Lock()
	opts := current
	mu.Unlock()
	opts.File = ""
	return swap(opts, nil)
}

func swap(opts Options, f *os.File) error {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stdout
	if !opts.JSON {
		out = consoleWriter(os.Stdout)
	}
	if f != nil {
		out = zerolog.MultiLevelWriter(out, f)
	}
	Logger = newLogger(out, opts.Level)

	prev := file
	file, current = f, opts
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return newLogger(consoleWriter(w), level)
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	return newLogger(w, level)
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

// parseLevel accepts zerolog level names plus "off". Unknown names log
// at info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "off" {
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithComponent returns a logger with a component field. It binds to the
// process logger as configured at the time of the call, so components are
// built after Init.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Package logging builds the slog logger for svglive binaries.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Rotation limits for --log-file.
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Options configures New.
type Options struct {
	Format Format
	Level  slog.Level
	// File, when set, also receives every record as JSON, rotated by size.
	File string
}

// New builds a logger writing to w and, if opts.File is set, a rotating
// file. The returned closer flushes and closes the file.
func New(w io.Writer, opts Options) (*slog.Logger, io.Closer) {
	useTint := opts.Format == FormatText || (opts.Format == FormatAuto && IsTTY(w))

	var h slog.Handler
	if useTint {
		h = tinter.NewHandler(w, &tinter.Options{
			Level:      opts.Level,
			TimeFormat: "15:04:05.000",
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: opts.Level,
		})
	}

	if opts.File == "" {
		return slog.New(h), nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
	}
	file := slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(tee{h, file}), lj
}

// Setup builds the stderr logger and installs it as the slog default.
// Call once after flag/viper parsing.
func Setup(opts Options) (*slog.Logger, io.Closer) {
	log, c := New(os.Stderr, opts)
	slog.SetDefault(log)
	return log, c
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// tee fans every record out to each handler that accepts its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// LogFlags are the logging flags shared by the session commands.
type LogFlags struct {
	Debug  bool
	Format string
	File   string
}

// AddFlags registers --debug, --log-format, and --log-file.
func (f *LogFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&f.Debug, "debug", false, "log at debug level (also SHAREDESK_DEBUG=1)")
	flagSet.StringVar(&f.Format, "log-format", "", "text or json (default: text on a terminal, json otherwise)")
	flagSet.StringVar(&f.File, "log-file", "", "append log records to this file instead of stderr")
}

// Level returns Debug when --debug or SHAREDESK_DEBUG is set, else Info.
func (f *LogFlags) Level() slog.Level {
	if f.Debug {
		return slog.LevelDebug
	}
	if enabled, err := strconv.ParseBool(os.Getenv("SHAREDESK_DEBUG")); err == nil && enabled {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewHandler builds the process log handler. Records go to --log-file
// when set, otherwise to stderr. The returned closer releases the log
// file and is never nil.
func (f *LogFlags) NewHandler() (slog.Handler, io.Closer, error) {
	var (
		output   io.Writer = os.Stderr
		closer   io.Closer = io.NopCloser(nil)
		terminal           = term.IsTerminal(int(os.Stderr.Fd()))
	)
	if f.File != "" {
		file, err := os.OpenFile(f.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		output, closer, terminal = file, file, false
	}
	handler, err := newHandler(output, f.Format, terminal, f.Level())
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return handler, closer, nil
}

// newHandler uses slog.TextHandler for terminals and slog.JSONHandler
// for pipes and files unless format says otherwise.
func newHandler(output io.Writer, format string, terminal bool, level slog.Level) (slog.Handler, error) {
	options := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.NewTextHandler(output, options), nil
	case "json":
		return slog.NewJSONHandler(output, options), nil
	case "":
		if terminal {
			return slog.NewTextHandler(output, options), nil
		}
		return slog.NewJSONHandler(output, options), nil
	default:
		return nil, Validation("--log-format must be text or json, got %q", format)
	}
}

// FanoutHandler sends each record to every handler that accepts its
// level.
type FanoutHandler []slog.Handler

func (handlers FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers FanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (handlers FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for i, handler := range handlers {
		derived[i] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers FanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for i, handler := range handlers {
		derived[i] = handler.WithGroup(name)
	}
	return derived
}

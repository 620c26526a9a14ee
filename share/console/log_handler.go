// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a log record to the model for the status area.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// LogHandler is a slog.Handler that routes records into the console.
// Records below the configured level are dropped, as are records that
// arrive before SetProgram.
//
// Handlers derived via WithAttrs/WithGroup share the program pointer,
// so one SetProgram call reaches all of them.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
}

// NewLogHandler returns a handler for records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
	}
}

// SetProgram sets the program that receives records.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record as "message (key=value, ...)" and sends it.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}
	program.Send(logRecordMsg{Summary: summarize(handler.attrs, record), Level: record.Level})
	return nil
}

func summarize(handlerAttrs []slog.Attr, record slog.Record) string {
	var parts []string
	for _, attr := range handlerAttrs {
		// The console already shows the session.
		if attr.Key == "session_id" || attr.Key == "role" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
		return true
	})
	if len(parts) == 0 {
		return record.Message
	}
	return record.Message + " (" + strings.Join(parts, ", ") + ")"
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(append([]slog.Attr(nil), handler.attrs...), attrs...),
	}
}

// WithGroup is accepted but groups are flattened in the summary.
func (handler *LogHandler) WithGroup(string) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append([]slog.Attr(nil), handler.attrs...),
	}
}

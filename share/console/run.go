// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the console until the operator quits or the session ends.
// sessionDone delivers the result of the session's Run. handler, if
// not nil, is connected to the program so log records reach the
// status area. options are passed to the bubbletea program.
func Run(ctx context.Context, session Session, sessionDone <-chan error, handler *LogHandler, options ...tea.ProgramOption) error {
	options = append([]tea.ProgramOption{tea.WithContext(ctx)}, options...)
	program := tea.NewProgram(NewModel(session), options...)
	if handler != nil {
		handler.SetProgram(program)
		defer handler.SetProgram(nil)
	}

	go func() {
		select {
		case err := <-sessionDone:
			program.Send(sessionDoneMsg{err: err})
		case <-ctx.Done():
		}
	}()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statusapi serves a session's status and accepts operator
// commands over local HTTP:
//
//	GET  /status    session snapshot as JSON
//	POST /commands  JSON command queued for dispatch (operator only)
//
// It is a control surface for scripts and tests on the same machine,
// not a frame transport. Bind it to loopback.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bureau-foundation/sharedesk/share"
)

// maxCommandBody bounds POST /commands request bodies.
const maxCommandBody = 64 << 10

// Session is the part of *share.Session the API uses.
type Session interface {
	Status() share.Status
	Enqueue(command share.Command) error
}

type handlers struct {
	session Session
	logger  *slog.Logger
}

// NewRouter returns the API routes for session.
func NewRouter(session Session, logger *slog.Logger) *mux.Router {
	h := &handlers{session: session, logger: logger}
	router := mux.NewRouter()
	router.HandleFunc("/status", h.status).Methods(http.MethodGet)
	router.HandleFunc("/commands", h.command).Methods(http.MethodPost)
	return router
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

type commandResponse struct {
	Queued bool   `json:"queued"`
	Error  string `json:"error,omitempty"`
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, commandResponse{Error: err.Error()})
		return
	}
	command, err := share.ParseCommandJSON(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}

	if err := h.session.Enqueue(command); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, share.ErrNotOperator), errors.Is(err, share.ErrNotRunning):
			status = http.StatusConflict
		case errors.Is(err, share.ErrQueueFull):
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, commandResponse{Error: err.Error()})
		return
	}
	h.logger.Debug("command queued via status api", "command", command.String())
	writeJSON(w, http.StatusAccepted, commandResponse{Queued: true})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

// Serve runs the API on listener until ctx is done, then shuts down
// gracefully.
func Serve(ctx context.Context, listener net.Listener, session Session, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           NewRouter(session, logger),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() { errs <- server.Serve(listener) }()
	logger.Info("status api listening", "address", listener.Addr().String())

	select {
	case err := <-errs:
		return fmt.Errorf("status api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status api shutdown: %w", err)
	}
	return nil
}

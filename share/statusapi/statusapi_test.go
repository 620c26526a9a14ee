// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/lib/testutil"
	"github.com/bureau-foundation/sharedesk/share"
)

type fakeSession struct {
	status     share.Status
	queued     []share.Command
	enqueueErr error
}

func (f *fakeSession) Status() share.Status { return f.status }

func (f *fakeSession) Enqueue(command share.Command) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.queued = append(f.queued, command)
	return nil
}

func do(t *testing.T, session Session, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(session, slog.New(slog.DiscardHandler))
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestStatus(t *testing.T) {
	session := &fakeSession{status: share.Status{
		SessionID: "abc",
		Role:      share.RoleOperator,
		Running:   true,
		Loops:     []share.LoopStatus{{Name: share.LoopWatch, Ticks: 7}},
	}}

	response := do(t, session, http.MethodGet, "/status", "")
	if response.Code != http.StatusOK {
		t.Fatalf("GET /status = %d", response.Code)
	}
	var decoded map[string]any
	if err := json.Unmarshal(response.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if decoded["session_id"] != "abc" || decoded["role"] != "operator" || decoded["running"] != true {
		t.Errorf("status body = %s", response.Body)
	}
}

func TestPostCommand(t *testing.T) {
	session := &fakeSession{}
	response := do(t, session, http.MethodPost, "/commands", `{"type":"mouse_click","x":4,"y":5,"button":2}`)
	if response.Code != http.StatusAccepted {
		t.Fatalf("POST /commands = %d: %s", response.Code, response.Body)
	}
	if len(session.queued) != 1 || session.queued[0] != share.Click(4, 5, desktop.ButtonMiddle, false) {
		t.Errorf("queued %+v", session.queued)
	}
}

func TestPostCommandErrors(t *testing.T) {
	tests := []struct {
		name       string
		enqueueErr error
		body       string
		want       int
	}{
		{"malformed", nil, `{"type":`, http.StatusBadRequest},
		{"invalid", nil, `{"type":"key_press"}`, http.StatusBadRequest},
		{"client session", share.ErrNotOperator, `{"type":"key_press","key_char":"a"}`, http.StatusConflict},
		{"stopped session", share.ErrNotRunning, `{"type":"key_press","key_char":"a"}`, http.StatusConflict},
		{"queue full", share.ErrQueueFull, `{"type":"key_press","key_char":"a"}`, http.StatusServiceUnavailable},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := do(t, &fakeSession{enqueueErr: test.enqueueErr}, http.MethodPost, "/commands", test.body)
			if response.Code != test.want {
				t.Errorf("POST /commands = %d, want %d (%s)", response.Code, test.want, response.Body)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	if code := do(t, &fakeSession{}, http.MethodDelete, "/status", "").Code; code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /status = %d, want 405", code)
	}
}

func TestServeShutsDownWithContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, &fakeSession{}, slog.New(slog.DiscardHandler)) }()

	response, err := http.Get("http://" + listener.Addr().String() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Errorf("GET /status = %d", response.StatusCode)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve did not return after cancel"); err != nil {
		t.Errorf("Serve = %v, want nil", err)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/clock"
	"github.com/bureau-foundation/sharedesk/lib/desktop"
)

func newTestExecutor(target desktop.Target, source *fakeSource, input *fakeInput) *Executor {
	return NewExecutor(target, source, input, 0, clock.Fake(time.Unix(0, 0)), slog.New(slog.DiscardHandler))
}

func equalEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Errorf("event %d = %q, want %q", index, got[index], want[index])
		}
	}
}

func TestExecuteClickOffsetsByOrigin(t *testing.T) {
	input := &fakeInput{}
	executor := newTestExecutor(desktop.Screen(), &fakeSource{origin: image.Pt(1920, 0)}, input)

	if err := executor.Execute(context.Background(), 1, Click(10, 20, desktop.ButtonLeft, true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	equalEvents(t, input.calls(), []string{"move 1930,20", "double left"})
}

func TestExecuteWindowFocusesFirst(t *testing.T) {
	input := &fakeInput{}
	executor := newTestExecutor(desktop.Window("0x42"), &fakeSource{origin: image.Pt(300, 200)}, input)

	if err := executor.Execute(context.Background(), 1, Click(5, 6, desktop.ButtonRight, false)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	equalEvents(t, input.calls(), []string{"focus 0x42", "move 305,206", "click right"})
}

func TestExecuteFocusSettles(t *testing.T) {
	input := &fakeInput{}
	fake := clock.Fake(time.Unix(0, 0))
	executor := NewExecutor(desktop.Window("9"), &fakeSource{}, input, 50*time.Millisecond, fake, slog.New(slog.DiscardHandler))

	done := make(chan error, 1)
	go func() { done <- executor.Execute(context.Background(), 1, Keys("a", 0)) }()

	fake.WaitForTimers(1)
	equalEvents(t, input.calls(), []string{"focus 9"})
	fake.Advance(50 * time.Millisecond)
	if err := <-done; err != nil {
		t.Fatalf("Execute: %v", err)
	}
	equalEvents(t, input.calls(), []string{"focus 9", "char a"})
}

func TestExecuteKeys(t *testing.T) {
	tests := []struct {
		name    string
		command Command
		want    []string
	}{
		{"text", Keys("hé", 0), []string{"char h", "char é"}},
		{"chord", Keys("c", desktop.ModCtrl), []string{"char c+ctrl"}},
		{"special", Keys("{LEFT}", 0), []string{"special {LEFT}"}},
		{"special lowercase", Keys("{f5}", desktop.ModShift), []string{"special {F5}+shift"}},
		{"unknown token is text", Keys("{X}", 0), []string{"char {", "char X", "char }"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := &fakeInput{}
			executor := newTestExecutor(desktop.Screen(), &fakeSource{}, input)
			if err := executor.Execute(context.Background(), 1, test.command); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			equalEvents(t, input.calls(), test.want)
		})
	}
}

func TestExecuteInputFailureIsNotFatal(t *testing.T) {
	input := &fakeInput{failOn: "move 1,1"}
	executor := newTestExecutor(desktop.Screen(), &fakeSource{}, input)

	if err := executor.Execute(context.Background(), 1, Click(1, 1, desktop.ButtonLeft, false)); err != nil {
		t.Errorf("input failure escaped Execute: %v", err)
	}
	if err := executor.Execute(context.Background(), 2, Keys("z", 0)); err != nil {
		t.Errorf("second command failed: %v", err)
	}
	equalEvents(t, input.calls(), []string{"move 1,1", "char z"})
}

func TestExecuteLocateFailureDropsCommand(t *testing.T) {
	input := &fakeInput{}
	source := &fakeSource{locateErr: errors.New("xdotool: command not found")}
	executor := newTestExecutor(desktop.Window("3"), source, input)

	if err := executor.Execute(context.Background(), 1, Keys("a", 0)); err != nil {
		t.Errorf("transient locate failure escaped Execute: %v", err)
	}
	if len(input.calls()) != 0 {
		t.Errorf("input injected without a located target: %q", input.calls())
	}
}

func TestReceiveAbortsOnStaleTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	mailbox := NewMailbox(env.Storage, env.Key, env.Logger)
	for _, command := range []Command{Click(1, 1, desktop.ButtonLeft, false), Keys("x", 0)} {
		if _, err := mailbox.Send(ctx, command); err != nil {
			t.Fatal(err)
		}
	}

	input := &fakeInput{}
	source := &fakeSource{locateErr: desktop.ErrWindowGone}
	receive := &receiveLoop{
		mailbox:  mailbox,
		executor: newTestExecutor(desktop.Window("0x42"), source, input),
	}
	loop := &Loop{Name: LoopReceive, Interval: time.Millisecond, Policy: DefaultErrorPolicy(), Tick: receive.tick}

	err := loop.Run(ctx)
	var fatal *FatalError
	if !errors.As(err, &fatal) || fatal.Loop != LoopReceive || !errors.Is(err, ErrTargetGone) {
		t.Fatalf("receive loop error = %v, want fatal ErrTargetGone", err)
	}
	if len(input.calls()) != 0 {
		t.Errorf("input injected against a gone window: %q", input.calls())
	}
}

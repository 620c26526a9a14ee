// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/clock"
	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/lib/framecodec"
)

func newTestKey(t *testing.T) *cryptobox.Key {
	t.Helper()
	key, _, err := cryptobox.LoadOrCreate(t.TempDir())
	if err != nil {
		t.Fatalf("creating key: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func newTestEnv(t *testing.T, c clock.Clock) SessionContext {
	t.Helper()
	if c == nil {
		c = clock.Real()
	}
	return SessionContext{
		Key:     newTestKey(t),
		Storage: NewStorage(t.TempDir(), time.Second, c),
		Clock:   c,
		Logger:  slog.New(slog.DiscardHandler),
		Policy:  DefaultErrorPolicy(),
	}
}

func solidImage(shade uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{R: shade, G: shade / 2, B: 255 - shade, A: 255})
		}
	}
	return img
}

func newTestCompressor(t *testing.T) *framecodec.Compressor {
	t.Helper()
	compressor, err := framecodec.NewCompressor(framecodec.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return compressor
}

// fakeSource serves a fixed image and origin, or an error.
type fakeSource struct {
	mu         sync.Mutex
	img        image.Image
	origin     image.Point
	captureErr error
	locateErr  error
	captures   int
}

func (s *fakeSource) Capture(ctx context.Context, target desktop.Target) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	return s.img, nil
}

func (s *fakeSource) Locate(ctx context.Context, target desktop.Target) (image.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin, s.locateErr
}

func (s *fakeSource) setLocateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locateErr = err
}

// fakeInput records every injected event as a string and forwards it
// on events when that channel is set.
type fakeInput struct {
	mu       sync.Mutex
	recorded []string
	failOn   string
	events   chan string
}

func (f *fakeInput) record(event string) error {
	f.mu.Lock()
	f.recorded = append(f.recorded, event)
	fail := f.failOn != "" && event == f.failOn
	f.mu.Unlock()
	if f.events != nil {
		f.events <- event
	}
	if fail {
		return fmt.Errorf("injected failure on %s", event)
	}
	return nil
}

func (f *fakeInput) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recorded...)
}

func (f *fakeInput) Focus(ctx context.Context, window string) error {
	return f.record("focus " + window)
}

func (f *fakeInput) MoveCursor(ctx context.Context, point image.Point) error {
	return f.record(fmt.Sprintf("move %d,%d", point.X, point.Y))
}

func (f *fakeInput) Click(ctx context.Context, button desktop.Button, double bool) error {
	if double {
		return f.record("double " + button.String())
	}
	return f.record("click " + button.String())
}

func (f *fakeInput) SendChar(ctx context.Context, char rune, modifiers desktop.Modifiers) error {
	if modifiers != 0 {
		return f.record(fmt.Sprintf("char %c+%s", char, modifiers))
	}
	return f.record(fmt.Sprintf("char %c", char))
}

func (f *fakeInput) SendSpecial(ctx context.Context, key desktop.Key, modifiers desktop.Modifiers) error {
	if modifiers != 0 {
		return f.record(fmt.Sprintf("special %s+%s", key.Token(), modifiers))
	}
	return f.record("special " + key.Token())
}

// fakeDisplay counts shown frames.
type fakeDisplay struct {
	mu     sync.Mutex
	shown  []image.Image
	err    error
	frames chan image.Image
}

func (d *fakeDisplay) Show(ctx context.Context, img image.Image) error {
	d.mu.Lock()
	if d.err != nil {
		d.mu.Unlock()
		return d.err
	}
	d.shown = append(d.shown, img)
	d.mu.Unlock()
	if d.frames != nil {
		select {
		case d.frames <- img:
		default:
		}
	}
	return nil
}

func (d *fakeDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

func (d *fakeDisplay) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

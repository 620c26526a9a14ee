// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/clock"
)

// DefaultStorageTimeout bounds the wait for the storage permit.
const DefaultStorageTimeout = 5 * time.Second

// Storage is the shared folder as seen from one process. Every
// operation holds the process-wide permit; waiting for it is bounded
// by the timeout and by the caller's context.
type Storage struct {
	dir     string
	permit  chan struct{}
	timeout time.Duration
	clock   clock.Clock
}

// NewStorage returns a Storage rooted at dir. A non-positive timeout
// selects DefaultStorageTimeout; a nil clock selects the real clock.
func NewStorage(dir string, timeout time.Duration, c clock.Clock) *Storage {
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	if c == nil {
		c = clock.Real()
	}
	return &Storage{
		dir:     dir,
		permit:  make(chan struct{}, 1),
		timeout: timeout,
		clock:   c,
	}
}

// Dir returns the shared folder path.
func (s *Storage) Dir() string { return s.dir }

// acquire takes the permit. The returned function releases it.
func (s *Storage) acquire(ctx context.Context) (func(), error) {
	release := func() { <-s.permit }

	select {
	case s.permit <- struct{}{}:
		return release, nil
	default:
	}

	select {
	case s.permit <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.clock.After(s.timeout):
		return nil, fmt.Errorf("%w after %s", ErrTransportTimeout, s.timeout)
	}
}

// ReadFile returns the contents of name. A missing file is reported
// as found=false with a nil error.
func (s *Storage) ReadFile(ctx context.Context, name string) (data []byte, found bool, err error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	defer release()

	data, err = os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// WriteFile replaces name with data. The data is written to a
// temporary file in the same directory and renamed into place, so a
// local reader sees the old or the new contents. No fsync: frames and
// commands are worthless after a crash.
func (s *Storage) WriteFile(ctx context.Context, name string, data []byte) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	temporary, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", name, err)
	}
	temporaryPath := temporary.Name()

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file for %s: %w", name, err)
	}
	if err := os.Rename(temporaryPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// Remove deletes name. A file that is already gone is not an error.
func (s *Storage) Remove(ctx context.Context, name string) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the names of regular files with the given prefix and
// suffix, in directory order.
func (s *Storage) List(ctx context.Context, prefix, suffix string) ([]string, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	return names, nil
}

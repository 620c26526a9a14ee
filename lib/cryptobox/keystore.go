// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptobox

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/sharedesk/lib/secret"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// KeyFileName is the key file inside the shared folder.
	KeyFileName = "encryption.key"
)

// ErrInvalidKey is returned when key material is not exactly KeySize
// bytes.
var ErrInvalidKey = errors.New("cryptobox: invalid key length")

// Key is the shared symmetric key. The material lives in locked memory
// until Close.
type Key struct {
	material *secret.Buffer
}

// NewKey protects raw as a Key. raw must be KeySize bytes and is zeroed.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), KeySize)
	}
	material, err := secret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("protecting key: %w", err)
	}
	return &Key{material: material}, nil
}

// Close zeroes and releases the key.
func (k *Key) Close() error {
	return k.material.Close()
}

// Export returns a heap copy of the key material for sealing to a
// peer. The caller should clear it when done.
func (k *Key) Export() []byte {
	return append([]byte(nil), k.material.Bytes()...)
}

// LoadOrCreate returns the key stored at <location>/encryption.key,
// generating and persisting a new random key when the file does not
// exist. The second return value reports whether a key was created.
// When the peer creates the key at the same moment, the peer's key is
// returned.
func LoadOrCreate(location string) (*Key, bool, error) {
	path := filepath.Join(location, KeyFileName)

	key, err := readKey(path)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, false, fmt.Errorf("generating key: %w", err)
	}
	if err := writeKeyFile(path, raw, false); err != nil {
		clear(raw)
		if errors.Is(err, fs.ErrExist) {
			key, err := readKey(path)
			if err != nil {
				return nil, false, err
			}
			return key, false, nil
		}
		return nil, false, err
	}
	key, err = NewKey(raw)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// readKey loads the key file at path. A missing file is reported with
// an error wrapping fs.ErrNotExist.
func readKey(path string) (*Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := NewKey(raw)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, nil
}

// Install writes raw as <location>/encryption.key. It refuses to
// replace an existing key unless overwrite is set, since replacing the
// key strands every frame and command already in the folder.
func Install(location string, raw []byte, overwrite bool) error {
	if len(raw) != KeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), KeySize)
	}
	return writeKeyFile(filepath.Join(location, KeyFileName), raw, overwrite)
}

// writeKeyFile writes the key through a temporary file and a rename so
// the peer never reads a half-written key. Without overwrite, a key
// that appeared in the meantime (the peer won the race) is reported
// with an error wrapping fs.ErrExist rather than silently replaced.
func writeKeyFile(path string, raw []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("key file %s: %w", path, fs.ErrExist)
		}
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), ".encryption.key-*")
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	temporaryPath := temporary.Name()

	if err := temporary.Chmod(0o600); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("restricting key file mode: %w", err)
	}
	if _, err := temporary.Write(raw); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing key file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing key file: %w", err)
	}

	if overwrite {
		err = os.Rename(temporaryPath, path)
	} else {
		// Link fails if path exists, so two parties creating the key at
		// the same moment cannot both win.
		err = os.Link(temporaryPath, path)
		os.Remove(temporaryPath)
	}
	if err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("installing key file: %w", err)
	}
	return nil
}

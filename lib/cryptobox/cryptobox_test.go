// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptobox

import (
	"bytes"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestKey(t *testing.T) *Key {
	t.Helper()
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	key, err := NewKey(raw)
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := newTestKey(t)

	for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 1000, 64 * 1024} {
		plaintext := make([]byte, size)
		rand.Read(plaintext)

		blob, err := key.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%d bytes): %v", size, err)
		}
		if len(blob) < IVSize+16 || (len(blob)-IVSize)%16 != 0 {
			t.Fatalf("Encrypt(%d bytes) produced %d bytes, not IV plus whole blocks", size, len(blob))
		}

		decrypted, err := key.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt(%d bytes): %v", size, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("round trip of %d bytes changed the payload", size)
		}
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	key := newTestKey(t)
	plaintext := []byte("same frame, twice")

	first, err := key.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := key.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if bytes.Equal(first[:IVSize], second[:IVSize]) {
		t.Error("two encryptions reused the same IV")
	}
	if bytes.Equal(first, second) {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	key := newTestKey(t)
	valid, err := key.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	cases := map[string][]byte{
		"empty":     nil,
		"iv only":   valid[:IVSize],
		"unaligned": append(bytes.Clone(valid), 0x01),
		"truncated": valid[:IVSize+8],
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := key.Decrypt(blob); !errors.Is(err, ErrCrypto) {
				t.Fatalf("Decrypt = %v, want ErrCrypto", err)
			}
		})
	}
}

func TestDecryptWithForeignKeyNeverPanics(t *testing.T) {
	sender := newTestKey(t)
	stranger := newTestKey(t)

	for range 50 {
		blob, err := sender.Encrypt([]byte("a command the stranger cannot read"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		// Either a padding failure or garbage; both are acceptable as
		// long as Decrypt returns instead of panicking.
		if plaintext, err := stranger.Decrypt(blob); err == nil && bytes.Equal(plaintext, []byte("a command the stranger cannot read")) {
			t.Fatal("foreign key recovered the plaintext")
		}
	}
}

func TestLoadOrCreatePersistsKey(t *testing.T) {
	location := t.TempDir()

	created, wasCreated, err := LoadOrCreate(location)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	defer created.Close()
	if !wasCreated {
		t.Error("first LoadOrCreate reported an existing key")
	}

	info, err := os.Stat(filepath.Join(location, KeyFileName))
	if err != nil {
		t.Fatalf("key file missing: %v", err)
	}
	if info.Size() != KeySize {
		t.Errorf("key file is %d bytes, want %d", info.Size(), KeySize)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, wasCreated, err := LoadOrCreate(location)
	if err != nil {
		t.Fatalf("second LoadOrCreate: %v", err)
	}
	defer loaded.Close()
	if wasCreated {
		t.Error("second LoadOrCreate generated a new key")
	}

	blob, err := created.Encrypt([]byte("cross-party"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plaintext, err := loaded.Decrypt(blob)
	if err != nil || string(plaintext) != "cross-party" {
		t.Fatalf("reloaded key cannot decrypt: %q, %v", plaintext, err)
	}

	entries, _ := os.ReadDir(location)
	if len(entries) != 1 {
		t.Errorf("shared folder holds %d entries, want only the key file", len(entries))
	}
}

func TestLoadOrCreateRejectsWrongLength(t *testing.T) {
	location := t.TempDir()
	if err := os.WriteFile(filepath.Join(location, KeyFileName), []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrCreate(location); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("LoadOrCreate = %v, want ErrInvalidKey", err)
	}
}

func TestLoadOrCreateMissingLocation(t *testing.T) {
	if _, _, err := LoadOrCreate(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("LoadOrCreate succeeded in a folder that does not exist")
	}
}

func TestInstallRefusesOverwrite(t *testing.T) {
	location := t.TempDir()
	if err := Install(location, bytes.Repeat([]byte{1}, KeySize), false); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := Install(location, bytes.Repeat([]byte{2}, KeySize), false); err == nil {
		t.Fatal("Install replaced an existing key without overwrite")
	}
	if err := Install(location, bytes.Repeat([]byte{2}, KeySize), true); err != nil {
		t.Fatalf("Install with overwrite: %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(location, KeyFileName))
	if !bytes.Equal(raw, bytes.Repeat([]byte{2}, KeySize)) {
		t.Error("overwrite did not replace the key")
	}
}

func TestLoadOrCreateConcurrentPeersShareOneKey(t *testing.T) {
	const peers = 4
	for round := 0; round < 50; round++ {
		location := t.TempDir()

		keys := make([]*Key, peers)
		created := make([]bool, peers)
		errs := make([]error, peers)
		var wg sync.WaitGroup
		for peer := range peers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				keys[peer], created[peer], errs[peer] = LoadOrCreate(location)
			}()
		}
		wg.Wait()

		creators := 0
		for peer := range peers {
			if errs[peer] != nil {
				t.Fatalf("round %d: peer %d: LoadOrCreate: %v", round, peer, errs[peer])
			}
			if created[peer] {
				creators++
			}
		}
		if creators != 1 {
			t.Fatalf("round %d: %d peers reported creating the key, want 1", round, creators)
		}
		for peer := 1; peer < peers; peer++ {
			if !bytes.Equal(keys[peer].Export(), keys[0].Export()) {
				t.Fatalf("round %d: peer %d holds a different key", round, peer)
			}
		}
		for _, key := range keys {
			key.Close()
		}
	}
}

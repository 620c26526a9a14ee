// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/bureau-foundation/sharedesk/lib/codec"
	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
)

const (
	commandPrefix = "cmd_"
	commandSuffix = ".enc"
)

func commandFileName(id uint64) string {
	return commandPrefix + strconv.FormatUint(id, 10) + commandSuffix
}

func parseCommandID(name string) (uint64, bool) {
	digits, ok := strings.CutPrefix(name, commandPrefix)
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, commandSuffix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// mailboxStorage is the part of *Storage the mailbox uses.
type mailboxStorage interface {
	ReadFile(ctx context.Context, name string) ([]byte, bool, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context, prefix, suffix string) ([]string, error)
}

// Mailbox is the ordered command queue in the shared folder. Each
// command is its own encrypted file named by a monotonically
// increasing id; numeric id order is delivery order.
type Mailbox struct {
	storage mailboxStorage
	key     *cryptobox.Key
	logger  *slog.Logger
	last    atomic.Uint64
}

// NewMailbox returns the mailbox of storage.
func NewMailbox(storage mailboxStorage, key *cryptobox.Key, logger *slog.Logger) *Mailbox {
	return &Mailbox{storage: storage, key: key, logger: logger}
}

// Seed advances the id counter past every command already in the
// folder, so a restarted sender never overwrites undelivered commands
// or sorts new ones before them.
func (m *Mailbox) Seed(ctx context.Context) error {
	names, err := m.storage.List(ctx, commandPrefix, commandSuffix)
	if err != nil {
		return fmt.Errorf("listing mailbox: %w", err)
	}
	var highest uint64
	for _, name := range names {
		if id, ok := parseCommandID(name); ok && id > highest {
			highest = id
		}
	}
	for {
		current := m.last.Load()
		if current >= highest || m.last.CompareAndSwap(current, highest) {
			return nil
		}
	}
}

// Send encrypts command into the next mailbox file and returns its id.
func (m *Mailbox) Send(ctx context.Context, command Command) (uint64, error) {
	payload, err := codec.Marshal(command)
	if err != nil {
		return 0, fmt.Errorf("encoding command: %w", err)
	}
	blob, err := m.key.Encrypt(payload)
	if err != nil {
		return 0, err
	}
	id := m.last.Add(1)
	if err := m.storage.WriteFile(ctx, commandFileName(id), blob); err != nil {
		return 0, fmt.Errorf("writing command %d: %w", id, err)
	}
	return id, nil
}

type mailboxEntry struct {
	id   uint64
	name string
}

// ReceiveAll delivers every command currently in the mailbox to handle
// in ascending id order and returns how many were delivered.
//
// Each file is deleted before its command is handled, whether or not
// it decoded: a command that cannot be decrypted is logged and
// dropped, and files whose names carry no id are deleted as poison.
// A file that cannot be read or deleted is logged and skipped; its
// command is not executed, so delivery stays at-most-once. Only a
// storage timeout, the end of ctx, or a handler error stops the batch;
// the remaining files are picked up by the next call.
func (m *Mailbox) ReceiveAll(ctx context.Context, handle func(ctx context.Context, id uint64, command Command) error) (int, error) {
	names, err := m.storage.List(ctx, commandPrefix, commandSuffix)
	if err != nil {
		return 0, fmt.Errorf("listing mailbox: %w", err)
	}

	entries := make([]mailboxEntry, 0, len(names))
	for _, name := range names {
		id, ok := parseCommandID(name)
		if !ok {
			m.logger.Warn("deleting mailbox file with unparsable name", "file", name)
			if err := m.storage.Remove(ctx, name); err != nil {
				if stopsBatch(ctx, err) {
					return 0, fmt.Errorf("deleting %s: %w", name, err)
				}
				m.logger.Warn("cannot delete mailbox file", "file", name, "error", err)
			}
			continue
		}
		entries = append(entries, mailboxEntry{id: id, name: name})
	}
	slices.SortFunc(entries, func(a, b mailboxEntry) int {
		return cmp.Compare(a.id, b.id)
	})

	delivered := 0
	for _, entry := range entries {
		blob, found, err := m.storage.ReadFile(ctx, entry.name)
		if err != nil {
			if stopsBatch(ctx, err) {
				return delivered, fmt.Errorf("reading command %d: %w", entry.id, err)
			}
			m.logger.Warn("skipping unreadable command", "id", entry.id, "error", err)
			continue
		}
		if !found {
			continue
		}

		command, decodeErr := m.decode(blob)

		if err := m.storage.Remove(ctx, entry.name); err != nil {
			if stopsBatch(ctx, err) {
				return delivered, fmt.Errorf("deleting command %d: %w", entry.id, err)
			}
			m.logger.Warn("skipping command that cannot be deleted", "id", entry.id, "error", err)
			continue
		}

		if decodeErr != nil {
			m.logger.Warn("discarding undecodable command", "id", entry.id, "error", decodeErr)
			continue
		}
		if err := handle(ctx, entry.id, command); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// stopsBatch reports whether a storage error ends a receive batch
// rather than only the file it occurred on.
func stopsBatch(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, ErrTransportTimeout) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (m *Mailbox) decode(blob []byte) (Command, error) {
	payload, err := m.key.Decrypt(blob)
	if err != nil {
		return Command{}, err
	}
	var command Command
	if err := codec.Unmarshal(payload, &command); err != nil {
		m.logPayload(payload)
		return Command{}, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	if err := command.Validate(); err != nil {
		m.logPayload(payload)
		return Command{}, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return command, nil
}

// logPayload logs the CBOR diagnostic notation of a decrypted payload
// that is not a valid command.
func (m *Mailbox) logPayload(payload []byte) {
	if !m.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	diagnostic, err := codec.Diagnose(payload)
	if err != nil {
		diagnostic = fmt.Sprintf("not CBOR (%v)", err)
	}
	m.logger.Debug("command payload", "diagnostic", diagnostic, "bytes", len(payload))
}

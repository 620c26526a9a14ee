// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/bureau-foundation/sharedesk/lib/secret"
)

// Identity is an age X25519 keypair. PrivateKey is held in a
// secret.Buffer; call Close when done.
type Identity struct {
	PrivateKey *secret.Buffer
	PublicKey  string
}

// Close releases the private key memory.
func (i *Identity) Close() error {
	if i.PrivateKey != nil {
		return i.PrivateKey.Close()
	}
	return nil
}

// GenerateIdentity creates a fresh age X25519 keypair.
func GenerateIdentity() (*Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting age identity: %w", err)
	}
	return &Identity{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// SealKey encrypts key material to every recipient (age1... strings)
// and returns base64 text.
func SealKey(key []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, recipientKey := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(recipientKey))
		if err != nil {
			return "", fmt.Errorf("parsing recipient %q: %w", recipientKey, err)
		}
		recipients = append(recipients, recipient)
	}

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(key); err != nil {
		return "", fmt.Errorf("sealing key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing sealed key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed.Bytes()), nil
}

// OpenKey decrypts text produced by SealKey with an AGE-SECRET-KEY-1...
// identity. The identity buffer is borrowed, not closed. The returned
// buffer must be closed by the caller.
func OpenKey(sealedText string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(privateKey.Bytes())))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealedText))
	if err != nil {
		return nil, fmt.Errorf("decoding sealed key: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return nil, fmt.Errorf("opening sealed key: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading sealed key: %w", err)
	}

	key, err := secret.NewFromBytes(plaintext)
	if err != nil {
		clear(plaintext)
		return nil, fmt.Errorf("protecting opened key: %w", err)
	}
	return key, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sharedesk/cmd/sharedesk/cli"
	"github.com/bureau-foundation/sharedesk/lib/config"
	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
	"github.com/bureau-foundation/sharedesk/lib/sealed"
	"github.com/bureau-foundation/sharedesk/lib/secret"
)

// maxSealedKeySize bounds what key import reads from stdin. A sealed
// 32-byte key to a handful of recipients is well under 4 KiB.
const maxSealedKeySize = 64 << 10

func keyCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "key",
		Summary: "Move the shared encryption key between machines",
		Description: `Move the shared encryption key between machines.

The key is sealed to age X25519 recipients so it can travel over an
untrusted channel. The receiving side creates an identity with
"generate-identity", the sending side exports to its public key, and
the receiving side imports the sealed text.`,
		Subcommands: []*cli.Command{
			keyGenerateIdentityCommand(stdout),
			keyExportCommand(stdout),
			keyImportCommand(stdin, stdout),
		},
		Examples: []cli.Example{
			{Description: "On the receiving machine", Command: "sharedesk key generate-identity > ~/.sharedesk-identity"},
			{Description: "On the machine holding the key", Command: "sharedesk key export --shared /mnt/share --recipient age1... > key.sealed"},
			{Description: "Back on the receiving machine", Command: "sharedesk key import --shared /mnt/local --identity ~/.sharedesk-identity < key.sealed"},
		},
	}
}

func keyGenerateIdentityCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "generate-identity",
		Summary: "Print a new age identity",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			identity, err := sealed.GenerateIdentity()
			if err != nil {
				return err
			}
			defer identity.Close()
			fmt.Fprintf(stdout, "# public key: %s\n%s\n", identity.PublicKey, identity.PrivateKey.Bytes())
			return nil
		},
	}
}

// sharedFolder resolves --shared, falling back to the configuration
// named by SHAREDESK_CONFIG.
func sharedFolder(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if os.Getenv("SHAREDESK_CONFIG") != "" {
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		if cfg.SharedFolder != "" {
			return cfg.SharedFolder, nil
		}
	}
	return "", cli.Validation("--shared is required")
}

func keyExportCommand(stdout io.Writer) *cli.Command {
	var (
		shared     string
		recipients []string
	)
	return &cli.Command{
		Name:    "export",
		Summary: "Seal the shared key to age recipients",
		Description: `Seal the shared folder's key to one or more age recipients and
print the result as base64. A key is created first if the folder has
none.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			flagSet.StringVar(&shared, "shared", "", "shared folder holding encryption.key")
			flagSet.StringArrayVar(&recipients, "recipient", nil, "age recipient public key (age1...); repeatable")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if len(recipients) == 0 {
				return cli.Validation("at least one --recipient is required")
			}
			folder, err := sharedFolder(shared)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(folder, 0o700); err != nil {
				return fmt.Errorf("creating shared folder: %w", err)
			}

			key, _, err := cryptobox.LoadOrCreate(folder)
			if err != nil {
				return err
			}
			defer key.Close()

			raw := key.Export()
			defer clear(raw)
			text, err := sealed.SealKey(raw, recipients)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, text)
			return nil
		},
	}
}

func keyImportCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	var (
		shared       string
		identityPath string
		force        bool
	)
	return &cli.Command{
		Name:    "import",
		Summary: "Install a sealed key read from stdin",
		Description: `Open a sealed key read from stdin with an age identity and install
it as the shared folder's encryption.key. A folder that already holds
the same key is left as is; a different key is only replaced with
--force.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			flagSet.StringVar(&shared, "shared", "", "shared folder to install encryption.key into")
			flagSet.StringVar(&identityPath, "identity", "", "file holding the age identity (AGE-SECRET-KEY-1...)")
			flagSet.BoolVar(&force, "force", false, "replace an existing key")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if identityPath == "" {
				return cli.Validation("--identity is required")
			}
			folder, err := sharedFolder(shared)
			if err != nil {
				return err
			}

			identityText, err := os.ReadFile(identityPath)
			if err != nil {
				return fmt.Errorf("reading identity: %w", err)
			}
			identity, err := secret.NewFromBytes(identityLine(identityText))
			clear(identityText)
			if err != nil {
				return fmt.Errorf("identity file %s: %w", identityPath, err)
			}
			defer identity.Close()

			sealedText, err := io.ReadAll(io.LimitReader(stdin, maxSealedKeySize))
			if err != nil {
				return fmt.Errorf("reading sealed key: %w", err)
			}
			material, err := sealed.OpenKey(string(sealedText), identity)
			if err != nil {
				return err
			}
			defer material.Close()

			// Importing the key the folder already holds is a no-op, so
			// the same sealed text can be applied to both peers.
			existing, err := os.ReadFile(filepath.Join(folder, cryptobox.KeyFileName))
			if err == nil {
				same := material.Equal(existing)
				clear(existing)
				if same {
					fmt.Fprintf(stdout, "%s already holds this key\n", folder)
					return nil
				}
			}

			if err := os.MkdirAll(folder, 0o700); err != nil {
				return fmt.Errorf("creating shared folder: %w", err)
			}
			return cryptobox.Install(folder, material.Bytes(), force)
		},
	}
}

// identityLine returns the first line of an identity file that is not
// blank or a comment, as written by generate-identity and age-keygen.
// The returned slice aliases text.
func identityLine(text []byte) []byte {
	for len(text) > 0 {
		line := text
		if index := bytes.IndexByte(text, '\n'); index >= 0 {
			line, text = text[:index], text[index+1:]
		} else {
			text = nil
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] != '#' {
			return line
		}
	}
	return nil
}

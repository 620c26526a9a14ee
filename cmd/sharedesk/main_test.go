// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sharedesk/cmd/sharedesk/cli"
	"github.com/bureau-foundation/sharedesk/lib/config"
	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/share"
)

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	if err := rootCommand(strings.NewReader(""), &stdout).Execute([]string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "sharedesk ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestKeyExportImportRoundTrip(t *testing.T) {
	source := t.TempDir()
	destination := filepath.Join(t.TempDir(), "share")

	var identityOutput bytes.Buffer
	if err := rootCommand(nil, &identityOutput).Execute([]string{"key", "generate-identity"}); err != nil {
		t.Fatalf("generate-identity: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(identityOutput.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "# public key: age1") || !strings.HasPrefix(lines[1], "AGE-SECRET-KEY-1") {
		t.Fatalf("generate-identity output = %q", identityOutput.String())
	}
	publicKey := strings.TrimPrefix(lines[0], "# public key: ")
	identityPath := filepath.Join(t.TempDir(), "identity")
	if err := os.WriteFile(identityPath, identityOutput.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	var sealedOutput bytes.Buffer
	if err := rootCommand(nil, &sealedOutput).Execute([]string{"key", "export", "--shared", source, "--recipient", publicKey}); err != nil {
		t.Fatalf("export: %v", err)
	}

	err := rootCommand(bytes.NewReader(sealedOutput.Bytes()), &bytes.Buffer{}).Execute(
		[]string{"key", "import", "--shared", destination, "--identity", identityPath})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	original, err := os.ReadFile(filepath.Join(source, cryptobox.KeyFileName))
	if err != nil {
		t.Fatal(err)
	}
	imported, err := os.ReadFile(filepath.Join(destination, cryptobox.KeyFileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(original) != cryptobox.KeySize || !bytes.Equal(original, imported) {
		t.Error("imported key differs from the exported key")
	}

	// Importing the same key again leaves the folder as it is.
	var repeatOutput bytes.Buffer
	err = rootCommand(bytes.NewReader(sealedOutput.Bytes()), &repeatOutput).Execute(
		[]string{"key", "import", "--shared", destination, "--identity", identityPath})
	if err != nil {
		t.Fatalf("repeated import of the same key: %v", err)
	}
	if !strings.Contains(repeatOutput.String(), "already holds this key") {
		t.Errorf("repeated import output = %q", repeatOutput.String())
	}

	// A different key without --force must not replace the installed one.
	var otherSealed bytes.Buffer
	if err := rootCommand(nil, &otherSealed).Execute([]string{"key", "export", "--shared", t.TempDir(), "--recipient", publicKey}); err != nil {
		t.Fatalf("export of a second key: %v", err)
	}
	err = rootCommand(bytes.NewReader(otherSealed.Bytes()), &bytes.Buffer{}).Execute(
		[]string{"key", "import", "--shared", destination, "--identity", identityPath})
	if err == nil {
		t.Error("import of a different key without --force succeeded")
	}
	after, err := os.ReadFile(filepath.Join(destination, cryptobox.KeyFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(after, original) {
		t.Error("import without --force replaced the installed key")
	}
}

func TestKeyExportRequiresRecipient(t *testing.T) {
	err := rootCommand(nil, &bytes.Buffer{}).Execute([]string{"key", "export", "--shared", t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "--recipient") {
		t.Fatalf("export without recipient = %v", err)
	}
}

func TestIdentityLine(t *testing.T) {
	text := []byte("# created: now\n# public key: age1abc\n\n  AGE-SECRET-KEY-1XYZ  \n")
	if got := string(identityLine(text)); got != "AGE-SECRET-KEY-1XYZ" {
		t.Errorf("identityLine = %q", got)
	}
	if got := identityLine([]byte("# only comments\n")); got != nil {
		t.Errorf("identityLine(comments) = %q, want nil", got)
	}
}

// parsedFlags parses args with the command's flag set, as Execute does.
func parsedFlags(t *testing.T, command func() *pflag.FlagSet, args ...string) {
	t.Helper()
	if err := command().Parse(args); err != nil {
		t.Fatalf("parsing %v: %v", args, err)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("SHAREDESK_CONFIG", "")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sharedesk.yaml")
	configText := "shared_folder: /from/file\ntarget: window:111\nframe:\n  codec: zstd\n"
	if err := os.WriteFile(configPath, []byte(configText), 0o600); err != nil {
		t.Fatal(err)
	}

	flags := &sessionFlags{}
	command := clientCommand(flags)
	parsedFlags(t, command.Flags, "--config", configPath, "--target", "window:222", "--remote-control", "--input", "log")
	cfg, err := loadConfig(config.RoleClient, flags)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.SharedFolder != "/from/file" {
		t.Errorf("shared folder = %q, want the file value", cfg.SharedFolder)
	}
	if cfg.Target != "window:222" {
		t.Errorf("target = %q, want the flag value", cfg.Target)
	}
	if cfg.Frame.Codec != "zstd" {
		t.Errorf("codec = %q, want the file value", cfg.Frame.Codec)
	}
	if !cfg.RemoteControl || cfg.Input.Driver != "log" {
		t.Errorf("remote control = %v, input = %q", cfg.RemoteControl, cfg.Input.Driver)
	}
	if cfg.Role != config.RoleClient {
		t.Errorf("role = %q", cfg.Role)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("SHAREDESK_CONFIG", "")
	flags := &sessionFlags{}
	command := clientCommand(flags)
	parsedFlags(t, command.Flags, "--target", "window:")
	_, err := loadConfig(config.RoleClient, flags)
	if !errors.Is(err, share.ErrStartupConfig) {
		t.Fatalf("loadConfig = %v, want ErrStartupConfig", err)
	}
}

func TestLoadConfigOperatorDisplayDefault(t *testing.T) {
	t.Setenv("SHAREDESK_CONFIG", "")
	flags := &sessionFlags{}
	command := operatorCommand(flags)
	parsedFlags(t, command.Flags, "--shared", t.TempDir())
	cfg, err := loadConfig(config.RoleOperator, flags)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Display.Output == "" {
		t.Error("operator has no display output")
	}
}

func TestCollaborators(t *testing.T) {
	cfg := config.Default()
	cfg.Role = config.RoleClient
	cfg.SharedFolder = t.TempDir()
	cfg.Target = "window:0x3a00007"
	cfg.RemoteControl = true
	cfg.Input.Driver = "log"
	cfg.Frame.Codec = "lz4"

	sessionConfig, err := collaborators(cfg, discardLogger())
	if err != nil {
		t.Fatalf("collaborators: %v", err)
	}
	if sessionConfig.Role != share.RoleClient {
		t.Errorf("role = %s", sessionConfig.Role)
	}
	if sessionConfig.Target != desktop.Window("0x3a00007") {
		t.Errorf("target = %s", sessionConfig.Target)
	}
	if _, ok := sessionConfig.Input.(desktop.LogSink); !ok {
		t.Errorf("input = %T, want desktop.LogSink", sessionConfig.Input)
	}
	if sessionConfig.Source == nil || sessionConfig.Compressor == nil {
		t.Error("client has no source or compressor")
	}
	if sessionConfig.Intervals.Capture != cfg.Intervals.Capture.Std() {
		t.Errorf("capture interval = %s", sessionConfig.Intervals.Capture)
	}

	cfg.Role = config.RoleOperator
	cfg.Display.Output = filepath.Join(t.TempDir(), "screen.png")
	sessionConfig, err = collaborators(cfg, discardLogger())
	if err != nil {
		t.Fatalf("collaborators(operator): %v", err)
	}
	if sessionConfig.Display == nil || sessionConfig.Source != nil {
		t.Errorf("operator config = %+v", sessionConfig)
	}
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestCollaboratorsCaptureFile(t *testing.T) {
	cfg := config.Default()
	cfg.Role = config.RoleClient
	cfg.SharedFolder = t.TempDir()
	cfg.Target = "screen"
	cfg.Capture.File = filepath.Join(t.TempDir(), "frame.png")

	sessionConfig, err := collaborators(cfg, discardLogger())
	if err != nil {
		t.Fatalf("collaborators: %v", err)
	}
	source, ok := sessionConfig.Source.(desktop.FileSource)
	if !ok || source.Path != cfg.Capture.File {
		t.Errorf("source = %#v, want a FileSource reading %s", sessionConfig.Source, cfg.Capture.File)
	}
}

func TestRejectedClientLeavesNoKey(t *testing.T) {
	t.Setenv("SHAREDESK_CONFIG", "")
	folder := filepath.Join(t.TempDir(), "share")
	err := rootCommand(nil, &bytes.Buffer{}).Execute([]string{
		"client", "--shared", folder, "--target", "screen", "--capture-command", "   ",
	})
	if !errors.Is(err, share.ErrStartupConfig) {
		t.Fatalf("client with a blank capture command = %v, want ErrStartupConfig", err)
	}
	if _, err := os.Stat(filepath.Join(folder, cryptobox.KeyFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected client left %s behind (stat: %v)", cryptobox.KeyFileName, err)
	}
	if _, err := os.Stat(folder); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected client created the shared folder (stat: %v)", err)
	}
}

func TestSessionResult(t *testing.T) {
	if err := sessionResult(nil, &bytes.Buffer{}); err != nil {
		t.Errorf("sessionResult(nil) = %v", err)
	}

	startup := fmt.Errorf("%w: no display", share.ErrStartupConfig)
	if err := sessionResult(startup, &bytes.Buffer{}); err != startup {
		t.Errorf("sessionResult(startup error) = %v, want it unchanged", err)
	}

	var stderr bytes.Buffer
	gone := &share.FatalError{Loop: share.LoopCapture, Err: fmt.Errorf("%w: window 0x1", share.ErrTargetGone)}
	err := sessionResult(gone, &stderr)
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.ExitCode() != sessionEndedCode {
		t.Fatalf("sessionResult(target gone) = %v, want exit code %d", err, sessionEndedCode)
	}
	if !strings.Contains(stderr.String(), "capture loop stopped the session") {
		t.Errorf("stderr = %q, want the reason the session stopped", stderr.String())
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// sharedesk shares one machine's screen with another through a folder
// both can reach. The client captures its screen (or one window) into
// an encrypted frame file; the operator watches that file and, when
// the client allows remote control, sends mouse clicks and keystrokes
// back through an encrypted command mailbox in the same folder.
//
// Both sides need the same encryption.key in the shared folder. The
// first process to start creates one; "sharedesk key export" and
// "sharedesk key import" move it between machines sealed to an age
// recipient when the folder itself is not trusted with the key.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/sharedesk/cmd/sharedesk/cli"
	"github.com/bureau-foundation/sharedesk/lib/process"
	"github.com/bureau-foundation/sharedesk/lib/version"
)

func main() {
	if err := run(); err != nil {
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		var usage *cli.UsageError
		if errors.As(err, &usage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(usage.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	return rootCommand(os.Stdin, os.Stdout).Execute(os.Args[1:])
}

func rootCommand(stdin io.Reader, stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "sharedesk",
		Summary: "Share a desktop through a shared folder",
		Description: `sharedesk shares a desktop through a folder both machines can reach.

Run "sharedesk client" on the machine being shared and "sharedesk
operator" on the machine watching it. Frames and commands are
encrypted with the key in <shared-folder>/encryption.key.`,
		Subcommands: []*cli.Command{
			operatorCommand(&sessionFlags{}),
			clientCommand(&sessionFlags{}),
			keyCommand(stdin, stdout),
			{
				Name:    "version",
				Summary: "Print the version",
				Run: func(args []string) error {
					if len(args) > 0 {
						return cli.Validation("unexpected argument: %s", args[0])
					}
					fmt.Fprintf(stdout, "sharedesk %s\n", version.Info())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{Description: "Share this screen and accept remote input", Command: "sharedesk client --shared /mnt/share --remote-control"},
			{Description: "Watch and control it from the other machine", Command: "sharedesk operator --shared /mnt/share --display ~/remote.png"},
		},
	}
}

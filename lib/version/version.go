// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build version of sharedesk binaries.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is overridden at link time with -ldflags "-X ...version.Version=v1.2.3".
var Version = "dev"

// Info returns the version plus the VCS revision recorded by the Go
// toolchain, when available.
func Info() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	var revision, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			if setting.Value == "true" {
				modified = "-dirty"
			}
		}
	}
	if revision == "" {
		return Version
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return fmt.Sprintf("%s (%s%s)", Version, revision, modified)
}

// Print writes "<binary> <version>" to stdout.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}

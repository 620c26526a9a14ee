// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the sharedesk
// binary: a tree of [Command] values with pflag flag sets, structured
// help, and "did you mean" suggestions for mistyped commands and
// flags. It also builds the process logger from the common logging
// flags.
package cli

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for sharedesk sessions.
//
// Configuration is loaded from a single file specified by either the
// SHAREDESK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). Files ending in .json or .jsonc are parsed as JSON
// with comments and trailing commas; everything else is YAML. Unknown
// keys are rejected so typos surface at startup instead of silently
// falling back to defaults.
//
// Command-line flags override file values; the CLI applies them after
// loading and then calls [Config.Validate], which reports every problem
// at once.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded.
//
// Durations are written as Go duration strings ("50ms", "5s").
//
// This package depends on no other sharedesk packages.
package config

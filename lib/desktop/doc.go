// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package desktop talks to the local graphical session: it grabs frames,
// injects pointer and keyboard input, and writes received frames
// somewhere a human can look at them.
//
// The package also owns the vocabulary shared by both peers: [Target]
// (whole screen or one window), [Button], [Modifiers], and the named
// special [Key] tokens such as {LEFT} and {F5}.
//
// Implementations:
//
//   - [XDoTool] injects input and locates windows through the xdotool
//     binary. Every call runs one xdotool process bound to the caller's
//     context.
//   - [CommandSource] captures frames by running an external command
//     that writes PNG or JPEG to stdout (ImageMagick's import by
//     default).
//   - [FileSource] reads frames from an image file rewritten by some
//     other capturer.
//   - [LogSink] records input requests without executing them.
//   - [PNGDisplay] atomically rewrites a PNG file with every new frame.
//
// A window that no longer exists is reported as [ErrWindowGone].
package desktop

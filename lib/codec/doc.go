// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every sharedesk
// payload that lands in the shared folder: mailbox commands and frame
// envelopes. Both sides of a session must encode identically, so the
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2).
//
//	data, err := codec.Marshal(command)
//	err = codec.Unmarshal(data, &command)
//
// Types tagged `cbor` are only ever written to the shared folder. Types
// tagged `json` are also exposed through the local status API; the CBOR
// library falls back to `json` tags when `cbor` tags are absent.
package codec

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed moves the session key between machines without
// trusting the channel it travels over.
//
// The shared folder itself carries encryption.key in the clear, which
// is fine when the folder is private to the two parties. When it is
// not, the Operator can seal the key to the Client's age X25519
// recipient ([SealKey]) and send the armoured text any way they like;
// the Client unseals it with its identity ([OpenKey]) and installs it
// in its local copy of the folder.
//
// Sealed text is standard base64 of the age binary format.
package sealed

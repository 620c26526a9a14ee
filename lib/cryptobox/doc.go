// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cryptobox owns the session key and the payload cipher shared
// by both parties of a sharedesk session.
//
// [LoadOrCreate] is the KeyStore: it reads <shared>/encryption.key (32
// raw bytes) or generates and persists a new one. [Key.Encrypt] and
// [Key.Decrypt] are the CryptoBox: AES-256-CBC with PKCS#7 padding and a
// fresh random 16-byte IV prepended to every ciphertext:
//
//	IV (16 bytes) || AES-CBC(key, IV, PKCS7(plaintext))
//
// The scheme provides confidentiality only. There is no MAC: a torn,
// corrupted, or foreign blob either fails padding validation or
// decrypts to garbage that the payload decoder rejects. Callers treat
// every [ErrCrypto] as "discard and continue".
package cryptobox

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// IVSize is the length of the IV prepended to every ciphertext.
const IVSize = aes.BlockSize

// ErrCrypto marks a blob that could not be decrypted: too short, not
// block aligned, or bad padding.
var ErrCrypto = errors.New("cryptobox: cannot decrypt payload")

// Encrypt returns IV || AES-256-CBC(PKCS7(plaintext)) with a fresh
// random IV.
func (k *Key) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(k.material.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	output := make([]byte, IVSize+len(plaintext)+padding)
	iv := output[:IVSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	body := output[IVSize:]
	copy(body, plaintext)
	for index := len(plaintext); index < len(body); index++ {
		body[index] = byte(padding)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(body, body)
	return output, nil
}

// Decrypt reverses Encrypt. Every malformed input yields an error
// wrapping ErrCrypto; Decrypt never panics on foreign data.
func (k *Key) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < IVSize+aes.BlockSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than IV plus one block", ErrCrypto, len(blob))
	}
	if (len(blob)-IVSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not block aligned", ErrCrypto, len(blob)-IVSize)
	}

	block, err := aes.NewCipher(k.material.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	plaintext := make([]byte, len(blob)-IVSize)
	cipher.NewCBCDecrypter(block, blob[:IVSize]).CryptBlocks(plaintext, blob[IVSize:])

	padding := int(plaintext[len(plaintext)-1])
	if padding == 0 || padding > aes.BlockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrCrypto)
	}
	for _, value := range plaintext[len(plaintext)-padding:] {
		if int(value) != padding {
			return nil, fmt.Errorf("%w: bad padding", ErrCrypto)
		}
	}
	return plaintext[:len(plaintext)-padding], nil
}

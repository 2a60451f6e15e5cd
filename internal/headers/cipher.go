package headers

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

const (
	ivSize = aes.BlockSize
	// ivHexLen is the length of the hex-encoded IV prefix of a ciphertext.
	ivHexLen = ivSize * 2
	// keyHexLen hex characters of the SHA-512 digest are used as raw key bytes.
	keyHexLen = 32
)

// Cipher encrypts header values with AES-256-CBC.
//
// A Cipher generates its IV once and reuses it for every Encrypt call. This
// keeps ciphertexts compatible with existing consumers of the header format,
// but it means two equal plaintexts encrypted with the same secret produce
// equal ciphertexts. Create one Cipher per session.
type Cipher struct {
	iv []byte
}

// NewCipher returns a Cipher with a freshly generated random IV.
func NewCipher() (*Cipher, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return &Cipher{iv: iv}, nil
}

// NewCipherWithIV returns a Cipher that uses the given 16-byte IV.
func NewCipherWithIV(iv []byte) (*Cipher, error) {
	if len(iv) != ivSize {
		return nil, fmt.Errorf("IV must be %d bytes, got %d", ivSize, len(iv))
	}
	return &Cipher{iv: bytes.Clone(iv)}, nil
}

// Encrypt encrypts plaintext with a key derived from secret and returns
// hex(iv) followed by hex(ciphertext).
func (c *Cipher) Encrypt(plaintext, secret string) (string, error) {
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)

	return hex.EncodeToString(c.iv) + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. The IV is read from the first 32 hex characters
// of ciphertext, so values produced by any Cipher can be decrypted.
func Decrypt(ciphertext, secret string) (string, error) {
	if len(ciphertext) <= ivHexLen {
		return "", &DecryptionError{Reason: "ciphertext too short"}
	}

	iv, err := hex.DecodeString(ciphertext[:ivHexLen])
	if err != nil {
		return "", &DecryptionError{Reason: "malformed IV", Err: err}
	}
	data, err := hex.DecodeString(ciphertext[ivHexLen:])
	if err != nil {
		return "", &DecryptionError{Reason: "malformed ciphertext", Err: err}
	}
	if len(data)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: "ciphertext is not a multiple of the block size"}
	}

	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return "", &DecryptionError{Reason: "invalid key", Err: err}
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", &DecryptionError{Reason: "bad padding, wrong key?", Err: err}
	}
	return string(plain), nil
}

// deriveKey returns the first 32 characters of the hex SHA-512 of secret,
// used verbatim as the 32 key bytes.
func deriveKey(secret string) []byte {
	sum := sha512.Sum512([]byte(secret))
	return []byte(hex.EncodeToString(sum[:])[:keyHexLen])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}

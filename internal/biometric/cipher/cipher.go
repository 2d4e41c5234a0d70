// Package cipher encrypts normalized biometric templates at rest.
//
// Blobs are AES-256-CBC with PKCS#7 padding and a fresh random IV per call,
// serialized as "<hex-iv>:<hex-ciphertext>". The AES key is derived from the
// configured secret with HKDF-SHA256, so operators may supply a passphrase of
// any length.
package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrDecryption is returned for every blob that cannot be decrypted:
// malformed encoding, wrong key, or corrupt padding.
var ErrDecryption = errors.New("biometric template decryption failed")

const (
	keySize   = 32
	hkdfInfo  = "biovault/biometric-template/aes-256-cbc"
	separator = ":"
)

// Cipher is immutable after New and safe for concurrent use.
type Cipher struct {
	block gocipher.Block
	rand  io.Reader
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithRandom overrides the IV source. Tests only.
func WithRandom(r io.Reader) Option {
	return func(c *Cipher) {
		if r != nil {
			c.rand = r
		}
	}
}

// New derives the AES key from secret. An empty secret is a configuration
// fault; there is no fallback key.
func New(secret []byte, opts ...Option) (*Cipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("biometric encryption key is required")
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive biometric key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init biometric cipher: %w", err)
	}
	c := &Cipher{block: block, rand: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encrypt returns the hex-encoded IV and ciphertext of plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + separator + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. All failures wrap ErrDecryption.
func (c *Cipher) Decrypt(blob string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(blob, separator)
	if !ok {
		return "", fmt.Errorf("%w: missing iv separator", ErrDecryption)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("%w: iv is not hex", ErrDecryption)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes", ErrDecryption, aes.BlockSize)
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not hex", ErrDecryption)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryption)
	}
	out := make([]byte, len(ct))
	gocipher.NewCBCDecrypter(c.block, iv).CryptBlocks(out, ct)
	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}

// Package crypto encrypts message content at rest and redacts personal
// identifiers from free text.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
)

// Ensure ContentCrypto implements the interface.
var _ driven.ContentCrypto = (*ContentCrypto)(nil)

// Key derivation parameters.
const (
	DefaultIterations = 100000
	saltSize          = 16
	keySize           = 32
)

// Config holds configuration for ContentCrypto.
type Config struct {
	// Passphrase is required.
	Passphrase string

	// Iterations is the PBKDF2 work factor. Zero selects DefaultIterations.
	Iterations int
}

// ContentCrypto seals text with AES-256-GCM under a PBKDF2-SHA256 key.
// Every ciphertext carries its own random salt, so the encoded form is
//
//	base64url(salt[16] || nonce[12] || sealed)
type ContentCrypto struct {
	passphrase []byte
	iterations int
	random     io.Reader
}

// New creates a ContentCrypto for the given passphrase.
func New(cfg Config) (*ContentCrypto, error) {
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("crypto: passphrase is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	return &ContentCrypto{
		passphrase: []byte(cfg.Passphrase),
		iterations: cfg.Iterations,
		random:     rand.Reader,
	}, nil
}

func (c *ContentCrypto) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, c.iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt returns the encoded ciphertext for text.
func (c *ContentCrypto) Encrypt(text string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(c.random, salt); err != nil {
		return "", fmt.Errorf("crypto: generate salt: %w", err)
	}
	gcm, err := c.aead(salt)
	if err != nil {
		return "", fmt.Errorf("crypto: init cipher: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(text)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(text), nil)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Malformed, tampered or foreign input
// returns domain.ErrDecryptFailed.
func (c *ContentCrypto) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: decode: %w", domain.ErrDecryptFailed)
	}
	if len(raw) < saltSize {
		return "", fmt.Errorf("crypto: ciphertext too short: %w", domain.ErrDecryptFailed)
	}

	gcm, err := c.aead(raw[:saltSize])
	if err != nil {
		return "", fmt.Errorf("crypto: init cipher: %w", err)
	}
	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return "", fmt.Errorf("crypto: ciphertext too short: %w", domain.ErrDecryptFailed)
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: open: %w", domain.ErrDecryptFailed)
	}
	return string(plain), nil
}

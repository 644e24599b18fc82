package driven

// ContentCrypto encrypts message content for storage at rest.
// The conversation store treats ciphertext as opaque text.
type ContentCrypto interface {
	// Encrypt returns an encoded ciphertext for text.
	Encrypt(text string) (string, error)

	// Decrypt reverses Encrypt. Returns domain.ErrDecryptFailed on tampered
	// or foreign input.
	Decrypt(ciphertext string) (string, error)
}

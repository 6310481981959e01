package crypto

import "errors"

var (
	// ErrDecryptionFailed is returned when AES-GCM authentication fails.
	// This is the expected failure when a payload is opened with the wrong key.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrCiphertextTooShort is returned when a ciphertext cannot hold a nonce and tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrInvalidPublicKey is returned when bytes do not encode a P-256 point.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned when bytes do not encode a P-256 private key.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrSignatureVerificationFailed is returned when an ECDSA signature does not verify.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
)

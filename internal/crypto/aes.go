package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptAES encrypts data using AES-256-GCM with a fresh random nonce.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func EncryptAES(key, plaintext []byte) ([]byte, error) {
	nonce, err := RandomBytes(AESNonceSize)
	if err != nil {
		return nil, err
	}
	return EncryptAESWithNonce(key, plaintext, nonce)
}

// EncryptAESWithNonce encrypts data using AES-256-GCM and the given nonce.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func EncryptAESWithNonce(key, plaintext, nonce []byte) ([]byte, error) {
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, AESNonceSize, AESNonceSize+len(plaintext)+AESTagSize)
	copy(out, nonce)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// DecryptAES decrypts data using AES-256-GCM.
// The ciphertext format is: nonce (12 bytes) || ciphertext || tag (16 bytes)
func DecryptAES(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < AESNonceSize+AESTagSize {
		return nil, ErrCiphertextTooShort
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[:AESNonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[AESNonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

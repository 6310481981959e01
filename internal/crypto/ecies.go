package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
)

// PublicEncrypt wraps plaintext to a recipient P-256 public key.
//
// The construction:
//  1. Generate an ephemeral P-256 key pair
//  2. ECDH with the recipient key; the AES key is SHA-256 of the shared secret
//  3. AES-256-GCM encrypt the plaintext
//
// Output: ephemeral public key (65 bytes) || nonce || ciphertext || tag
func PublicEncrypt(plaintext []byte, recipient *ecdh.PublicKey) ([]byte, error) {
	ephemeral, err := ecdh.P256().GenerateKey(random())
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	key := sha256.Sum256(shared)

	ciphertext, err := EncryptAES(key[:], plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, ECPublicKeySize+len(ciphertext))
	out = append(out, ephemeral.PublicKey().Bytes()...)
	return append(out, ciphertext...), nil
}

// PrivateDecrypt reverses PublicEncrypt using the recipient's private key.
func PrivateDecrypt(ciphertext []byte, priv *ecdh.PrivateKey) ([]byte, error) {
	if len(ciphertext) < ECPublicKeySize+AESNonceSize+AESTagSize {
		return nil, ErrCiphertextTooShort
	}
	ephemeral, err := ParsePublicKey(ciphertext[:ECPublicKeySize])
	if err != nil {
		return nil, err
	}
	shared, err := priv.ECDH(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	key := sha256.Sum256(shared)
	return DecryptAES(key[:], ciphertext[ECPublicKeySize:])
}

// PrivateDecryptECDSA is PrivateDecrypt for a device key held as an ECDSA key.
func PrivateDecryptECDSA(ciphertext []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	dh, err := priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return PrivateDecrypt(ciphertext, dh)
}

package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"fmt"
)

// GenerateKeyPair creates a new P-256 device key pair.
func GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), random())
}

// PublicKeyBytes returns the uncompressed 65-byte encoding of the public half.
func PublicKeyBytes(priv *ecdsa.PrivateKey) ([]byte, error) {
	pub, err := priv.PublicKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub.Bytes(), nil
}

// MarshalPrivateKey encodes a device private key as PKCS#8 DER.
func MarshalPrivateKey(priv *ecdsa.PrivateKey) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(priv)
}

// ParsePrivateKey decodes a P-256 private key stored as PKCS#8 DER,
// SEC 1 DER, or a raw 32-byte scalar.
func ParsePrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	if len(der) == ECPrivateKeySize {
		priv, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		return priv, nil
	}

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok || priv.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidPrivateKey)
		}
		return priv, nil
	}

	priv, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	if priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: not a P-256 key", ErrInvalidPrivateKey)
	}
	return priv, nil
}

// ParsePublicKey decodes an uncompressed P-256 point for key agreement.
func ParsePublicKey(b []byte) (*ecdh.PublicKey, error) {
	if len(b) != ECPublicKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPublicKey, len(b), ECPublicKeySize)
	}
	pub, err := ecdh.P256().NewPublicKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// ParseVerifyingKey decodes an uncompressed P-256 point for signature checks.
func ParseVerifyingKey(b []byte) (*ecdsa.PublicKey, error) {
	pub, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

package crypto

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
)

// Sign produces an ASN.1 ECDSA-SHA256 signature over data.
func Sign(data []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(random(), priv, digest[:])
}

// Verify checks an ASN.1 ECDSA-SHA256 signature over data.
func Verify(data, signature []byte, pub *ecdsa.PublicKey) error {
	digest := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(pub, digest[:], signature) {
		return ErrSignatureVerificationFailed
	}
	return nil
}

// HMACSHA512 returns HMAC-SHA512(key, message).
func HMACSHA512(key, message []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// ClientID derives the device client identifier from a one-time token key:
// base64(HMAC-SHA512(clientKey, ClientIDTag)).
func ClientID(clientKey []byte) string {
	return ToBase64(HMACSHA512(clientKey, []byte(ClientIDTag)))
}

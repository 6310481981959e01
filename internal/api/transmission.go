package api

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"

	"github.com/secretsmanager/client-go/internal/crypto"
)

// TransmissionKey is the per-request symmetric key and its wrapped form.
type TransmissionKey struct {
	PublicKeyID  int
	Key          []byte
	EncryptedKey []byte
}

// EncryptedPayload is a request body ready to be posted.
type EncryptedPayload struct {
	Payload   []byte
	Signature []byte
}

// GenerateTransmissionKey creates a fresh key wrapped to server key keyID.
func GenerateTransmissionKey(keys map[int][]byte, keyID int) (*TransmissionKey, error) {
	raw, ok := keys[keyID]
	if !ok {
		return nil, &UnsupportedKeyIDError{KeyID: keyID}
	}
	pub, err := crypto.ParsePublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("server key %d: %w", keyID, err)
	}

	key, err := crypto.GenerateAESKey()
	if err != nil {
		return nil, err
	}
	encrypted, err := crypto.PublicEncrypt(key, pub)
	if err != nil {
		return nil, fmt.Errorf("wrap transmission key: %w", err)
	}
	return &TransmissionKey{PublicKeyID: keyID, Key: key, EncryptedKey: encrypted}, nil
}

// EncryptAndSign encrypts body with the transmission key and signs
// EncryptedKey || Payload with the device key.
func EncryptAndSign(tk *TransmissionKey, body []byte, priv *ecdsa.PrivateKey) (*EncryptedPayload, error) {
	payload, err := crypto.EncryptAES(tk.Key, body)
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}
	signed := make([]byte, 0, len(tk.EncryptedKey)+len(payload))
	signed = append(signed, tk.EncryptedKey...)
	signed = append(signed, payload...)
	sig, err := crypto.Sign(signed, priv)
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	return &EncryptedPayload{Payload: payload, Signature: sig}, nil
}

// Headers returns the request headers for a signed payload.
func (tk *TransmissionKey) Headers(p *EncryptedPayload) map[string]string {
	return map[string]string{
		"PublicKeyId":     strconv.Itoa(tk.PublicKeyID),
		"TransmissionKey": crypto.ToBase64(tk.EncryptedKey),
		"Authorization":   "Signature " + crypto.ToBase64(p.Signature),
		"Content-Type":    "application/octet-stream",
		"Content-Length":  strconv.Itoa(len(p.Payload)),
	}
}

package crypto

const (
	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// ECPublicKeySize is the size of an uncompressed P-256 point (0x04 || X || Y).
	ECPublicKeySize = 65
	// ECPrivateKeySize is the size of a raw P-256 scalar.
	ECPrivateKeySize = 32

	// ClientIDTag is the HMAC message used to derive a client identifier
	// from a one-time token key.
	ClientIDTag = "KEEPER_SECRETS_MANAGER_CLIENT_ID"
)

// Package crypto provides the cryptographic primitives of the secrets
// manager transmission protocol.
//
// # Algorithm Suite
//
//   - AES-256-GCM: authenticated encryption for every payload, key and
//     record blob. Ciphertexts are laid out as nonce (12 bytes) ||
//     ciphertext || tag (16 bytes).
//
//   - ECIES over NIST P-256: [PublicEncrypt] wraps a value to a public key
//     with an ephemeral key pair; the AES key is SHA-256 of the ECDH shared
//     secret. The output is prefixed with the 65-byte uncompressed
//     ephemeral public key.
//
//   - ECDSA P-256 with SHA-256: request signatures, ASN.1 encoded.
//
//   - HMAC-SHA512: client identifier derivation from a one-time token.
//
// # Failure Semantics
//
// [DecryptAES] returns [ErrDecryptionFailed] on tag mismatch. Opening a blob
// with the wrong key in the hierarchy fails this way, so callers must not
// treat it as a soft error.
//
// # Base64 Encoding
//
//   - [ToBase64URL]/[FromBase64URL]: URL-safe base64 without padding (RFC 4648 §5).
//     Used for UIDs and notation file output.
//
//   - [ToBase64]/[FromBase64]: Standard base64 with padding (RFC 4648 §4).
//     Used for values inside JSON payloads and HTTP headers.
//
//   - [DecodeBase64]: accepts either alphabet, padded or not.
package crypto

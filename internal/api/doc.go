// Package api implements the transmission-key protocol used to talk to
// the secrets manager service.
//
// # Requests
//
// Every request gets a fresh 32-byte transmission key. The key is wrapped
// to one of the pinned server public keys ([DefaultServerKeys]) and the
// JSON payload is encrypted with it using AES-256-GCM. The device signs
// wrappedKey || ciphertext with its P-256 key, and the request carries:
//
//   - PublicKeyId: the server key id used to wrap the transmission key.
//   - TransmissionKey: the wrapped key, standard base64.
//   - Authorization: "Signature " followed by the base64 signature.
//
// A 2xx body is decrypted with the same transmission key.
//
// # Key Rotation
//
// A non-2xx response of the form {"error":"key","key_id":N} means the
// server wants key N. [Client.PostQuery] stores N through the [KeyIDStore]
// and retries, up to [Config.MaxAttempts] attempts in total, then fails
// with [KeyRotationExhaustedError]. Any other error body surfaces as a
// [RemoteError].
//
// # Transports
//
// The POST transport, the file fetcher and the file uploader are plain
// functions so tests and caching wrappers can replace them. The defaults
// use net/http. File downloads are retried with exponential backoff for
// 408, 429 and 5xx responses; protocol requests are not.
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use. Concurrent requests each
// build their own transmission key and share only the stored key id.
package api

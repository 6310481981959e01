package secretsmanager

import (
	"errors"
	"fmt"

	"github.com/secretsmanager/client-go/internal/api"
	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/internal/keychain"
	"github.com/secretsmanager/client-go/notation"
	"github.com/secretsmanager/client-go/record"
	"github.com/secretsmanager/client-go/storage"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrConfigurationConflict is returned when storage is already bound to
	// a different client id than the one derived from the token.
	ErrConfigurationConflict = errors.New("storage already holds a different client id")

	// ErrMissingAppKey is returned when a non-binding response arrives and
	// storage holds no app key.
	ErrMissingAppKey = errors.New("storage is not bound to an application")

	// ErrDecryption is matched by every *DecryptionError.
	ErrDecryption = errors.New("decryption failed")

	// ErrUnsupportedKeyID is returned when the stored server key id is not
	// in the client's key table.
	ErrUnsupportedKeyID = errors.New("unsupported server public key id")

	// ErrKeyRotationExhausted is returned when the server kept asking for a
	// different key after every attempt.
	ErrKeyRotationExhausted = errors.New("server key rotation retries exhausted")

	// ErrNotationSyntax is returned for malformed notation.
	ErrNotationSyntax = notation.ErrSyntax

	// ErrRecordNotFound is returned when no record matches a notation.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAmbiguousRecord is returned when more than one record matches a notation.
	ErrAmbiguousRecord = errors.New("more than one record matches")

	// ErrFieldNotFound is returned when a record has no matching field.
	ErrFieldNotFound = errors.New("field not found")

	// ErrFileNotFound is returned when a record has no matching file.
	ErrFileNotFound = errors.New("file not found")

	// ErrAmbiguousFile is returned when more than one file matches.
	ErrAmbiguousFile = errors.New("more than one file matches")

	// ErrFolderNotFound is returned when a folder UID is not shared with the application.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrIndexOutOfBounds is returned for a value index outside the field's values.
	ErrIndexOutOfBounds = record.ErrIndexOutOfBounds

	// ErrUnsupportedProperty is returned when a property is requested from a
	// plain value or does not exist on a structured value.
	ErrUnsupportedProperty = record.ErrUnsupportedProperty

	// ErrResultCount is returned by GetNotation when a notation does not
	// resolve to exactly one value.
	ErrResultCount = errors.New("notation did not resolve to exactly one value")
)

// SecretsManagerError is implemented by all SDK errors.
type SecretsManagerError interface {
	error
	SecretsManagerError() // marker method
}

// ConfigurationError reports missing or conflicting identity material.
// The caller usually has to bind again with a new token.
type ConfigurationError struct {
	Key     storage.Key
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Key != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Key, msg)
	}
	return fmt.Sprintf("configuration error: %s", msg)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *ConfigurationError) SecretsManagerError() {}

// DecryptionError reports an authentication failure while unwrapping a key
// or decrypting a payload. It names the step and the UID involved.
type DecryptionError struct {
	Context string
	UID     string
	Err     error
}

func (e *DecryptionError) Error() string {
	if e.UID != "" {
		return fmt.Sprintf("decryption failed for %s %s: %v", e.Context, e.UID, e.Err)
	}
	return fmt.Sprintf("decryption failed for %s: %v", e.Context, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryption
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *DecryptionError) SecretsManagerError() {}

// UnsupportedKeyIDError is returned when the server public key id has no
// entry in the key table, usually a client and server version mismatch.
type UnsupportedKeyIDError struct {
	KeyID int
}

func (e *UnsupportedKeyIDError) Error() string {
	return fmt.Sprintf("unsupported server public key id %d", e.KeyID)
}

// Is implements errors.Is for sentinel error matching.
func (e *UnsupportedKeyIDError) Is(target error) bool {
	return target == ErrUnsupportedKeyID
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *UnsupportedKeyIDError) SecretsManagerError() {}

// KeyRotationExhaustedError is returned after the bounded number of key
// rotation retries.
type KeyRotationExhaustedError struct {
	Attempts  int
	LastKeyID int
}

func (e *KeyRotationExhaustedError) Error() string {
	return fmt.Sprintf("server key rotation retries exhausted after %d attempts (last key id %d)", e.Attempts, e.LastKeyID)
}

// Is implements errors.Is for sentinel error matching.
func (e *KeyRotationExhaustedError) Is(target error) bool {
	return target == ErrKeyRotationExhausted
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *KeyRotationExhaustedError) SecretsManagerError() {}

// RemoteError is an error reported by the service, passed through verbatim.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("remote error %d: %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Code)
	case e.Message != "":
		return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
	case e.Body != "":
		return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote error %d", e.StatusCode)
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *RemoteError) SecretsManagerError() {}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *NetworkError) SecretsManagerError() {}

// NotationError wraps every failure to parse or resolve a notation.
type NotationError struct {
	Notation string
	Err      error
}

func (e *NotationError) Error() string {
	return fmt.Sprintf("notation %q: %v", e.Notation, e.Err)
}

// Unwrap returns the underlying error.
func (e *NotationError) Unwrap() error {
	return e.Err
}

// SecretsManagerError implements the SecretsManagerError interface.
func (e *NotationError) SecretsManagerError() {}

// wrapError converts internal errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var remoteErr *api.RemoteError
	if errors.As(err, &remoteErr) {
		return &RemoteError{
			StatusCode: remoteErr.StatusCode,
			Code:       remoteErr.Code,
			Message:    remoteErr.Message,
			Body:       remoteErr.Body,
		}
	}

	var keyErr *api.UnsupportedKeyIDError
	if errors.As(err, &keyErr) {
		return &UnsupportedKeyIDError{KeyID: keyErr.KeyID}
	}

	var rotationErr *api.KeyRotationExhaustedError
	if errors.As(err, &rotationErr) {
		return &KeyRotationExhaustedError{Attempts: rotationErr.Attempts, LastKeyID: rotationErr.LastKeyID}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	var decErr *keychain.DecryptionError
	if errors.As(err, &decErr) {
		return &DecryptionError{Context: decErr.Context, UID: decErr.UID, Err: decErr.Err}
	}

	if errors.Is(err, api.ErrInvalidResponse) && errors.Is(err, crypto.ErrDecryptionFailed) {
		return &DecryptionError{Context: "transmission", Err: err}
	}

	return err
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors that can be checked with errors.Is.
var (
	// ErrUnsupportedKeyID indicates the server public key id is not in the key table.
	ErrUnsupportedKeyID = errors.New("unsupported server public key id")
	// ErrKeyRotationExhausted indicates the server kept asking for a different key.
	ErrKeyRotationExhausted = errors.New("server key rotation retries exhausted")
	// ErrInvalidResponse indicates a response body could not be decrypted or parsed.
	ErrInvalidResponse = errors.New("invalid response")
)

// keyErrorCode is the error code the server uses to request a different
// transmission public key.
const keyErrorCode = "key"

// RemoteError is a non-2xx response from the service.
type RemoteError struct {
	StatusCode int
	// Code is the machine readable "error" member of the body, if any.
	Code    string
	Message string
	// KeyID is set when Code is "key".
	KeyID int
	Body  string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("remote error %d: %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Code)
	case e.Body != "":
		return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote error %d", e.StatusCode)
}

// IsKeyError reports whether the server asked for a key rotation.
func (e *RemoteError) IsKeyError() bool {
	return e.Code == keyErrorCode
}

func parseRemoteError(statusCode int, body []byte) *RemoteError {
	e := &RemoteError{StatusCode: statusCode, Body: string(body)}
	var payload struct {
		Error          string `json:"error"`
		Message        string `json:"message"`
		AdditionalInfo string `json:"additional_info"`
		KeyID          int    `json:"key_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return e
	}
	e.Code = payload.Error
	e.Message = payload.Message
	if e.Message == "" {
		e.Message = payload.AdditionalInfo
	}
	e.KeyID = payload.KeyID
	return e
}

// UnsupportedKeyIDError is returned when the stored server key id has no
// entry in the configured key table.
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

// KeyRotationExhaustedError is returned when every attempt ended in a key
// rotation request.
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

// NetworkError represents a transport-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

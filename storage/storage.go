// Package storage provides key-value persistence for secrets manager
// device configuration: hostname, client identity, device keys and the
// bound application key.
//
// All implementations are safe for concurrent use. Byte values are stored
// as standard base64 strings so that every backend shares one format and
// configurations can be moved between them.
package storage

import (
	"errors"
	"fmt"

	"github.com/secretsmanager/client-go/internal/crypto"
)

// Key names a configuration entry.
type Key string

// Configuration keys. The string values are part of the on-disk format.
const (
	KeyHostname          Key = "hostname"
	KeyServerPublicKeyID Key = "serverPublicKeyId"
	KeyClientID          Key = "clientId"
	KeyClientKey         Key = "clientKey"
	KeyAppKey            Key = "appKey"
	KeyAppOwnerPublicKey Key = "appOwnerPublicKey"
	KeyPrivateKey        Key = "privateKey"
	KeyPublicKey         Key = "publicKey"
)

// Keys lists every configuration key.
var Keys = []Key{
	KeyHostname,
	KeyServerPublicKeyID,
	KeyClientID,
	KeyClientKey,
	KeyAppKey,
	KeyAppOwnerPublicKey,
	KeyPrivateKey,
	KeyPublicKey,
}

// ErrKeyNotFound is returned by Get when the key has no value.
var ErrKeyNotFound = errors.New("storage: key not found")

// KeyValueStorage is a durable string map.
type KeyValueStorage interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(key Key) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key Key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key Key) error
}

// GetString returns the value for key, or "" when it is absent.
func GetString(s KeyValueStorage, key Key) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}

// GetBytes decodes a base64 value. Absent keys return nil without error.
func GetBytes(s KeyValueStorage, key Key) ([]byte, error) {
	v, err := GetString(s, key)
	if err != nil || v == "" {
		return nil, err
	}
	b, err := crypto.DecodeBase64(v)
	if err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return b, nil
}

// SetBytes stores b as standard base64.
func SetBytes(s KeyValueStorage, key Key, b []byte) error {
	return s.Set(key, crypto.ToBase64(b))
}

// Copy copies every configuration key present in src into dst.
func Copy(dst, src KeyValueStorage) error {
	for _, key := range Keys {
		v, err := src.Get(key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := dst.Set(key, v); err != nil {
			return err
		}
	}
	return nil
}

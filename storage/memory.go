package storage

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/secretsmanager/client-go/internal/crypto"
)

// MemoryStorage keeps configuration in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[Key]string
}

// NewMemoryStorage returns a storage seeded with a copy of initial.
func NewMemoryStorage(initial map[Key]string) *MemoryStorage {
	values := make(map[Key]string, len(initial))
	maps.Copy(values, initial)
	return &MemoryStorage{values: values}
}

// NewMemoryStorageFromBase64 loads a base64-encoded JSON configuration,
// the format produced by Base64Config and accepted in KSM_CONFIG.
func NewMemoryStorageFromBase64(config string) (*MemoryStorage, error) {
	raw, err := crypto.DecodeBase64(config)
	if err != nil {
		return nil, fmt.Errorf("storage: decode config: %w", err)
	}
	var values map[Key]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("storage: parse config: %w", err)
	}
	return NewMemoryStorage(values), nil
}

func (m *MemoryStorage) Get(key Key) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *MemoryStorage) Set(key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Snapshot returns a copy of all values.
func (m *MemoryStorage) Snapshot() map[Key]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

// Base64Config encodes the configuration as base64 JSON.
func (m *MemoryStorage) Base64Config() (string, error) {
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return "", err //coverage:ignore
	}
	return crypto.ToBase64(data), nil
}

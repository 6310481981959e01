package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultConfigFile is the conventional configuration file name.
const DefaultConfigFile = "client-config.json"

// FileStorage persists configuration as a JSON object in a single file.
// Every mutation rewrites the file with 0600 permissions.
type FileStorage struct {
	path   string
	mu     sync.RWMutex
	values map[Key]string
}

// NewFileStorage opens path, creating an empty configuration if the file
// does not exist yet. The file itself is only written on the first Set.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	fs := &FileStorage{path: path, values: make(map[Key]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.values); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return fs, nil
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(key Key) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (f *FileStorage) Set(key Key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.save()
}

func (f *FileStorage) Delete(key Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.save()
}

// save writes to a temporary file and renames it over the target so a
// crash never leaves a truncated configuration. Callers hold f.mu.
func (f *FileStorage) save() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err) //coverage:ignore
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

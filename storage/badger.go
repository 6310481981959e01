package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "config/"

// BadgerStorage keeps configuration in an embedded Badger database.
// Useful for agents that already embed Badger or that want
// crash-safe writes without managing a JSON file.
type BadgerStorage struct {
	db *badger.DB
}

// OpenBadgerStorage opens (or creates) a Badger database in dir.
// An empty dir opens an in-memory database.
func OpenBadgerStorage(dir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger storage: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

// NewBadgerStorage wraps an already open database. The caller keeps
// ownership of db and must not Close it through this storage.
func NewBadgerStorage(db *badger.DB) *BadgerStorage {
	return &BadgerStorage{db: db}
}

func badgerKey(key Key) []byte {
	return []byte(badgerKeyPrefix + string(key))
}

func (b *BadgerStorage) Get(key Key) (string, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badger get %s: %w", key, err)
	}
	return string(value), nil
}

func (b *BadgerStorage) Set(key Key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (b *BadgerStorage) Delete(key Key) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

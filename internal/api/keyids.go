package api

import (
	"fmt"
	"strconv"

	"github.com/secretsmanager/client-go/storage"
)

// KeyIDStore persists the server public key id between requests.
// Concurrent writers race with last-writer-wins semantics.
type KeyIDStore interface {
	ServerKeyID() (int, error)
	SetServerKeyID(id int) error
}

// StorageKeyIDs adapts a configuration storage to KeyIDStore.
func StorageKeyIDs(s storage.KeyValueStorage) KeyIDStore {
	return storageKeyIDs{s: s}
}

type storageKeyIDs struct {
	s storage.KeyValueStorage
}

func (k storageKeyIDs) ServerKeyID() (int, error) {
	v, err := storage.GetString(k.s, storage.KeyServerPublicKeyID)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return DefaultServerKeyID, nil
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", storage.KeyServerPublicKeyID, v, err)
	}
	return id, nil
}

func (k storageKeyIDs) SetServerKeyID(id int) error {
	return k.s.Set(storage.KeyServerPublicKeyID, strconv.Itoa(id))
}

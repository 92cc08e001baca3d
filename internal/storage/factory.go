package storage

import (
	"errors"
	"fmt"
)

const DefaultStoreKind = "memory"

var ErrNotInitialized = errors.New("store is not initialized")

// NewStore builds a store by kind. path is the database file for sqlite and
// the directory for badger; an empty badger path keeps data in memory.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	case "badger":
		return NewBadgerStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

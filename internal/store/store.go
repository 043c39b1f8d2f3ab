// Package store persists small string values (the session token and the
// serialized user record) across process runs. Every backend implements Store.
package store

import (
	"fmt"

	"postdesk/internal/config"
)

// Store is a string-keyed value store shared by everything in the process.
// Writes to different keys are independent; there is no multi-key transaction.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	Close() error
}

// Open returns the backend named in cfg.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		return NewFileStore(cfg.Path)
	case config.BackendBolt:
		return NewBoltStore(cfg.Path)
	case config.BackendSQLite:
		return NewLocalStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

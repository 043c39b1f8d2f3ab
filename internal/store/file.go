package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"postdesk/internal/logging"
)

// FileStore keeps all values in a single JSON object file. Every operation
// takes an advisory lock on a sibling .lock file so concurrent postdesk
// processes do not interleave their read-modify-write cycles.
type FileStore struct {
	path string
	// mu serializes goroutines; the flock only excludes other processes.
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates the parent directory of path and returns a store on it.
// The file itself is created on the first Set.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.RLock(); err != nil {
		return "", false, fmt.Errorf("failed to lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	return f.update(func(values map[string]string) {
		values[key] = value
	})
}

func (f *FileStore) Remove(key string) error {
	return f.update(func(values map[string]string) {
		delete(values, key)
	})
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lock.Close()
}

func (f *FileStore) update(mutate func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", f.path, err)
	}
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	mutate(values)
	return f.write(values)
}

func (f *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		logging.StoreWarn("storage file %s is corrupt, starting empty: %v", f.path, err)
		return make(map[string]string), nil
	}
	return values, nil
}

func (f *FileStore) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

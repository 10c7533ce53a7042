package tonconnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Storage persists connection state per key. Implementations must be
// safe for concurrent use.
type Storage interface {
	Set(ctx context.Context, key, value string) error
	// Get returns ErrStorageKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// ErrStorageKeyNotFound is returned by Storage.Get for missing keys.
var ErrStorageKeyNotFound = errors.New("tonconnect: storage key not found")

const (
	keyConnection  = "connection"
	keyLastEventID = "last_event_id"
)

// storageKey namespaces a connector key by user id.
func storageKey(userID, key string) string {
	return fmt.Sprintf("tonconnect:%s:%s", userID, key)
}

// MemoryStorage keeps state in process memory. Suitable for tests and
// short-lived tools.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (s *MemoryStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrStorageKeyNotFound
	}
	return v, nil
}

func (s *MemoryStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// FileStorage keeps state as a JSON object in a single file.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(data)
}

func (s *FileStorage) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrStorageKeyNotFound
	}
	return v, nil
}

func (s *FileStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	delete(data, key)
	return s.write(data)
}

func (s *FileStorage) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	data := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse storage file: %w", err)
		}
	}
	return data, nil
}

func (s *FileStorage) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	return nil
}

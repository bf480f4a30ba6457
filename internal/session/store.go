package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Persisted session keys. Account, chain and connection type are written
// together on connect and cleared together on disconnect; the auth token
// has its own lifecycle.
const (
	KeyAccount        = "account"
	KeyChainID        = "chainId"
	KeyConnectionType = "connectionType"
	KeyAuthToken      = "authToken"
)

// Store persists flat string session keys. Writes are best-effort: a
// persistence failure must never break the user's primary action.
type Store interface {
	Get(key string) string
	Set(key, value string)
	Delete(keys ...string)
}

// JSONStore persists session keys to a JSON file with 0600 permissions.
type JSONStore struct {
	path string
}

// DefaultStorePath returns the per-user session file location.
func DefaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "oracular", "session.json")
}

// NewJSONStore creates a file-backed session store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Get(key string) string {
	return s.read()[key]
}

func (s *JSONStore) Set(key, value string) {
	m := s.read()
	m[key] = value
	s.write(m)
}

func (s *JSONStore) Delete(keys ...string) {
	m := s.read()
	for _, k := range keys {
		delete(m, k)
	}
	s.write(m)
}

// read returns the key map; an empty map (never nil) on any error.
func (s *JSONStore) read() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return make(map[string]string)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return make(map[string]string)
	}
	return m
}

func (s *JSONStore) write(m map[string]string) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o600)
}

// MemStore is an in-memory session store (for tests).
type MemStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]string)}
}

func (s *MemStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *MemStore) Delete(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
}

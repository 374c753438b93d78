package storage

import (
	"context"
	"errors"
	"sync"
)

// StubStorage is an in-memory blob store for development and tests.
type StubStorage struct {
	// BaseURL is the base URL returned for stored blobs.
	// Defaults to "https://storage.example.com" if not set.
	BaseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

// NewStubStorage creates a new StubStorage
func NewStubStorage() *StubStorage {
	return &StubStorage{
		BaseURL: "https://storage.example.com",
		objects: make(map[string][]byte),
	}
}

// Put stores a blob in memory and returns its URL
func (s *StubStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return s.BaseURL + "/" + key, nil
}

// Get returns a stored blob
func (s *StubStorage) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len returns the number of stored blobs
func (s *StubStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

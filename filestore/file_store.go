// Package filestore holds the binary object stores for uploaded images.
package filestore

import (
	"fmt"
	"sync"
)

// ImageFileStore stores image bytes under a key and returns the public url
// the image is served from.
type ImageFileStore interface {
	Store(key string, data []byte, contentType string) (url string, err error)
}

// FakeFileStore keeps uploads in memory. Test/local use only.
type FakeFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

var _ ImageFileStore = (*FakeFileStore)(nil)

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{files: make(map[string][]byte)}
}

func (s *FakeFileStore) Store(key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
	return fmt.Sprintf("https://fake.storage.local/%s", key), nil
}

// Stored returns the bytes previously stored under key, nil if absent.
func (s *FakeFileStore) Stored(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[key]
}

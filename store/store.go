// Package store defines the persistent key/value tier mirrored by the cache
// and the session, plus in-process implementations.
//
// A Store is synchronous and string-valued, like a browser's local storage.
// Implementations may enforce a capacity limit and report ErrQuotaExceeded.
package store

import (
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by Set when the value does not fit the store's quota.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// Store is a synchronous string key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// Noop is a Store for environments without persistence.
// Reads always miss and writes are discarded.
type Noop struct{}

func (Noop) Get(string) (string, bool, error) { return "", false, nil }
func (Noop) Set(string, string) error         { return nil }
func (Noop) Delete(string) error              { return nil }

var _ Store = Noop{}

// Memory is an in-process Store with an optional byte quota.
// A zero Memory is ready to use and unlimited.
type Memory struct {
	// Quota caps the total length of keys and values in bytes (0 = unlimited).
	Quota int

	mu   sync.Mutex
	m    map[string]string
	used int
}

// NewMemory returns a Memory store limited to quota bytes (0 = unlimited).
func NewMemory(quota int) *Memory { return &Memory{Quota: quota} }

func (s *Memory) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *Memory) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	used := s.used
	if old, ok := s.m[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if s.Quota > 0 && used > s.Quota {
		return ErrQuotaExceeded
	}
	s.m[key] = value
	s.used = used
	return nil
}

func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.m[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.m, key)
	}
	return nil
}

// Used returns the number of bytes currently stored.
func (s *Memory) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

var _ Store = (*Memory)(nil)

// Package filestore implements store.Store on a local directory.
// Each key is one zstd-compressed file.
package filestore

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IvanBrykalov/dexcache/store"
	"github.com/klauspost/compress/zstd"
)

const ext = ".zst"

// Store keeps values as compressed files under a directory.
type Store struct {
	dir   string
	quota int64 // total compressed bytes, 0 = unlimited

	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New opens (creating if needed) a file store rooted at dir.
// quota limits the total compressed size in bytes; 0 disables the limit.
func New(dir string, quota int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithSingleSegment(true),
	)
	if err != nil {
		return nil, fmt.Errorf("filestore: encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("filestore: decoder: %w", err)
	}
	return &Store{dir: dir, quota: quota, enc: enc, dec: dec}, nil
}

// Get reads and decompresses the value for key.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("filestore: read %q: %w", key, err)
	}
	out, err := s.dec.DecodeAll(raw, nil)
	if err != nil {
		return "", false, fmt.Errorf("filestore: decompress %q: %w", key, err)
	}
	return string(out), true, nil
}

// Set compresses value and atomically replaces the file for key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.enc.EncodeAll([]byte(value), nil)
	if s.quota > 0 {
		used, err := s.usedExcept(key)
		if err != nil {
			return err
		}
		if used+int64(len(data)) > s.quota {
			return store.ErrQuotaExceeded
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore: close %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filestore: rename %q: %w", key, err)
	}
	return nil
}

// Delete removes the file for key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: delete %q: %w", key, err)
	}
	return nil
}

// Close releases the encoder and decoder.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec.Close()
	return s.enc.Close()
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+ext)
}

// usedExcept sums the compressed size of every value except key's.
func (s *Store) usedExcept(key string) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("filestore: list: %w", err)
	}
	skip := filepath.Base(s.path(key))
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || e.Name() == skip {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

var _ store.Store = (*Store)(nil)

package cache

import "fmt"

// StorageError reports a persistent-tier failure: store I/O, quota, or
// (de)serialization of the namespace blob. The cache logs these and keeps
// serving from memory; they are never returned to callers.
type StorageError struct {
	Op  string // "read", "write", "decode", "encode", "delete"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache: storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cache: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

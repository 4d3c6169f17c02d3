package cache

import (
	"encoding/json"

	"go.uber.org/zap"
)

// The persistent tier is one JSON object keyed by cache key, stored under
// Options.Namespace. Every helper here runs with mu held and degrades to a
// logged warning on failure.

// readBlobLocked loads and decodes the namespace blob. ok is false when the
// store failed or the blob is corrupt; a missing blob is an empty map.
func (c *Cache[V]) readBlobLocked() (map[string]persisted, bool) {
	raw, found, err := c.opt.Store.Get(c.opt.Namespace)
	if err != nil {
		c.warn(&StorageError{Op: "read", Key: c.opt.Namespace, Err: err})
		return nil, false
	}
	blob := make(map[string]persisted)
	if !found || raw == "" {
		return blob, true
	}
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		c.warn(&StorageError{Op: "decode", Key: c.opt.Namespace, Err: err})
		return nil, false
	}
	return blob, true
}

func (c *Cache[V]) writeBlobLocked(blob map[string]persisted) {
	raw, err := json.Marshal(blob)
	if err != nil {
		c.warn(&StorageError{Op: "encode", Key: c.opt.Namespace, Err: err})
		return
	}
	if err := c.opt.Store.Set(c.opt.Namespace, string(raw)); err != nil {
		c.warn(&StorageError{Op: "write", Key: c.opt.Namespace, Err: err})
	}
}

// mutateStoreLocked applies fn to the blob and writes it back. A corrupt
// blob is replaced rather than patched so the tier can recover.
func (c *Cache[V]) mutateStoreLocked(fn func(map[string]persisted)) {
	if !c.persistent {
		return
	}
	blob, ok := c.readBlobLocked()
	if !ok {
		blob = make(map[string]persisted)
	}
	fn(blob)
	c.writeBlobLocked(blob)
}

func (c *Cache[V]) deleteFromStoreLocked(key string) {
	if !c.persistent {
		return
	}
	blob, ok := c.readBlobLocked()
	if !ok {
		return
	}
	if _, present := blob[key]; !present {
		return
	}
	delete(blob, key)
	c.writeBlobLocked(blob)
}

// loadLocked returns the persistent-tier entry for key as a memory entry,
// carrying over its stored metadata. The caller decides whether to keep it.
func (c *Cache[V]) loadLocked(key string) (*entry[V], bool) {
	if !c.persistent {
		return nil, false
	}
	blob, ok := c.readBlobLocked()
	if !ok {
		return nil, false
	}
	p, ok := blob[key]
	if !ok {
		return nil, false
	}
	var v V
	if err := json.Unmarshal(p.Value, &v); err != nil {
		c.warn(&StorageError{Op: "decode", Key: key, Err: err})
		return nil, false
	}
	c.log.Debug("promoted entry from persistent tier", zap.String("key", key))
	return &entry[V]{
		key:      key,
		val:      v,
		created:  p.CreatedAt,
		expires:  p.ExpiresAt,
		accesses: p.AccessCount,
		last:     p.LastAccess,
	}, true
}

// storedBytesLocked returns the size of the namespace blob (0 on failure).
func (c *Cache[V]) storedBytesLocked() int {
	if !c.persistent {
		return 0
	}
	raw, _, err := c.opt.Store.Get(c.opt.Namespace)
	if err != nil {
		return 0
	}
	return len(raw)
}

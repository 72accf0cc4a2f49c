package catalog

import (
	"sync"
	"sync/atomic"
)

// FieldCache holds the field lists of recently used collections. Entries are
// dropped synchronously when a collection is created or deleted.
type FieldCache struct {
	mu      sync.RWMutex
	entries map[string][]FieldInfo
	gens    map[string]uint64
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewFieldCache creates an empty cache.
func NewFieldCache() *FieldCache {
	return &FieldCache{
		entries: make(map[string][]FieldInfo),
		gens:    make(map[string]uint64),
	}
}

// Get returns a copy of the cached fields for name.
func (fc *FieldCache) Get(name string) ([]FieldInfo, bool) {
	fc.mu.RLock()
	fields, ok := fc.entries[name]
	fc.mu.RUnlock()

	if !ok {
		fc.misses.Add(1)
		return nil, false
	}
	fc.hits.Add(1)
	out := make([]FieldInfo, len(fields))
	copy(out, fields)
	return out, true
}

// Generation returns the invalidation count of name. A reader captures it
// before querying the catalog and hands it to PutIfGeneration.
func (fc *FieldCache) Generation(name string) uint64 {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.gens[name]
}

// Put stores fields for name unconditionally.
func (fc *FieldCache) Put(name string, fields []FieldInfo) {
	cp := make([]FieldInfo, len(fields))
	copy(cp, fields)

	fc.mu.Lock()
	fc.entries[name] = cp
	fc.mu.Unlock()
}

// PutIfGeneration stores fields for name only if name has not been
// invalidated since gen was read. It reports whether the entry was stored.
func (fc *FieldCache) PutIfGeneration(name string, gen uint64, fields []FieldInfo) bool {
	cp := make([]FieldInfo, len(fields))
	copy(cp, fields)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.gens[name] != gen {
		return false
	}
	fc.entries[name] = cp
	return true
}

// Invalidate removes name from the cache and bumps its generation so that
// reads already in flight cannot store what they saw.
func (fc *FieldCache) Invalidate(name string) {
	fc.mu.Lock()
	delete(fc.entries, name)
	fc.gens[name]++
	fc.mu.Unlock()
}

// Stats returns hit and miss counts.
func (fc *FieldCache) Stats() (hits, misses int64) {
	return fc.hits.Load(), fc.misses.Load()
}

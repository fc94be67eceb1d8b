// Package cache implements the translation cache (spec §3, C2): a map
// from guest (ARM) basic-block address to the host address of its
// already-emitted x86 translation. The original source keyed an
// identical mapping with a uthash hash table (src/codeenv.c,
// InsertItem/GetItem); Go's builtin map is the direct, idiomatic
// replacement — entries are never evicted within a run and insertion
// order never matters, so no ordering or eviction policy is needed.
package cache

// Cache maps guest block-start addresses to host code addresses.
// Not safe for concurrent use; the translator is single-threaded
// (spec §5).
type Cache struct {
	m map[uint32]uintptr
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{m: make(map[uint32]uintptr)}
}

// Lookup returns the host address for guestAddr and whether it was present.
func (c *Cache) Lookup(guestAddr uint32) (uintptr, bool) {
	h, ok := c.m[guestAddr]
	return h, ok
}

// Insert records guestAddr -> hostAddr. Keys are expected to be
// unique; a second insert for the same guestAddr overwrites, though
// the block builder never does this (spec §4.4: "Start" only inserts
// on a cache miss).
func (c *Cache) Insert(guestAddr uint32, hostAddr uintptr) {
	c.m[guestAddr] = hostAddr
}

// Len reports the number of translated blocks, for diagnostics/tests.
func (c *Cache) Len() int { return len(c.m) }

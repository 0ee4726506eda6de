// Package fkcache implements the two-generation bounded cache the write
// pipeline uses to resolve natural-key tuples to ids ahead of an m2o
// column write, per §4.7.
package fkcache

import (
	"fmt"
	"sync"

	"tanker/tankerr"
)

// LRUPageSize is the page size used both for the initial plain-map fill
// and for batched resolution of cache misses.
const LRUPageSize = 500

// LRUSize bounds each generation (recent/least-recent) once the cache is
// promoted past a plain map.
const LRUSize = 5000

// keyString turns a natural-key tuple into a map key. Values are
// formatted with %v, which is stable for the comparable scalar types the
// write pipeline ever resolves against (ids, strings, numbers).
func keyString(key []any) string {
	return fmt.Sprint(key)
}

// Loader fetches the ids for a batch of natural-key tuples not already
// cached, e.g. by running one OR-query against the remote table.
type Loader func(remoteTable string, keys [][]any) (map[string]int64, error)

// Cache is one per-(remote_table, field-signature) two-generation LRU,
// per §4.7. It is safe for concurrent use; in practice a Cache is owned
// by a single Context and so sees no real contention.
type Cache struct {
	mu sync.Mutex

	remoteTable string
	plain       map[string]int64 // used until promoted
	promoted    bool
	recent      map[string]int64
	leastRecent map[string]int64
}

// New creates an empty Cache for one (remote_table, field-signature) key.
func New(remoteTable string) *Cache {
	return &Cache{remoteTable: remoteTable, plain: map[string]int64{}}
}

// Prime seeds the cache with the most recent LRUPageSize rows (ordered by
// id desc), per §4.7's "first access reads the latest LRU_PAGE_SIZE rows".
func (c *Cache) Prime(rows map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range rows {
		c.plain[k] = v
	}
	if len(c.plain) > LRUPageSize {
		c.promote()
	}
}

// get reads id for key without taking it from the loader; caller holds mu.
func (c *Cache) get(key string) (int64, bool) {
	if !c.promoted {
		id, ok := c.plain[key]
		return id, ok
	}
	if id, ok := c.recent[key]; ok {
		return id, true
	}
	if id, ok := c.leastRecent[key]; ok {
		c.recent[key] = id
		c.evictIfFull()
		return id, true
	}
	return 0, false
}

func (c *Cache) put(key string, id int64) {
	if !c.promoted {
		c.plain[key] = id
		if len(c.plain) > LRUPageSize {
			c.promote()
		}
		return
	}
	c.recent[key] = id
	c.evictIfFull()
}

// promote converts the plain map into the two-generation structure.
// Caller holds mu.
func (c *Cache) promote() {
	c.promoted = true
	c.recent = map[string]int64{}
	c.leastRecent = c.plain
	c.plain = nil
}

// evictIfFull implements the O(1) approximate-LRU eviction: once recent
// exceeds LRUSize, least-recent is replaced by recent and recent clears.
// Caller holds mu.
func (c *Cache) evictIfFull() {
	if len(c.recent) > LRUSize {
		c.leastRecent = c.recent
		c.recent = map[string]int64{}
	}
}

// Invalidate drops every cached entry; used on write-pipeline teardown
// when the backing table may have changed (§4.6 step 9).
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plain = map[string]int64{}
	c.promoted = false
	c.recent = nil
	c.leastRecent = nil
}

// isAllNull reports whether every component of a natural-key tuple is
// nil — a nullable FK resolves to a null id without a lookup.
func isAllNull(key []any) bool {
	for _, v := range key {
		if v != nil {
			return false
		}
	}
	return true
}

// Resolve maps each key tuple in keys to an id, positionally aligned
// with the input, streaming resolution in pages of LRUPageSize and
// consulting load only for the keys still missing after each page's
// cache hits (§4.7).
func (c *Cache) Resolve(keys [][]any, load Loader) ([]*int64, error) {
	out := make([]*int64, len(keys))

	for start := 0; start < len(keys); start += LRUPageSize {
		end := start + LRUPageSize
		if end > len(keys) {
			end = len(keys)
		}
		page := keys[start:end]

		var missingKeys [][]any
		missingIdx := map[string]int{}

		c.mu.Lock()
		for i, key := range page {
			if isAllNull(key) {
				out[start+i] = nil
				continue
			}
			ks := keyString(key)
			if id, ok := c.get(ks); ok {
				v := id
				out[start+i] = &v
				continue
			}
			if _, seen := missingIdx[ks]; !seen {
				missingIdx[ks] = len(missingKeys)
				missingKeys = append(missingKeys, key)
			}
		}
		c.mu.Unlock()

		if len(missingKeys) > 0 {
			found, err := load(c.remoteTable, missingKeys)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			for _, key := range missingKeys {
				ks := keyString(key)
				if id, ok := found[ks]; ok {
					c.put(ks, id)
				}
			}
			c.mu.Unlock()

			for i, key := range page {
				if out[start+i] != nil || isAllNull(key) {
					continue
				}
				ks := keyString(key)
				id, ok := found[ks]
				if !ok {
					return nil, tankerr.NewResolutionError(c.remoteTable, key)
				}
				v := id
				out[start+i] = &v
			}
		}
	}

	return out, nil
}

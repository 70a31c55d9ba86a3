// Package algcache hands out shared algorithm handles keyed by algorithm
// name and open flags.
package algcache

import (
	"errors"
	"fmt"
	"sync"

	"temporal-sa/crypto-provider/engine"
)

type cacheKey struct {
	name  string
	flags engine.OpenFlags
}

type entry struct {
	handle engine.AlgorithmHandle
	size   int
}

// Cache is a process-wide cache of opened algorithm providers. Handles
// returned by Get are borrowed: callers must never destroy them.
//
// Entries are never evicted. The engine has no call that closes an
// algorithm, and providers keep using the handles they were given, so each
// (name, flags) pair is opened at most once for the life of the cache.
type Cache struct {
	engine  engine.Engine
	mutex   sync.RWMutex
	entries map[cacheKey]entry
}

// New creates an empty cache for eng.
func New(eng engine.Engine) *Cache {
	return &Cache{
		engine:  eng,
		entries: make(map[cacheKey]entry),
	}
}

// Engine returns the engine the cached handles belong to.
func (c *Cache) Engine() engine.Engine {
	return c.engine
}

// Get returns the shared handle for (name, flags) and the algorithm's fixed
// output size: the digest length for hashes, the block length for ciphers.
func (c *Cache) Get(name string, flags engine.OpenFlags) (engine.AlgorithmHandle, int, error) {
	key := cacheKey{name: name, flags: flags}

	c.mutex.RLock()
	e, ok := c.entries[key]
	c.mutex.RUnlock()
	if ok {
		return e.handle, e.size, nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// another caller may have opened it while we waited
	if e, ok := c.entries[key]; ok {
		return e.handle, e.size, nil
	}

	handle, err := c.engine.OpenAlgorithm(name, flags)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open algorithm %s: %w", name, err)
	}

	size, err := c.engine.GetProperty(handle, engine.PropertyHashLength)
	if errors.Is(err, engine.StatusNotSupported) {
		size, err = c.engine.GetProperty(handle, engine.PropertyBlockLength)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read output size of %s: %w", name, err)
	}

	c.entries[key] = entry{handle: handle, size: size}
	return handle, size, nil
}

// Len returns the number of cached handles.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

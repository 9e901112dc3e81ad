package pinning

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// contentCache remembers content ids for already-pinned sources so re-runs
// after an interruption do not re-upload identical files. Keys are hashed so
// arbitrarily long source paths stay cheap to store.
type contentCache struct {
	mu    sync.Mutex
	store map[string]string
}

func newContentCache() *contentCache {
	return &contentCache{store: make(map[string]string)}
}

func hashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c *contentCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cid, ok := c.store[hashKey(key)]
	return cid, ok
}

func (c *contentCache) set(key, cid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[hashKey(key)] = cid
}

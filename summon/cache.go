package summon

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached responses.
const DefaultCacheSize = 256

type cacheEntry struct {
	resp    *Response
	expires time.Time
	tags    []string
}

// ResponseCache keeps OK GET responses for their revalidate window.
type ResponseCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, cacheEntry]
	now     func() time.Time
}

// NewResponseCache creates a cache holding at most size entries. A size of
// zero or less uses DefaultCacheSize.
func NewResponseCache(size int) (*ResponseCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{entries: entries, now: time.Now}, nil
}

// Get returns a copy of a fresh entry. Expired entries are evicted.
func (c *ResponseCache) Get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.resp.clone(), true
}

// Set stores a copy of resp for ttl.
func (c *ResponseCache) Set(key string, resp *Response, ttl time.Duration, tags []string) {
	if ttl <= 0 || resp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, cacheEntry{
		resp:    resp.clone(),
		expires: c.now().Add(ttl),
		tags:    slices.Clone(tags),
	})
}

// InvalidateTag drops every entry carrying tag and returns how many were dropped.
func (c *ResponseCache) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if ok && slices.Contains(entry.tags, tag) {
			c.entries.Remove(key)
			dropped++
		}
	}
	return dropped
}

func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

func (c *ResponseCache) Len() int {
	return c.entries.Len()
}

// cacheable reports whether a call with these options may use the cache.
func cacheable(o *Options) bool {
	if o.Request.method() != "GET" || o.Request.Cache == CacheNoStore {
		return false
	}
	return o.Request.Next.Revalidate != nil && *o.Request.Next.Revalidate > 0
}

// cacheKey identifies a GET by URL and request headers, so responses fetched
// with different credentials are never shared.
func cacheKey(rawURL string, o *Options) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	keys := make([]string, 0, len(o.Request.Headers))
	for k := range o.Request.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(o.Request.Headers[k]))
	}
	if o.Request.Auth != nil {
		h.Write([]byte{0})
		h.Write([]byte(o.Request.Auth.Username))
		h.Write([]byte{0})
		h.Write([]byte(o.Request.Auth.Password))
	}
	return hex.EncodeToString(h.Sum(nil))
}

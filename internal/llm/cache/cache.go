// Package cache keeps successful generation outputs in a bounded in-process
// LRU so an identical request in the same session is answered without a
// vendor call. Only outputs that passed the caller's validation are stored.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// Cache is a fixed-size, concurrency-safe response cache.
type Cache struct {
	entries *lru.Cache[string, string]
	hits    atomic.Int64
	misses  atomic.Int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// New creates a cache holding at most size entries.
func New(size int) (*Cache, error) {
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// keyMaterial is every request field that influences the vendor output.
type keyMaterial struct {
	Vendor      transport.Vendor `json:"vendor"`
	Model       string           `json:"model"`
	JSONMode    bool             `json:"json_mode"`
	System      string           `json:"system"`
	User        string           `json:"user"`
	Temperature float64          `json:"temperature"`
	TopP        float64          `json:"top_p"`
	MaxTokens   int              `json:"max_tokens"`
}

// Key derives the cache key for a request as a hex sha256 digest.
func Key(req *transport.Request) string {
	b, _ := json.Marshal(keyMaterial{
		Vendor:      req.Vendor,
		Model:       req.Model,
		JSONMode:    req.JSONMode,
		System:      req.SystemPrompt,
		User:        req.UserPrompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached text for key.
func (c *Cache) Get(key string) (string, bool) {
	text, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return text, ok
}

// Put stores text under key, evicting the least recently used entry if full.
func (c *Cache) Put(key, text string) {
	c.entries.Add(key, text)
}

// Remove drops a key, used when a cached output no longer validates.
func (c *Cache) Remove(key string) {
	c.entries.Remove(key)
}

// Stats returns a snapshot of hit/miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.entries.Len()}
}

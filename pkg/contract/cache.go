package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

// Cache memoizes node outputs for a time-to-live. Entries live only as long
// as the cache instance; there is no cross-run persistence, and Cleanup
// drops everything.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	output   any
	storedAt time.Time
}

// CachedOutput tags an output with its cache provenance.
type CachedOutput struct {
	Value     any  `json:"value"`
	FromCache bool `json:"from_cache"`
}

// NewCache creates a cache with the given time-to-live. A non-positive TTL
// means entries never expire within the cache's lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Wrap returns an executor that serves a fresh-enough cached output without
// re-running the operation, and otherwise executes and stores the result
// with a fresh timestamp.
func (c *Cache) Wrap(op protocol.ExecutorFunc) protocol.ExecutorFunc {
	return func(ctx context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (any, error) {
		key := c.Key(node, execCtx)

		if output, ok := c.lookup(key); ok {
			return CachedOutput{Value: output, FromCache: true}, nil
		}

		output, err := op(ctx, node, execCtx)
		if err != nil {
			return nil, err
		}

		c.store(key, output)

		return CachedOutput{Value: output, FromCache: false}, nil
	}
}

// Key computes the cache key for a node: the explicit "cache_key" config
// value when present, otherwise a deterministic hash of the node's resolved
// inputs.
func (c *Cache) Key(node *models.WorkflowNode, execCtx *models.ExecutionContext) string {
	if key, ok := node.Config["cache_key"].(string); ok && key != "" {
		return key
	}

	hash := fnv.New64a()
	fmt.Fprint(hash, node.ID)

	for _, input := range protocol.InputValues(node, execCtx) {
		encoded, err := json.Marshal(input)
		if err != nil {
			fmt.Fprintf(hash, "!%v", input)

			continue
		}

		hash.Write(encoded)
	}

	return fmt.Sprintf("%s:%x", node.Type, hash.Sum64())
}

// Cleanup clears all cached entries.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of live entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)

		return nil, false
	}

	return entry.output, true
}

func (c *Cache) store(key string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{output: output, storedAt: c.now()}
}

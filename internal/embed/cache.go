package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PersistentCache stores vectors across process restarts. Implementations
// must treat unreadable or malformed entries as misses, never as fatal.
type PersistentCache interface {
	Get(key string) ([]float32, bool, error)
	Put(key string, vec []float32) error
	Delete(key string) error
	Close() error
}

// CacheStats counts cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// CachedProvider wraps a Provider with a two-level cache: an in-memory
// LRU in front of an optional persistent store. Keys combine the content
// hash with the provider's model tag, so switching models never serves
// stale vectors.
type CachedProvider struct {
	inner   Provider
	memory  *lru.Cache[string, []float32]
	persist PersistentCache

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedProvider creates a caching wrapper. persist may be nil.
func NewCachedProvider(inner Provider, memSize int, persist PersistentCache) (*CachedProvider, error) {
	if memSize <= 0 {
		memSize = 4096
	}
	memory, err := lru.New[string, []float32](memSize)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{
		inner:   inner,
		memory:  memory,
		persist: persist,
	}, nil
}

// lookup consults both cache levels. A corrupt persistent entry is a
// miss; it is dropped so the rewrite after re-embedding heals the store.
func (c *CachedProvider) lookup(key string) ([]float32, bool) {
	if vec, ok := c.memory.Get(key); ok {
		return vec, true
	}
	if c.persist == nil {
		return nil, false
	}

	vec, ok, err := c.persist.Get(key)
	if err != nil {
		slog.Warn("embedding cache entry unreadable, re-embedding",
			slog.String("key", key),
			slog.String("error", err.Error()))
		_ = c.persist.Delete(key)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	c.memory.Add(key, vec)
	return vec, true
}

// store writes a fresh vector to both cache levels.
func (c *CachedProvider) store(key string, vec []float32) {
	c.memory.Add(key, vec)
	if c.persist != nil {
		if err := c.persist.Put(key, vec); err != nil {
			slog.Warn("embedding cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

// EmbedHashed embeds text, keyed by a precomputed content hash. Callers
// that already know the chunk's content hash avoid rehashing here.
func (c *CachedProvider) EmbedHashed(ctx context.Context, contentHash, text string) ([]float32, error) {
	key := contentHash + "|" + c.inner.ModelTag()

	if vec, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return vec, nil
	}
	c.misses.Add(1)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(key, vec)
	return vec, nil
}

// EmbedHashedBatch resolves one vector per (contentHash, text) pair,
// sending all cache misses to the inner provider in a single batch call.
func (c *CachedProvider) EmbedHashedBatch(ctx context.Context, hashes, texts []string) ([][]float32, error) {
	if len(hashes) != len(texts) {
		return nil, fmt.Errorf("embed batch: %d hashes for %d texts", len(hashes), len(texts))
	}

	vecs := make([][]float32, len(texts))
	var missIdx []int
	for i, hash := range hashes {
		if vec, ok := c.lookup(hash + "|" + c.inner.ModelTag()); ok {
			c.hits.Add(1)
			vecs[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return vecs, nil
	}
	c.misses.Add(uint64(len(missIdx)))

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, i := range missIdx {
		vecs[i] = fresh[j]
		c.store(hashes[i]+"|"+c.inner.ModelTag(), fresh[j])
	}
	return vecs, nil
}

// EmbedQuery embeds ad-hoc query text straight through the inner
// provider. Query vectors never enter either cache level, so the
// persistent store holds chunk content hashes only.
func (c *CachedProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.inner.Embed(ctx, query)
}

// Embed implements Provider, hashing the text to form the cache key.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	return c.EmbedHashed(ctx, hex.EncodeToString(sum[:]), text)
}

// EmbedBatch implements Provider. Each text hits the cache independently.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedProvider) ModelTag() string { return c.inner.ModelTag() }

func (c *CachedProvider) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close closes the persistent layer and the wrapped provider.
func (c *CachedProvider) Close() error {
	var firstErr error
	if c.persist != nil {
		firstErr = c.persist.Close()
	}
	if err := c.inner.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Evict drops a content hash from both cache levels. Used when a retired
// snapshot was the last holder of the hash.
func (c *CachedProvider) Evict(contentHash string) {
	key := contentHash + "|" + c.inner.ModelTag()
	c.memory.Remove(key)
	if c.persist != nil {
		if err := c.persist.Delete(key); err != nil {
			slog.Warn("embedding cache evict failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

// Stats returns hit and miss counts since creation.
func (c *CachedProvider) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

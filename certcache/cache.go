// Package certcache reuses amortized certificate compressions across
// connections. Entries live in a bounded in-memory FIFO and, optionally, in a
// bbolt file that survives restarts.
package certcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"rubin.dev/tlsprovider/crypto/compress"
)

const DefaultMaxEntries = 64

type entryKey struct {
	alg    compress.Algorithm
	digest [32]byte
}

func (k entryKey) String() string {
	return fmt.Sprintf("%d/%s", uint16(k.alg), hex.EncodeToString(k.digest[:]))
}

type Options struct {
	MaxEntries int    // 0 means DefaultMaxEntries
	Store      *Store // optional
	Logger     zerolog.Logger

	// Decompressors check entries loaded from Store. Built-in backends are
	// used for algorithms not listed here; store entries for an algorithm
	// with no decompressor are ignored.
	Decompressors []compress.Decompressor
}

type Stats struct {
	Hits      uint64
	StoreHits uint64
	Misses    uint64
	Entries   int
}

// Cache is safe for concurrent use.
type Cache struct {
	max     int
	store   *Store
	decomps map[compress.Algorithm]compress.Decompressor
	logger  zerolog.Logger
	group   singleflight.Group

	mu      sync.Mutex
	entries map[entryKey][]byte
	order   []entryKey

	hits      atomic.Uint64
	storeHits atomic.Uint64
	misses    atomic.Uint64
}

func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	decomps := make(map[compress.Algorithm]compress.Decompressor, len(opts.Decompressors))
	for _, d := range opts.Decompressors {
		decomps[d.Algorithm()] = d
	}
	return &Cache{
		max:     opts.MaxEntries,
		store:   opts.Store,
		decomps: decomps,
		logger:  opts.Logger.With().Str("component", "certcache").Logger(),
		entries: make(map[entryKey][]byte),
	}
}

// Compress returns the Amortized compression of input under comp, computing
// it at most once per distinct input while cached. The returned slice is the
// caller's to keep. Compressor failures are returned as-is and never cached.
func (c *Cache) Compress(comp compress.Compressor, input []byte) ([]byte, error) {
	if comp == nil {
		return nil, errors.New("certcache: nil compressor")
	}
	key := entryKey{alg: comp.Algorithm(), digest: sha256.Sum256(input)}

	if out, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return slices.Clone(out), nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if out, ok := c.lookup(key); ok {
			c.hits.Add(1)
			return out, nil
		}
		if out, ok := c.load(key, input); ok {
			c.storeHits.Add(1)
			c.insert(key, out)
			return out, nil
		}

		c.misses.Add(1)
		out, err := comp.Compress(slices.Clone(input), compress.Amortized)
		if err != nil {
			return nil, err
		}
		c.insert(key, out)
		if c.store != nil {
			if err := c.store.Put(key.alg, key.digest, out); err != nil {
				c.logger.Warn().Err(err).Str("algorithm", key.alg.String()).Msg("cache store write failed")
			}
		}
		c.logger.Debug().
			Str("algorithm", key.alg.String()).
			Int("input_len", len(input)).
			Int("compressed_len", len(out)).
			Msg("cached amortized compression")
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]byte)), nil
}

// load reads key from the store and returns it only if it decompresses back
// to input. Entries that do not are deleted.
func (c *Cache) load(key entryKey, input []byte) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	out, ok, err := c.store.Get(key.alg, key.digest)
	if err != nil {
		c.logger.Warn().Err(err).Str("algorithm", key.alg.String()).Msg("cache store read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	d := c.decompressor(key.alg)
	if d == nil {
		return nil, false
	}
	check := make([]byte, len(input))
	if err := d.Decompress(out, check); err == nil && bytes.Equal(check, input) {
		return out, true
	}
	c.logger.Warn().Str("algorithm", key.alg.String()).Msg("dropping stale cache store entry")
	if err := c.store.Delete(key.alg, key.digest); err != nil {
		c.logger.Warn().Err(err).Str("algorithm", key.alg.String()).Msg("cache store delete failed")
	}
	return nil, false
}

func (c *Cache) decompressor(alg compress.Algorithm) compress.Decompressor {
	if d, ok := c.decomps[alg]; ok {
		return d
	}
	if b, err := compress.Lookup(alg); err == nil {
		return b.Decompressor
	}
	return nil
}

func (c *Cache) lookup(key entryKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.entries[key]
	return out, ok
}

func (c *Cache) insert(key entryKey, out []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = out
	c.order = append(c.order, key)
}

// Forget drops input's entry for alg from memory and from the store.
func (c *Cache) Forget(alg compress.Algorithm, input []byte) error {
	key := entryKey{alg: alg, digest: sha256.Sum256(input)}
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.order = slices.DeleteFunc(c.order, func(k entryKey) bool { return k == key })
	}
	c.mu.Unlock()
	if c.store != nil {
		return c.store.Delete(alg, key.digest)
	}
	return nil
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		StoreHits: c.storeHits.Load(),
		Misses:    c.misses.Load(),
		Entries:   n,
	}
}

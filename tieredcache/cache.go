/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package tieredcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-cachekit/diskstore"
	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/memstore"
)

// Opts represents options for the tiered cache.
type Opts struct {
	Memory memstore.Opts
	Disk   diskstore.Opts

	// Codec is used by GetValue and SetValue. Nil means MsgpackCodec.
	Codec Codec

	Logger log.FieldLogger
}

// Cache is a two-tier cache. All methods are safe for concurrent use.
type Cache struct {
	memory   *memstore.Store[[]byte]
	disk     *diskstore.Store
	ownsDisk bool
	codec    Codec
	fills    fillGroup
	removals removalEpoch
	logger   log.FieldLogger
}

// New opens (or creates) a cache persisted in the directory at path.
// The disk tier is owned by the cache and closed by Close.
func New(path string, opts Opts) (*Cache, error) {
	if opts.Disk.Logger == nil {
		opts.Disk.Logger = opts.Logger
	}
	disk, err := diskstore.NewWithOpts(path, opts.Disk)
	if err != nil {
		return nil, fmt.Errorf("open disk tier: %w", err)
	}
	c := NewWithStores(memstore.NewWithOpts[[]byte](opts.Memory), disk, opts)
	c.ownsDisk = true
	return c, nil
}

// NewWithStores creates a cache over existing tiers, e.g. a disk store obtained from diskstore.Registry.
// Close stops the memory tier but leaves the disk tier open.
func NewWithStores(memory *memstore.Store[[]byte], disk *diskstore.Store, opts Opts) *Cache {
	if opts.Codec == nil {
		opts.Codec = MsgpackCodec{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Cache{
		memory: memory,
		disk:   disk,
		codec:  opts.Codec,
		logger: opts.Logger.With(log.String("cache_path", disk.Path())),
	}
}

// Close stops background trimming of the memory tier and closes the disk tier if the cache owns it.
func (c *Cache) Close() error {
	c.memory.Close()
	if !c.ownsDisk {
		return nil
	}
	if err := c.disk.Close(); err != nil {
		return fmt.Errorf("close disk tier: %w", err)
	}
	return nil
}

// Memory returns the memory tier.
func (c *Cache) Memory() *memstore.Store[[]byte] {
	return c.memory
}

// Disk returns the disk tier.
func (c *Cache) Disk() *diskstore.Store {
	return c.disk
}

// Get returns the value stored by key. A disk hit is also put into the memory tier.
// Concurrent disk reads of the same key are merged into one.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.memory.Get(key); ok {
		return value, true
	}
	value, ok, _ := c.fills.Do(key, func() ([]byte, bool) {
		epoch := c.removals.current()
		value, ok := c.disk.Get(ctx, key)
		if ok {
			c.fillMemory(epoch, key, value)
		}
		return value, ok
	})
	return value, ok
}

// fillMemory puts a disk hit into the memory tier unless the key is already there
// or a removal started after the disk read began.
func (c *Cache) fillMemory(epoch uint64, key string, value []byte) {
	c.removals.applyIfCurrent(epoch, func() { c.memory.Add(key, value) })
}

// removeFromMemory clears the memory tier part of a removal. It is called before the disk tier
// is updated and once more after that, so a fill that read the disk tier in between is dropped.
func (c *Cache) removeFromMemory(key string) {
	c.removals.advance(func() { c.memory.Remove(key) })
}

func (c *Cache) removeAllFromMemory() {
	c.removals.advance(c.memory.RemoveAll)
}

// Set stores the value in both tiers. The memory write is unconditional;
// the result reports whether the disk write succeeded.
func (c *Cache) Set(ctx context.Context, key string, value []byte) bool {
	if key == "" {
		return false
	}
	c.memory.Set(key, value)
	return c.disk.Set(ctx, key, value)
}

// Remove removes the value from both tiers. The result is the outcome of the disk removal.
func (c *Cache) Remove(ctx context.Context, key string) bool {
	c.removeFromMemory(key)
	defer c.removeFromMemory(key)
	return c.disk.Remove(ctx, key)
}

// RemoveAll clears both tiers.
func (c *Cache) RemoveAll(ctx context.Context) bool {
	c.removeAllFromMemory()
	defer c.removeAllFromMemory()
	return c.disk.RemoveAll(ctx)
}

// RemoveAllWithProgress clears the memory tier at once and the disk tier page by page,
// reporting progress of the latter. See diskstore.Store.RemoveAllWithProgress.
func (c *Cache) RemoveAllWithProgress(ctx context.Context, progress func(removed, total int64), finish func(ok bool)) {
	c.removeAllFromMemory()
	defer c.removeAllFromMemory()
	c.disk.RemoveAllWithProgress(ctx, progress, finish)
}

// ContainsKey reports whether either tier holds the key.
func (c *Cache) ContainsKey(ctx context.Context, key string) bool {
	return c.memory.ContainsKey(key) || c.disk.ContainsKey(ctx, key)
}

// Count returns the number of entries persisted in the disk tier.
func (c *Cache) Count(ctx context.Context) int64 {
	return c.disk.Count(ctx)
}

// TotalSize returns the total payload size of the disk tier in bytes.
func (c *Cache) TotalSize(ctx context.Context) int64 {
	return c.disk.TotalSize(ctx)
}

// TrimToCost trims the disk tier to the given total payload size. The memory tier has no cost ceiling.
func (c *Cache) TrimToCost(ctx context.Context, cost int64) bool {
	return c.disk.TrimToCost(ctx, cost)
}

// TrimToCount trims both tiers to at most count entries each.
func (c *Cache) TrimToCount(ctx context.Context, count int64) bool {
	c.memory.TrimToCount(clampInt(count))
	return c.disk.TrimToCount(ctx, count)
}

// TrimToAge removes entries not accessed within age from both tiers.
func (c *Cache) TrimToAge(ctx context.Context, age time.Duration) bool {
	c.memory.TrimToAge(age)
	return c.disk.TrimToAge(ctx, age)
}

// TrimToFreeDiskSpace trims the disk tier until the file system has at least floor bytes free.
func (c *Cache) TrimToFreeDiskSpace(ctx context.Context, floor int64) bool {
	return c.disk.TrimToFreeDiskSpace(ctx, floor)
}

// Stats is a snapshot of the cache state.
type Stats struct {
	Path            string `json:"path"`
	MemoryCount     int    `json:"memory_count"`
	DiskCount       int64  `json:"disk_count"`
	DiskTotalSize   int64  `json:"disk_total_size"`
	InlineThreshold int    `json:"inline_threshold"`
}

// Stats returns the current state of both tiers.
func (c *Cache) Stats(ctx context.Context) Stats {
	return Stats{
		Path:            c.disk.Path(),
		MemoryCount:     c.memory.Count(),
		DiskCount:       c.disk.Count(ctx),
		DiskTotalSize:   c.disk.TotalSize(ctx),
		InlineThreshold: c.disk.InlineThreshold(),
	}
}

// ErrDecode is wrapped by errors of values that are present in the cache but cannot be decoded.
var ErrDecode = errors.New("decode cached value")

func clampInt(n int64) int {
	const maxInt = int64(^uint(0) >> 1)
	if n > maxInt {
		return int(maxInt)
	}
	return int(n)
}

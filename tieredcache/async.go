/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package tieredcache

import (
	"context"
	"time"
)

// Asynchronous variants run the disk part of an operation on the disk tier's background lane
// and report the result through a callback, which may be nil. Memory hits invoke the callback
// immediately on the calling goroutine.

// GetAsync is an asynchronous version of Get.
func (c *Cache) GetAsync(ctx context.Context, key string, done func(value []byte, ok bool)) {
	if value, ok := c.memory.Get(key); ok {
		if done != nil {
			done(value, true)
		}
		return
	}
	epoch := c.removals.current()
	c.disk.GetAsync(ctx, key, func(value []byte, ok bool) {
		if ok {
			c.fillMemory(epoch, key, value)
		}
		if done != nil {
			done(value, ok)
		}
	})
}

// SetAsync is an asynchronous version of Set. The memory tier is updated before SetAsync returns.
func (c *Cache) SetAsync(ctx context.Context, key string, value []byte, done func(ok bool)) {
	if key == "" {
		if done != nil {
			done(false)
		}
		return
	}
	c.memory.Set(key, value)
	c.disk.SetAsync(ctx, key, value, done)
}

// RemoveAsync is an asynchronous version of Remove. The memory tier is updated before RemoveAsync returns.
func (c *Cache) RemoveAsync(ctx context.Context, key string, done func(ok bool)) {
	c.removeFromMemory(key)
	c.disk.RemoveAsync(ctx, key, func(ok bool) {
		c.removeFromMemory(key)
		if done != nil {
			done(ok)
		}
	})
}

// RemoveAllAsync is an asynchronous version of RemoveAll.
func (c *Cache) RemoveAllAsync(ctx context.Context, done func(ok bool)) {
	c.removeAllFromMemory()
	c.disk.RemoveAllAsync(ctx, func(ok bool) {
		c.removeAllFromMemory()
		if done != nil {
			done(ok)
		}
	})
}

// RemoveAllWithProgressAsync is an asynchronous version of RemoveAllWithProgress.
func (c *Cache) RemoveAllWithProgressAsync(ctx context.Context, progress func(removed, total int64), finish func(ok bool)) {
	c.removeAllFromMemory()
	c.disk.RemoveAllWithProgressAsync(ctx, progress, func(ok bool) {
		c.removeAllFromMemory()
		if finish != nil {
			finish(ok)
		}
	})
}

// ContainsKeyAsync is an asynchronous version of ContainsKey.
func (c *Cache) ContainsKeyAsync(ctx context.Context, key string, done func(ok bool)) {
	if c.memory.ContainsKey(key) {
		if done != nil {
			done(true)
		}
		return
	}
	c.disk.ContainsKeyAsync(ctx, key, done)
}

// CountAsync is an asynchronous version of Count.
func (c *Cache) CountAsync(ctx context.Context, done func(count int64)) {
	c.disk.CountAsync(ctx, done)
}

// TotalSizeAsync is an asynchronous version of TotalSize.
func (c *Cache) TotalSizeAsync(ctx context.Context, done func(size int64)) {
	c.disk.TotalSizeAsync(ctx, done)
}

// TrimToCostAsync is an asynchronous version of TrimToCost.
func (c *Cache) TrimToCostAsync(ctx context.Context, cost int64, done func(ok bool)) {
	c.disk.TrimToCostAsync(ctx, cost, done)
}

// TrimToCountAsync is an asynchronous version of TrimToCount.
func (c *Cache) TrimToCountAsync(ctx context.Context, count int64, done func(ok bool)) {
	c.memory.TrimToCount(clampInt(count))
	c.disk.TrimToCountAsync(ctx, count, done)
}

// TrimToAgeAsync is an asynchronous version of TrimToAge.
func (c *Cache) TrimToAgeAsync(ctx context.Context, age time.Duration, done func(ok bool)) {
	c.memory.TrimToAge(age)
	c.disk.TrimToAgeAsync(ctx, age, done)
}

// TrimToFreeDiskSpaceAsync is an asynchronous version of TrimToFreeDiskSpace.
func (c *Cache) TrimToFreeDiskSpaceAsync(ctx context.Context, floor int64, done func(ok bool)) {
	c.disk.TrimToFreeDiskSpaceAsync(ctx, floor, done)
}

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package diskstore

import (
	"context"
	"time"
)

// Asynchronous variants run the corresponding operation in background and deliver its result to done.
// done may be nil. Submitted operations are not canceled by Close, it waits for them instead.

// GetAsync is an asynchronous variant of Get.
func (s *Store) GetAsync(ctx context.Context, key string, done func(value []byte, ok bool)) {
	s.lane.Go(func() {
		value, ok := s.Get(ctx, key)
		if done != nil {
			done(value, ok)
		}
	})
}

// GetManyAsync is an asynchronous variant of GetMany.
func (s *Store) GetManyAsync(ctx context.Context, keys []string, done func(values map[string][]byte)) {
	s.lane.Go(func() {
		values := s.GetMany(ctx, keys)
		if done != nil {
			done(values)
		}
	})
}

// SetAsync is an asynchronous variant of Set.
func (s *Store) SetAsync(ctx context.Context, key string, value []byte, done func(ok bool)) {
	s.goBool(done, func() bool { return s.Set(ctx, key, value) })
}

// RemoveAsync is an asynchronous variant of Remove.
func (s *Store) RemoveAsync(ctx context.Context, key string, done func(ok bool)) {
	s.goBool(done, func() bool { return s.Remove(ctx, key) })
}

// RemoveManyAsync is an asynchronous variant of RemoveMany.
func (s *Store) RemoveManyAsync(ctx context.Context, keys []string, done func(removed int)) {
	s.lane.Go(func() {
		n := s.RemoveMany(ctx, keys)
		if done != nil {
			done(n)
		}
	})
}

// RemoveAllAsync is an asynchronous variant of RemoveAll.
func (s *Store) RemoveAllAsync(ctx context.Context, done func(ok bool)) {
	s.goBool(done, func() bool { return s.RemoveAll(ctx) })
}

// RemoveAllWithProgressAsync is an asynchronous variant of RemoveAllWithProgress.
func (s *Store) RemoveAllWithProgressAsync(ctx context.Context, progress func(removed, total int64), finish func(ok bool)) {
	s.lane.Go(func() {
		s.RemoveAllWithProgress(ctx, progress, finish)
	})
}

// ContainsKeyAsync is an asynchronous variant of ContainsKey.
func (s *Store) ContainsKeyAsync(ctx context.Context, key string, done func(ok bool)) {
	s.goBool(done, func() bool { return s.ContainsKey(ctx, key) })
}

// CountAsync is an asynchronous variant of Count.
func (s *Store) CountAsync(ctx context.Context, done func(count int64)) {
	s.goInt64(done, func() int64 { return s.Count(ctx) })
}

// TotalSizeAsync is an asynchronous variant of TotalSize.
func (s *Store) TotalSizeAsync(ctx context.Context, done func(size int64)) {
	s.goInt64(done, func() int64 { return s.TotalSize(ctx) })
}

// TrimToCostAsync is an asynchronous variant of TrimToCost.
func (s *Store) TrimToCostAsync(ctx context.Context, cost int64, done func(ok bool)) {
	s.goBool(done, func() bool { return s.TrimToCost(ctx, cost) })
}

// TrimToCountAsync is an asynchronous variant of TrimToCount.
func (s *Store) TrimToCountAsync(ctx context.Context, count int64, done func(ok bool)) {
	s.goBool(done, func() bool { return s.TrimToCount(ctx, count) })
}

// TrimToAgeAsync is an asynchronous variant of TrimToAge.
func (s *Store) TrimToAgeAsync(ctx context.Context, age time.Duration, done func(ok bool)) {
	s.goBool(done, func() bool { return s.TrimToAge(ctx, age) })
}

// TrimToFreeDiskSpaceAsync is an asynchronous variant of TrimToFreeDiskSpace.
func (s *Store) TrimToFreeDiskSpaceAsync(ctx context.Context, floor int64, done func(ok bool)) {
	s.goBool(done, func() bool { return s.TrimToFreeDiskSpace(ctx, floor) })
}

// RemoveLargerThanAsync is an asynchronous variant of RemoveLargerThan.
func (s *Store) RemoveLargerThanAsync(ctx context.Context, size int64, done func(ok bool)) {
	s.goBool(done, func() bool { return s.RemoveLargerThan(ctx, size) })
}

func (s *Store) goBool(done func(bool), op func() bool) {
	s.lane.Go(func() {
		ok := op()
		if done != nil {
			done(ok)
		}
	})
}

func (s *Store) goInt64(done func(int64), op func() int64) {
	s.lane.Go(func() {
		n := op()
		if done != nil {
			done(n)
		}
	})
}

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package diskstore

import (
	"context"
	"time"

	"github.com/acronis/go-cachekit/internal/manifest"
	"github.com/acronis/go-cachekit/log"
)

// RemoveAll removes all entries.
// The manifest is recreated from scratch and all blobs are moved to the trash,
// which is emptied in background, so the call does not depend on the number of entries.
func (s *Store) RemoveAll(ctx context.Context) bool {
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()
	return s.removeAllLocked(ctx)
}

func (s *Store) removeAllLocked(ctx context.Context) bool {
	if err := s.manifest.Close(); err != nil {
		s.logger.Warn("failed to close manifest", log.Error(err))
	}
	ok := true
	if err := removeManifestFiles(s.manifest.Path()); err != nil {
		s.logger.Error("failed to remove manifest files", log.Error(err))
		ok = false
	}
	if err := s.blobs.QuarantineAll(); err != nil {
		s.logger.Error("failed to move blobs to trash", log.Error(err))
		ok = false
	}
	s.blobs.EmptyTrash()
	if err := openManifest(ctx, s.manifest); err != nil {
		s.logger.Error("failed to reopen manifest", log.Error(err))
		_ = s.manifest.Close()
		return false
	}
	return ok
}

// RemoveAllWithProgress removes all entries page by page.
// progress is called after every page with the number of removed entries so far and the initial number of entries.
// finish is called exactly once with the overall result.
// Both callbacks are called while the store is locked and must not call the store.
func (s *Store) RemoveAllWithProgress(ctx context.Context, progress func(removed, total int64), finish func(ok bool)) {
	if finish == nil {
		finish = func(bool) {}
	}
	if !s.lock() {
		finish(false)
		return
	}
	defer s.mu.Unlock()

	total, err := s.manifest.Count(ctx)
	if err != nil {
		s.logger.Warn("failed to count manifest entries", log.Error(err))
		finish(false)
		return
	}
	var removed int64
	for {
		page, pageErr := s.manifest.Page(ctx, removeAllPageSize)
		if pageErr != nil {
			s.logger.Warn("failed to get manifest entries", log.Error(pageErr))
			finish(false)
			return
		}
		if len(page) == 0 {
			break
		}
		n, delErr := s.deletePage(ctx, page)
		if delErr != nil {
			s.logger.Warn("failed to delete manifest entries", log.Error(delErr))
			finish(false)
			return
		}
		if n == 0 {
			finish(false)
			return
		}
		removed += n
		if progress != nil {
			progress(removed, total)
		}
	}
	s.checkpoint(ctx)
	finish(true)
}

// TrimToCost removes the least recently accessed entries until the total size of payloads is at most cost bytes.
// Zero or negative cost removes everything.
func (s *Store) TrimToCost(ctx context.Context, cost int64) bool {
	if cost <= 0 {
		return s.RemoveAll(ctx)
	}
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()
	return s.trimToCostLocked(ctx, cost)
}

func (s *Store) trimToCostLocked(ctx context.Context, cost int64) bool {
	total, err := s.manifest.TotalSize(ctx)
	if err != nil {
		s.logger.Warn("failed to get total size of manifest entries", log.Error(err))
		return false
	}
	return s.trimOldest(ctx, func(e *manifest.Entry) bool {
		if total <= cost {
			return false
		}
		total -= e.Size
		return true
	}, func() bool { return total > cost })
}

// TrimToCount removes the least recently accessed entries until at most count entries remain.
// Zero or negative count removes everything.
func (s *Store) TrimToCount(ctx context.Context, count int64) bool {
	if count <= 0 {
		return s.RemoveAll(ctx)
	}
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	n, err := s.manifest.Count(ctx)
	if err != nil {
		s.logger.Warn("failed to count manifest entries", log.Error(err))
		return false
	}
	return s.trimOldest(ctx, func(*manifest.Entry) bool {
		if n <= count {
			return false
		}
		n--
		return true
	}, func() bool { return n > count })
}

// TrimToAge removes entries which were not accessed during the last age.
// Zero or negative age removes everything.
func (s *Store) TrimToAge(ctx context.Context, age time.Duration) bool {
	if age <= 0 {
		return s.RemoveAll(ctx)
	}
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	threshold := s.now().Add(-age).Unix()
	filenames, err := s.manifest.FilenamesAccessedBefore(ctx, threshold)
	if err != nil {
		s.logger.Warn("failed to get blob filenames of expired entries", log.Error(err))
		return false
	}
	for _, filename := range filenames {
		s.deleteBlob(filename)
	}
	n, err := s.manifest.DeleteAccessedBefore(ctx, threshold)
	if err != nil {
		s.logger.Warn("failed to delete expired manifest entries", log.Error(err))
		return false
	}
	s.finishTrim(ctx, n)
	return true
}

// RemoveLargerThan removes entries with payloads larger than size bytes.
// Zero or negative size removes everything.
func (s *Store) RemoveLargerThan(ctx context.Context, size int64) bool {
	if size <= 0 {
		return s.RemoveAll(ctx)
	}
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	filenames, err := s.manifest.FilenamesSizeAbove(ctx, size)
	if err != nil {
		s.logger.Warn("failed to get blob filenames of large entries", log.Error(err))
		return false
	}
	for _, filename := range filenames {
		s.deleteBlob(filename)
	}
	n, err := s.manifest.DeleteSizeAbove(ctx, size)
	if err != nil {
		s.logger.Warn("failed to delete large manifest entries", log.Error(err))
		return false
	}
	s.finishTrim(ctx, n)
	return true
}

// TrimToFreeDiskSpace trims the store if the free space on its file system is below floor bytes.
// The shortfall is converted into a cost target relative to the current total size,
// so the result is approximate: other writers on the same file system are not accounted for.
// Zero or negative floor disables the check.
func (s *Store) TrimToFreeDiskSpace(ctx context.Context, floor int64) bool {
	if floor <= 0 {
		return true
	}
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	free, err := s.freeSpace(s.path)
	if err != nil {
		s.logger.Warn("failed to get free disk space", log.Error(err))
		return false
	}
	if free == 0 || free >= floor {
		return true
	}
	total, err := s.manifest.TotalSize(ctx)
	if err != nil {
		s.logger.Warn("failed to get total size of manifest entries", log.Error(err))
		return false
	}
	target := total - (floor - free)
	s.logger.Info("free disk space is below the limit, trimming",
		log.Int64("free", free), log.Int64("floor", floor), log.Int64("target_cost", target))
	if target <= 0 {
		return s.removeAllLocked(ctx)
	}
	return s.trimToCostLocked(ctx, target)
}

// trimOldest deletes pages of the least recently accessed entries.
// take is called for every candidate and decides whether it is removed; more reports whether another page is needed.
func (s *Store) trimOldest(ctx context.Context, take func(e *manifest.Entry) bool, more func() bool) bool {
	var trimmed int64
	for more() {
		page, err := s.manifest.OldestByAccessTime(ctx, trimPageSize)
		if err != nil {
			s.logger.Warn("failed to get oldest manifest entries", log.Error(err))
			s.finishTrim(ctx, trimmed)
			return false
		}
		if len(page) == 0 {
			break
		}
		victims := page[:0]
		for i := range page {
			if !take(&page[i]) {
				break
			}
			victims = append(victims, page[i])
		}
		if len(victims) == 0 {
			break
		}
		n, err := s.deletePage(ctx, victims)
		if err != nil {
			s.logger.Warn("failed to delete oldest manifest entries", log.Error(err))
			s.finishTrim(ctx, trimmed)
			return false
		}
		trimmed += n
	}
	s.finishTrim(ctx, trimmed)
	return true
}

// deletePage deletes blobs and then manifest rows of the entries.
func (s *Store) deletePage(ctx context.Context, entries []manifest.Entry) (int64, error) {
	keys := make([]string, 0, len(entries))
	for i := range entries {
		s.deleteBlob(entries[i].Filename)
		keys = append(keys, entries[i].Key)
	}
	return s.manifest.DeleteMany(ctx, keys)
}

func (s *Store) finishTrim(ctx context.Context, trimmed int64) {
	if trimmed == 0 {
		return
	}
	s.metrics.AddTrimmed(int(trimmed))
	s.logger.Debug("disk cache trimmed", log.Int64("entries", trimmed))
	s.checkpoint(ctx)
}

// autoTrim enforces the configured limits. Unbounded limits are skipped.
func (s *Store) autoTrim(ctx context.Context) {
	limits := s.Limits()
	if limits.Cost != NoCostLimit {
		s.TrimToCost(ctx, limits.Cost)
	}
	if limits.Count != NoCountLimit {
		s.TrimToCount(ctx, limits.Count)
	}
	if limits.Age != NoAgeLimit {
		s.TrimToAge(ctx, limits.Age)
	}
	if limits.FreeDiskSpace != NoFreeDiskSpaceLimit {
		s.TrimToFreeDiskSpace(ctx, limits.FreeDiskSpace)
	}
}

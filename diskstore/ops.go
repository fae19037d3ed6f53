/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package diskstore

import (
	"context"
	"errors"
	"time"

	"github.com/acronis/go-cachekit/internal/blobstore"
	"github.com/acronis/go-cachekit/internal/manifest"
	"github.com/acronis/go-cachekit/log"
)

// EntryInfo describes a stored entry without its payload.
type EntryInfo struct {
	Key        string
	Size       int64
	Inline     bool
	ModifiedAt time.Time
	AccessedAt time.Time
}

// Get returns the payload stored by the key and refreshes its access time.
// A missing or unreadable blob is treated as a miss and its manifest row is removed.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.lock() {
		return nil, false
	}
	defer s.mu.Unlock()

	entry, err := s.manifest.Get(ctx, key, true)
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			s.logger.Warn("failed to get manifest entry", log.Key(key), log.Error(err))
		}
		s.metrics.IncMisses()
		return nil, false
	}
	data, ok := s.loadPayload(ctx, &entry)
	if !ok {
		s.metrics.IncMisses()
		return nil, false
	}
	if err = s.manifest.Touch(ctx, s.unixNow(), key); err != nil {
		s.logger.Warn("failed to update access time", log.Key(key), log.Error(err))
	}
	s.metrics.IncHits()
	return data, true
}

// GetMany returns payloads of the found keys. Access times of all found keys are refreshed.
func (s *Store) GetMany(ctx context.Context, keys []string) map[string][]byte {
	if len(keys) == 0 || !s.lock() {
		return nil
	}
	defer s.mu.Unlock()

	entries, err := s.manifest.GetMany(ctx, keys)
	if err != nil {
		s.logger.Warn("failed to get manifest entries", log.Int("keys", len(keys)), log.Error(err))
		return nil
	}
	result := make(map[string][]byte, len(entries))
	found := make([]string, 0, len(entries))
	for i := range entries {
		if data, ok := s.loadPayload(ctx, &entries[i]); ok {
			result[entries[i].Key] = data
			found = append(found, entries[i].Key)
		}
	}
	if err = s.manifest.Touch(ctx, s.unixNow(), found...); err != nil {
		s.logger.Warn("failed to update access time", log.Int("keys", len(found)), log.Error(err))
	}
	for range found {
		s.metrics.IncHits()
	}
	for i := len(found); i < len(keys); i++ {
		s.metrics.IncMisses()
	}
	return result
}

// loadPayload returns the payload of the entry, reading the blob if needed.
// Entries with a missing or unreadable blob are deleted.
func (s *Store) loadPayload(ctx context.Context, entry *manifest.Entry) ([]byte, bool) {
	if entry.IsInline() {
		if len(entry.InlineData) != 0 {
			return entry.InlineData, true
		}
		s.logger.Warn("inline entry has no payload, removing it", log.Key(entry.Key))
	} else {
		data, err := s.blobs.Read(entry.Filename)
		if err == nil {
			return data, true
		}
		s.logger.Warn("blob is missing or unreadable, removing entry",
			log.Key(entry.Key), log.String("filename", entry.Filename), log.Error(err))
		if !errors.Is(err, blobstore.ErrNotFound) {
			s.deleteBlob(entry.Filename)
		}
	}
	if _, err := s.manifest.Delete(ctx, entry.Key); err != nil {
		s.logger.Warn("failed to delete corrupted manifest entry", log.Key(entry.Key), log.Error(err))
	}
	s.metrics.IncCorrupted()
	return nil, false
}

// Set stores the payload by the key. It returns false if the payload was not persisted.
// Empty keys and empty payloads are rejected.
//
// Payloads larger than the inline threshold are written to a blob file first, and the manifest row
// referencing it is written only after that. If the manifest write fails, the blob is deleted.
func (s *Store) Set(ctx context.Context, key string, value []byte) bool {
	if key == "" || len(value) == 0 {
		return false
	}
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	prevFilename, err := s.manifest.Filename(ctx, key)
	if err != nil && !errors.Is(err, manifest.ErrNotFound) {
		s.logger.Warn("failed to get manifest entry", log.Key(key), log.Error(err))
	}

	now := s.unixNow()
	entry := manifest.Entry{Key: key, Size: int64(len(value)), ModifiedAt: now, AccessedAt: now}
	if len(value) <= s.inlineThreshold {
		entry.InlineData = value
		if err = s.manifest.Put(ctx, entry); err != nil {
			s.logger.Warn("failed to write manifest entry", log.Key(key), log.Error(err))
			s.metrics.IncWriteFailures()
			return false
		}
		// The payload is inline now, the blob of the previous value is not referenced anymore.
		s.deleteBlob(prevFilename)
		return true
	}

	entry.Filename = blobstore.FilenameForKey(key)
	if err = s.blobs.Write(entry.Filename, value); err != nil {
		s.logger.Warn("failed to write blob", log.Key(key), log.Error(err))
		s.metrics.IncWriteFailures()
		return false
	}
	if err = s.manifest.Put(ctx, entry); err != nil {
		s.logger.Warn("failed to write manifest entry, rolling back blob", log.Key(key), log.Error(err))
		s.deleteBlob(entry.Filename)
		if prevFilename != "" {
			// The previous row references the blob which has just been rolled back.
			if _, delErr := s.manifest.Delete(ctx, key); delErr != nil {
				s.logger.Warn("failed to delete stale manifest entry", log.Key(key), log.Error(delErr))
			}
		}
		s.metrics.IncWriteFailures()
		return false
	}
	return true
}

// Remove removes the entry by the key. It returns false if there was nothing to remove.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	filename, err := s.manifest.Filename(ctx, key)
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			s.logger.Warn("failed to get manifest entry", log.Key(key), log.Error(err))
		}
		return false
	}
	s.deleteBlob(filename)
	deleted, err := s.manifest.Delete(ctx, key)
	if err != nil {
		s.logger.Warn("failed to delete manifest entry", log.Key(key), log.Error(err))
		return false
	}
	return deleted
}

// RemoveMany removes entries by the keys and returns the number of removed entries.
func (s *Store) RemoveMany(ctx context.Context, keys []string) int {
	if len(keys) == 0 || !s.lock() {
		return 0
	}
	defer s.mu.Unlock()

	filenames, err := s.manifest.Filenames(ctx, keys)
	if err != nil {
		s.logger.Warn("failed to get blob filenames", log.Int("keys", len(keys)), log.Error(err))
		return 0
	}
	for _, filename := range filenames {
		s.deleteBlob(filename)
	}
	n, err := s.manifest.DeleteMany(ctx, keys)
	if err != nil {
		s.logger.Warn("failed to delete manifest entries", log.Int("keys", len(keys)), log.Error(err))
		return 0
	}
	s.checkpoint(ctx)
	return int(n)
}

// ContainsKey reports whether the key is stored. It does not read the payload nor refresh the access time.
func (s *Store) ContainsKey(ctx context.Context, key string) bool {
	if !s.lock() {
		return false
	}
	defer s.mu.Unlock()

	exists, err := s.manifest.Exists(ctx, key)
	if err != nil {
		s.logger.Warn("failed to check manifest entry", log.Key(key), log.Error(err))
		return false
	}
	return exists
}

// Info returns metadata of the entry by the key.
func (s *Store) Info(ctx context.Context, key string) (EntryInfo, bool) {
	if !s.lock() {
		return EntryInfo{}, false
	}
	defer s.mu.Unlock()

	entry, err := s.manifest.Get(ctx, key, false)
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			s.logger.Warn("failed to get manifest entry", log.Key(key), log.Error(err))
		}
		return EntryInfo{}, false
	}
	return EntryInfo{
		Key:        entry.Key,
		Size:       entry.Size,
		Inline:     entry.IsInline(),
		ModifiedAt: time.Unix(entry.ModifiedAt, 0),
		AccessedAt: time.Unix(entry.AccessedAt, 0),
	}, true
}

// Count returns the number of stored entries. Zero is returned if the manifest is unavailable.
func (s *Store) Count(ctx context.Context) int64 {
	if !s.lock() {
		return 0
	}
	defer s.mu.Unlock()

	n, err := s.manifest.Count(ctx)
	if err != nil {
		s.logger.Warn("failed to count manifest entries", log.Error(err))
		return 0
	}
	return n
}

// TotalSize returns the total size of all stored payloads in bytes. Zero is returned if the manifest is unavailable.
func (s *Store) TotalSize(ctx context.Context) int64 {
	if !s.lock() {
		return 0
	}
	defer s.mu.Unlock()

	n, err := s.manifest.TotalSize(ctx)
	if err != nil {
		s.logger.Warn("failed to get total size of manifest entries", log.Error(err))
		return 0
	}
	return n
}

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package blobstore keeps payloads of large cache entries as plain files
// and provides a trash area for deferred deletion of whole blob directories.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/xid"
	"golang.org/x/time/rate"

	"github.com/acronis/go-cachekit/log"
)

// Names of the directories under the root path.
const (
	DataDirName  = "DATA"
	TrashDirName = "TRASH"
)

// DefaultTrashDeleteRate is a default number of trash entries removed per second.
const DefaultTrashDeleteRate = rate.Limit(200)

// ErrNotFound is returned when the requested blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Opts represents options for the blob store.
type Opts struct {
	// Compress enables zstd compression of blob files.
	// Blobs written with a different setting are reported as unreadable.
	Compress bool

	// TrashDeleteRate limits how many trash entries are removed per second,
	// so emptying the trash does not compete with foreground I/O. Zero means DefaultTrashDeleteRate.
	TrashDeleteRate rate.Limit

	Logger log.FieldLogger
}

// Store is a file system area for blob files plus a trash area.
// It does not synchronize access to the same blob; callers serialize it.
type Store struct {
	dataPath  string
	trashPath string
	logger    log.FieldLogger

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	trashLimiter *rate.Limiter
	trashCtx     context.Context
	trashCancel  context.CancelFunc
	trashWG      sync.WaitGroup
}

// New creates the data and trash directories under rootPath (if needed) and returns a new Store.
func New(rootPath string, opts Opts) (*Store, error) {
	if rootPath == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.TrashDeleteRate == 0 {
		opts.TrashDeleteRate = DefaultTrashDeleteRate
	}

	s := &Store{
		dataPath:     filepath.Join(rootPath, DataDirName),
		trashPath:    filepath.Join(rootPath, TrashDirName),
		logger:       opts.Logger,
		trashLimiter: rate.NewLimiter(opts.TrashDeleteRate, 1),
	}
	for _, dir := range []string{rootPath, s.dataPath, s.trashPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	if opts.Compress {
		var err error
		if s.encoder, err = zstd.NewWriter(nil); err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		if s.decoder, err = zstd.NewReader(nil); err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
	}

	s.trashCtx, s.trashCancel = context.WithCancel(context.Background())
	return s, nil
}

// FilenameForKey returns a stable, collision-resistant blob file name for the cache key.
func FilenameForKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// DataPath returns the directory where blob files live.
func (s *Store) DataPath() string {
	return s.dataPath
}

// TrashPath returns the directory where quarantined directories live.
func (s *Store) TrashPath() string {
	return s.trashPath
}

// Write stores data in the blob file with the given name.
// The file is written to a temporary location first and then renamed,
// so a reader never observes a partially written blob.
func (s *Store) Write(name string, data []byte) error {
	if s.encoder != nil {
		data = s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	tmp, err := os.CreateTemp(s.dataPath, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for blob %q: %w", name, err)
	}
	tmpPath := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write blob %q: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close blob %q: %w", name, err)
	}
	if err = os.Rename(tmpPath, s.blobPath(name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename blob %q: %w", name, err)
	}
	return nil
}

// Read returns the content of the blob file with the given name.
// ErrNotFound is returned if there is no such blob.
func (s *Store) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read blob %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %q: %w", name, err)
	}
	if s.decoder != nil {
		if data, err = s.decoder.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress blob %q: %w", name, err)
		}
	}
	return data, nil
}

// Delete removes the blob file with the given name.
// ErrNotFound is returned if there is no such blob.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.blobPath(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete blob %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete blob %q: %w", name, err)
	}
	return nil
}

// QuarantineAll moves the whole data directory into the trash area and recreates an empty one.
// Old blobs are removed physically later by EmptyTrash.
func (s *Store) QuarantineAll() error {
	dst := filepath.Join(s.trashPath, xid.New().String())
	if err := os.Rename(s.dataPath, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move data directory to trash: %w", err)
	}
	if err := os.MkdirAll(s.dataPath, 0o755); err != nil {
		return fmt.Errorf("recreate data directory: %w", err)
	}
	return nil
}

// Close stops emptying the trash (if it is in progress) and waits for it.
func (s *Store) Close() {
	s.trashCancel()
	s.trashWG.Wait()
	if s.decoder != nil {
		s.decoder.Close()
	}
}

func (s *Store) blobPath(name string) string {
	return filepath.Join(s.dataPath, name)
}

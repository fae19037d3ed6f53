/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package diskstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/acronis/go-cachekit/internal/autotrim"
	"github.com/acronis/go-cachekit/internal/blobstore"
	"github.com/acronis/go-cachekit/internal/dispatch"
	"github.com/acronis/go-cachekit/internal/manifest"
	"github.com/acronis/go-cachekit/log"
)

// DefaultInlineThreshold is the largest payload (in bytes) stored directly in the manifest.
const DefaultInlineThreshold = 20 * 1024

// DefaultAutoTrimInterval is used when Opts.AutoTrimInterval is zero.
const DefaultAutoTrimInterval = 60 * time.Second

// Unbounded limits. A store configured with them never trims by the corresponding criterion.
const (
	NoCostLimit          = int64(math.MaxInt64)
	NoCountLimit         = int64(math.MaxInt64)
	NoAgeLimit           = time.Duration(math.MaxInt64)
	NoFreeDiskSpaceLimit = int64(0)
)

const (
	trimPageSize      = 16
	removeAllPageSize = 32
)

// ErrUnavailable is returned by constructors when the store cannot be opened even after recovery.
var ErrUnavailable = errors.New("disk cache is unavailable")

// Limits represents ceilings enforced by trimming. Zero or negative value means no limit.
type Limits struct {
	// Cost is a maximum total size of all payloads in bytes.
	Cost int64

	// Count is a maximum number of entries.
	Count int64

	// Age is a maximum time since the last access of an entry.
	Age time.Duration

	// FreeDiskSpace is a minimum free space (in bytes) on the file system of the store.
	FreeDiskSpace int64
}

func (l Limits) normalized() Limits {
	if l.Cost <= 0 {
		l.Cost = NoCostLimit
	}
	if l.Count <= 0 {
		l.Count = NoCountLimit
	}
	if l.Age <= 0 {
		l.Age = NoAgeLimit
	}
	if l.FreeDiskSpace < 0 {
		l.FreeDiskSpace = NoFreeDiskSpaceLimit
	}
	return l
}

// Opts represents options for the disk store.
type Opts struct {
	// InlineThreshold is the largest payload (in bytes) stored directly in the manifest row.
	// Larger payloads are written to blob files. Zero means DefaultInlineThreshold.
	InlineThreshold int

	// Limits are enforced by background trimming.
	Limits Limits

	// AutoTrimInterval is an interval of the background trimming against Limits.
	// Negative value disables background trimming, zero means DefaultAutoTrimInterval.
	AutoTrimInterval time.Duration

	// CompressBlobs enables zstd compression of blob files.
	CompressBlobs bool

	// MaxConcurrency bounds the number of asynchronous operations running at the same time.
	// Zero means the default of the background lane.
	MaxConcurrency int

	// MetricsCollector is used to collect statistics about store usage. Nil disables metrics.
	MetricsCollector MetricsCollector

	Logger log.FieldLogger
}

// Store is a persistent key/value store. Small payloads live inline in a SQLite manifest,
// larger ones are written to blob files referenced by the manifest.
//
// A single mutex serializes all operations, so at most one of them performs I/O at a time.
type Store struct {
	mu     sync.Mutex
	closed bool

	path            string
	inlineThreshold int
	limits          Limits

	blobs    *blobstore.Store
	manifest *manifest.Manifest

	lane    *dispatch.Lane
	trimmer *autotrim.Trimmer
	metrics MetricsCollector
	logger  log.FieldLogger

	now       func() time.Time
	freeSpace func(path string) (int64, error)
}

// New creates a new Store in the directory at path with default options and background trimming disabled.
func New(path string, logger log.FieldLogger) (*Store, error) {
	return NewWithOpts(path, Opts{AutoTrimInterval: -1, Logger: logger})
}

// NewWithOpts creates a new Store in the directory at path.
//
// If the manifest cannot be opened or initialized, the store resets itself:
// the manifest files are deleted, all blobs are moved to the trash and opening is retried once.
// ErrUnavailable is returned if that fails too.
func NewWithOpts(path string, opts Opts) (*Store, error) {
	if opts.InlineThreshold <= 0 {
		opts.InlineThreshold = DefaultInlineThreshold
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	logger := opts.Logger.With(log.Tier("disk"), log.Path(path))

	blobs, err := blobstore.New(path, blobstore.Opts{Compress: opts.CompressBlobs, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	ctx := context.Background()
	mf := manifest.New(filepath.Join(path, manifest.FileName), manifest.Opts{Logger: logger})
	if err = openManifest(ctx, mf); err != nil {
		logger.Warn("failed to open manifest, resetting disk cache", log.Error(err))
		_ = mf.Close()
		if rmErr := removeManifestFiles(mf.Path()); rmErr != nil {
			logger.Error("failed to remove manifest files", log.Error(rmErr))
		}
		if qErr := blobs.QuarantineAll(); qErr != nil {
			logger.Error("failed to move blobs to trash", log.Error(qErr))
		}
		if err = openManifest(ctx, mf); err != nil {
			_ = mf.Close()
			blobs.Close()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	blobs.EmptyTrash()

	s := &Store{
		path:            path,
		inlineThreshold: opts.InlineThreshold,
		limits:          opts.Limits.normalized(),
		blobs:           blobs,
		manifest:        mf,
		lane:            dispatch.NewLane(opts.MaxConcurrency, logger),
		metrics:         opts.MetricsCollector,
		logger:          logger,
		now:             time.Now,
		freeSpace:       freeDiskSpace,
	}
	if opts.AutoTrimInterval >= 0 {
		interval := opts.AutoTrimInterval
		if interval == 0 {
			interval = DefaultAutoTrimInterval
		}
		s.trimmer = autotrim.Start(s, interval, func(ctx context.Context, st *Store) {
			st.autoTrim(ctx)
		}, logger)
	}
	return s, nil
}

// Close stops background trimming, waits for submitted asynchronous operations
// and releases the manifest connection. All operations fail after Close.
func (s *Store) Close() error {
	if s.trimmer != nil {
		s.trimmer.Stop()
	}
	s.lane.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.manifest.Close()
	s.blobs.Close()
	return err
}

// Path returns the root directory of the store.
func (s *Store) Path() string {
	return s.path
}

// InlineThreshold returns the largest payload size stored inline.
func (s *Store) InlineThreshold() int {
	return s.inlineThreshold
}

// Limits returns the current limits. Unbounded limits are reported as the No*Limit constants.
func (s *Store) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

// SetLimits changes the limits enforced by background trimming.
func (s *Store) SetLimits(limits Limits) {
	s.mu.Lock()
	s.limits = limits.normalized()
	s.mu.Unlock()
}

// lock acquires the store mutex. It returns false (and does not hold the mutex) if the store is closed.
func (s *Store) lock() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	return true
}

func (s *Store) unixNow() int64 {
	return s.now().Unix()
}

// deleteBlob removes the blob file. A failure does not block the caller and is only logged.
func (s *Store) deleteBlob(filename string) {
	if filename == "" {
		return
	}
	if err := s.blobs.Delete(filename); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn("failed to delete blob", log.String("filename", filename), log.Error(err))
	}
}

func (s *Store) checkpoint(ctx context.Context) {
	if err := s.manifest.Checkpoint(ctx); err != nil {
		s.logger.Warn("failed to checkpoint manifest", log.Error(err))
	}
}

func openManifest(ctx context.Context, m *manifest.Manifest) error {
	if err := m.Open(ctx); err != nil {
		return err
	}
	return m.EnsureSchema(ctx)
}

func removeManifestFiles(dbPath string) error {
	var errs []error
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package manifest implements the relational index of the disk cache tier:
// one SQLite row per key describing where the payload lives, its size and access times.
//
// Manifest is not safe for concurrent use. The owning store serializes all calls.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/acronis/go-cachekit/log"
	"github.com/acronis/go-cachekit/retry"
)

// FileName is the name of the database file inside the cache root directory.
const FileName = "manifest.sqlite"

// Default values of the connection health check.
const (
	DefaultMaxOpenRetries    = 8
	DefaultOpenRetryCooldown = 2 * time.Second
)

const (
	closeRetryInterval = 10 * time.Millisecond
	closeMaxRetries    = 3
)

var (
	// ErrNotFound is returned when there is no row for the requested key.
	ErrNotFound = errors.New("manifest entry not found")

	// ErrUnavailable is returned when the connection is closed and cannot be reopened right now.
	ErrUnavailable = errors.New("manifest is unavailable")
)

// Entry is a manifest row.
type Entry struct {
	Key string

	// Filename is the name of the blob file with the payload. Empty if the payload is stored inline.
	Filename string

	// Size is the byte length of the payload as last written.
	Size int64

	// InlineData is the payload stored in the row itself. Nil for blob-backed entries
	// and for entries loaded without inline data.
	InlineData []byte

	// ModifiedAt and AccessedAt are unix timestamps in seconds.
	ModifiedAt int64
	AccessedAt int64
}

// IsInline reports whether the payload is stored in the row.
func (e *Entry) IsInline() bool {
	return e.Filename == ""
}

// Opts represents options for the manifest.
type Opts struct {
	// MaxOpenRetries bounds how many failed reopen attempts are made since the last successful open.
	MaxOpenRetries int

	// OpenRetryCooldown is a minimal interval between a failed open and the next reopen attempt.
	OpenRetryCooldown time.Duration

	Logger log.FieldLogger
}

// Manifest manages the SQLite connection, the schema and the cache of prepared statements.
type Manifest struct {
	path   string
	db     *sql.DB
	stmts  map[string]*sql.Stmt
	logger log.FieldLogger

	maxOpenRetries    int
	openRetryCooldown time.Duration
	openErrors        int
	lastOpenErrorAt   time.Time

	now func() time.Time
}

// New creates a new Manifest for the database file at path. The connection is not opened yet.
func New(path string, opts Opts) *Manifest {
	if opts.MaxOpenRetries <= 0 {
		opts.MaxOpenRetries = DefaultMaxOpenRetries
	}
	if opts.OpenRetryCooldown <= 0 {
		opts.OpenRetryCooldown = DefaultOpenRetryCooldown
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Manifest{
		path:              path,
		stmts:             make(map[string]*sql.Stmt),
		logger:            opts.Logger,
		maxOpenRetries:    opts.MaxOpenRetries,
		openRetryCooldown: opts.OpenRetryCooldown,
		now:               time.Now,
	}
}

// Path returns the path of the database file.
func (m *Manifest) Path() string {
	return m.path
}

// IsOpen reports whether the connection is established.
func (m *Manifest) IsOpen() bool {
	return m.db != nil
}

// Open establishes the connection. It is a no-op if the connection is already open.
func (m *Manifest) Open(ctx context.Context) error {
	if m.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", m.path)
	if err == nil {
		// A single connection keeps per-connection pragmas and cached statements consistent.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		if err = db.PingContext(ctx); err != nil {
			_ = db.Close()
		}
	}
	if err != nil {
		m.openErrors++
		m.lastOpenErrorAt = m.now()
		return fmt.Errorf("open manifest %q: %w", m.path, err)
	}
	m.db = db
	m.openErrors = 0
	m.lastOpenErrorAt = time.Time{}
	return nil
}

// EnsureSchema creates the manifest table and its index if they do not exist
// and switches the database to write-ahead logging.
func (m *Manifest) EnsureSchema(ctx context.Context) error {
	if m.db == nil {
		return ErrUnavailable
	}
	for _, query := range schemaQueries {
		if _, err := m.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("initialize manifest schema: %w", err)
		}
	}
	return nil
}

// Close finalizes all cached statements and closes the connection.
// If SQLite reports that the database is busy or locked, finalization and closing are retried.
func (m *Manifest) Close() error {
	if m.db == nil {
		return nil
	}
	policy := retry.ConstantPolicy{Interval: closeRetryInterval, MaxRetries: closeMaxRetries}
	notify := func(err error, attempt int, _ time.Duration) {
		m.logger.Warn("manifest is busy on close, retrying", log.Error(err), log.Int("attempt", attempt))
	}
	err := retry.Do(context.Background(), policy, isBusy, notify, func(context.Context) error {
		if finErr := m.finalizeStatements(); finErr != nil {
			if isBusy(finErr) {
				return finErr
			}
			m.logger.Warn("failed to finalize manifest statements", log.Error(finErr))
		}
		return m.db.Close()
	})
	m.db = nil
	if err != nil {
		return fmt.Errorf("close manifest %q: %w", m.path, err)
	}
	return nil
}

// Checkpoint transfers the write-ahead log content into the database file,
// so the space of deleted rows is reclaimed promptly.
func (m *Manifest) Checkpoint(ctx context.Context) error {
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	var busy, logFrames, checkpointed int64
	if err := m.db.QueryRowContext(ctx, queryCheckpoint).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("checkpoint manifest: %w", err)
	}
	return nil
}

// ensureOpen reopens a lost connection, but not earlier than the cool-down interval after
// the last failure and not more than the configured number of times in a row.
func (m *Manifest) ensureOpen(ctx context.Context) error {
	if m.db != nil {
		return nil
	}
	if m.openErrors >= m.maxOpenRetries || m.now().Sub(m.lastOpenErrorAt) <= m.openRetryCooldown {
		return ErrUnavailable
	}
	if err := m.Open(ctx); err != nil {
		m.logger.Warn("failed to reopen manifest", log.Path(m.path), log.Error(err))
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := m.EnsureSchema(ctx); err != nil {
		_ = m.Close()
		m.openErrors++
		m.lastOpenErrorAt = m.now()
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// prepare returns a cached prepared statement for the query, preparing it on the first use.
func (m *Manifest) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if err := m.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if stmt, ok := m.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := m.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare manifest statement: %w", err)
	}
	m.stmts[query] = stmt
	return stmt, nil
}

func (m *Manifest) finalizeStatements() error {
	var errs []error
	for query, stmt := range m.stmts {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(m.stmts, query)
	}
	return errors.Join(errs...)
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

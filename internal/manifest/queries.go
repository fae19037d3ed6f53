/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var schemaQueries = []string{
	`PRAGMA journal_mode=wal`,
	`PRAGMA synchronous=normal`,
	`CREATE TABLE IF NOT EXISTS manifest (
		key text,
		filename text,
		size integer,
		inline_data blob,
		modification_time integer,
		last_access_time integer,
		PRIMARY KEY(key)
	)`,
	`CREATE INDEX IF NOT EXISTS last_access_time_idx ON manifest(last_access_time)`,
}

const (
	queryCheckpoint = `PRAGMA wal_checkpoint(PASSIVE)`

	queryPut = `INSERT OR REPLACE INTO manifest
		(key, filename, size, inline_data, modification_time, last_access_time) VALUES (?1, ?2, ?3, ?4, ?5, ?6)`
	queryGetWithInline = `SELECT key, filename, size, inline_data, modification_time, last_access_time
		FROM manifest WHERE key = ?1`
	queryGet = `SELECT key, filename, size, modification_time, last_access_time
		FROM manifest WHERE key = ?1`
	queryFilename         = `SELECT filename FROM manifest WHERE key = ?1`
	queryExists           = `SELECT count(key) FROM manifest WHERE key = ?1`
	queryTouch            = `UPDATE manifest SET last_access_time = ?1 WHERE key = ?2`
	queryDelete           = `DELETE FROM manifest WHERE key = ?1`
	queryCount            = `SELECT count(*) FROM manifest`
	queryTotalSize        = `SELECT coalesce(sum(size), 0) FROM manifest`
	queryFilenamesAbove   = `SELECT filename FROM manifest WHERE size > ?1 AND filename IS NOT NULL`
	queryDeleteAbove      = `DELETE FROM manifest WHERE size > ?1`
	queryFilenamesBefore  = `SELECT filename FROM manifest WHERE last_access_time < ?1 AND filename IS NOT NULL`
	queryDeleteBefore     = `DELETE FROM manifest WHERE last_access_time < ?1`
	queryOldestByAccessed = `SELECT key, filename, size FROM manifest ORDER BY last_access_time ASC LIMIT ?1`
	queryPage             = `SELECT key, filename, size FROM manifest LIMIT ?1`
)

// Put inserts or replaces the row of e.Key.
func (m *Manifest) Put(ctx context.Context, e Entry) error {
	stmt, err := m.prepare(ctx, queryPut)
	if err != nil {
		return err
	}
	var filename any
	var inline any
	if e.Filename != "" {
		filename = e.Filename
	} else {
		inline = e.InlineData
	}
	if _, err = stmt.ExecContext(ctx, e.Key, filename, e.Size, inline, e.ModifiedAt, e.AccessedAt); err != nil {
		return fmt.Errorf("put manifest entry: %w", err)
	}
	return nil
}

// Get returns the row of the key. Inline payload is loaded only if withInline is true.
func (m *Manifest) Get(ctx context.Context, key string, withInline bool) (Entry, error) {
	query := queryGet
	if withInline {
		query = queryGetWithInline
	}
	stmt, err := m.prepare(ctx, query)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	var filename sql.NullString
	row := stmt.QueryRowContext(ctx, key)
	if withInline {
		err = row.Scan(&e.Key, &filename, &e.Size, &e.InlineData, &e.ModifiedAt, &e.AccessedAt)
	} else {
		err = row.Scan(&e.Key, &filename, &e.Size, &e.ModifiedAt, &e.AccessedAt)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("get manifest entry: %w", err)
	}
	e.Filename = filename.String
	return e, nil
}

// GetMany returns rows of the keys including inline payloads. Missing keys are skipped.
func (m *Manifest) GetMany(ctx context.Context, keys []string) ([]Entry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := m.ensureOpen(ctx); err != nil {
		return nil, err
	}
	var entries []Entry
	for batch := range slices.Chunk(keys, maxKeysPerQuery) {
		var err error
		if entries, err = m.appendEntries(ctx, entries, batch); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (m *Manifest) appendEntries(ctx context.Context, entries []Entry, keys []string) ([]Entry, error) {
	placeholders, args := inArgs(keys)
	rows, err := m.db.QueryContext(ctx, `SELECT key, filename, size, inline_data, modification_time, last_access_time
		FROM manifest WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get manifest entries: %w", err)
	}
	defer rows.Close() // nolint: errcheck

	for rows.Next() {
		var e Entry
		var filename sql.NullString
		if err = rows.Scan(&e.Key, &filename, &e.Size, &e.InlineData, &e.ModifiedAt, &e.AccessedAt); err != nil {
			return nil, fmt.Errorf("scan manifest entry: %w", err)
		}
		e.Filename = filename.String
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("get manifest entries: %w", err)
	}
	return entries, nil
}

// Filename returns the blob filename of the key. It is empty for inline entries.
func (m *Manifest) Filename(ctx context.Context, key string) (string, error) {
	stmt, err := m.prepare(ctx, queryFilename)
	if err != nil {
		return "", err
	}
	var filename sql.NullString
	if err = stmt.QueryRowContext(ctx, key).Scan(&filename); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get manifest filename: %w", err)
	}
	return filename.String, nil
}

// Filenames returns blob filenames of the keys. Inline and missing entries are skipped.
func (m *Manifest) Filenames(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := m.ensureOpen(ctx); err != nil {
		return nil, err
	}
	var filenames []string
	for batch := range slices.Chunk(keys, maxKeysPerQuery) {
		placeholders, args := inArgs(batch)
		found, err := m.queryFilenames(ctx,
			`SELECT filename FROM manifest WHERE key IN (`+placeholders+`) AND filename IS NOT NULL`, args...)
		if err != nil {
			return nil, err
		}
		filenames = append(filenames, found...)
	}
	return filenames, nil
}

// Exists reports whether there is a row for the key.
func (m *Manifest) Exists(ctx context.Context, key string) (bool, error) {
	stmt, err := m.prepare(ctx, queryExists)
	if err != nil {
		return false, err
	}
	var n int64
	if err = stmt.QueryRowContext(ctx, key).Scan(&n); err != nil {
		return false, fmt.Errorf("check manifest entry: %w", err)
	}
	return n > 0, nil
}

// Touch sets the last access time of the keys.
func (m *Manifest) Touch(ctx context.Context, accessedAt int64, keys ...string) error {
	switch len(keys) {
	case 0:
		return nil
	case 1:
		stmt, err := m.prepare(ctx, queryTouch)
		if err != nil {
			return err
		}
		if _, err = stmt.ExecContext(ctx, accessedAt, keys[0]); err != nil {
			return fmt.Errorf("touch manifest entry: %w", err)
		}
		return nil
	}
	if err := m.ensureOpen(ctx); err != nil {
		return err
	}
	for batch := range slices.Chunk(keys, maxKeysPerQuery) {
		placeholders, args := inArgs(batch)
		args = append([]any{accessedAt}, args...)
		if _, err := m.db.ExecContext(ctx,
			`UPDATE manifest SET last_access_time = ? WHERE key IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("touch manifest entries: %w", err)
		}
	}
	return nil
}

// Delete deletes the row of the key. It returns false if there was no such row.
func (m *Manifest) Delete(ctx context.Context, key string) (bool, error) {
	stmt, err := m.prepare(ctx, queryDelete)
	if err != nil {
		return false, err
	}
	res, err := stmt.ExecContext(ctx, key)
	if err != nil {
		return false, fmt.Errorf("delete manifest entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete manifest entry: %w", err)
	}
	return n > 0, nil
}

// DeleteMany deletes rows of the keys and returns the number of deleted rows.
func (m *Manifest) DeleteMany(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := m.ensureOpen(ctx); err != nil {
		return 0, err
	}
	var deleted int64
	for batch := range slices.Chunk(keys, maxKeysPerQuery) {
		placeholders, args := inArgs(batch)
		n, err := m.execAffected(ctx, `DELETE FROM manifest WHERE key IN (`+placeholders+`)`, args...)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// FilenamesSizeAbove returns blob filenames of entries larger than size bytes.
func (m *Manifest) FilenamesSizeAbove(ctx context.Context, size int64) ([]string, error) {
	if err := m.ensureOpen(ctx); err != nil {
		return nil, err
	}
	return m.queryFilenames(ctx, queryFilenamesAbove, size)
}

// DeleteSizeAbove deletes rows of entries larger than size bytes.
func (m *Manifest) DeleteSizeAbove(ctx context.Context, size int64) (int64, error) {
	if err := m.ensureOpen(ctx); err != nil {
		return 0, err
	}
	return m.execAffected(ctx, queryDeleteAbove, size)
}

// FilenamesAccessedBefore returns blob filenames of entries last accessed before the unix time.
func (m *Manifest) FilenamesAccessedBefore(ctx context.Context, accessedAt int64) ([]string, error) {
	if err := m.ensureOpen(ctx); err != nil {
		return nil, err
	}
	return m.queryFilenames(ctx, queryFilenamesBefore, accessedAt)
}

// DeleteAccessedBefore deletes rows of entries last accessed before the unix time.
func (m *Manifest) DeleteAccessedBefore(ctx context.Context, accessedAt int64) (int64, error) {
	if err := m.ensureOpen(ctx); err != nil {
		return 0, err
	}
	return m.execAffected(ctx, queryDeleteBefore, accessedAt)
}

// OldestByAccessTime returns up to limit rows with the earliest last access time, without inline payloads.
func (m *Manifest) OldestByAccessTime(ctx context.Context, limit int) ([]Entry, error) {
	return m.queryPage(ctx, queryOldestByAccessed, limit)
}

// Page returns up to limit arbitrary rows, without inline payloads.
func (m *Manifest) Page(ctx context.Context, limit int) ([]Entry, error) {
	return m.queryPage(ctx, queryPage, limit)
}

// Count returns the number of rows.
func (m *Manifest) Count(ctx context.Context) (int64, error) {
	return m.queryInt(ctx, queryCount)
}

// TotalSize returns the sum of sizes of all entries.
func (m *Manifest) TotalSize(ctx context.Context) (int64, error) {
	return m.queryInt(ctx, queryTotalSize)
}

func (m *Manifest) queryInt(ctx context.Context, query string) (int64, error) {
	stmt, err := m.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	var n int64
	if err = stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("query manifest: %w", err)
	}
	return n, nil
}

func (m *Manifest) queryPage(ctx context.Context, query string, limit int) ([]Entry, error) {
	stmt, err := m.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query manifest page: %w", err)
	}
	defer rows.Close() // nolint: errcheck

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var filename sql.NullString
		if err = rows.Scan(&e.Key, &filename, &e.Size); err != nil {
			return nil, fmt.Errorf("scan manifest entry: %w", err)
		}
		e.Filename = filename.String
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("query manifest page: %w", err)
	}
	return entries, nil
}

func (m *Manifest) queryFilenames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query manifest filenames: %w", err)
	}
	defer rows.Close() // nolint: errcheck

	var filenames []string
	for rows.Next() {
		var filename string
		if err = rows.Scan(&filename); err != nil {
			return nil, fmt.Errorf("scan manifest filename: %w", err)
		}
		filenames = append(filenames, filename)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("query manifest filenames: %w", err)
	}
	return filenames, nil
}

func (m *Manifest) execAffected(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete manifest entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete manifest entries: %w", err)
	}
	return n, nil
}

// maxKeysPerQuery bounds the number of keys bound into one IN predicate,
// staying well below the SQLite limit on host parameters.
const maxKeysPerQuery = 500

func inArgs(keys []string) (string, []any) {
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(keys)), ","), args
}

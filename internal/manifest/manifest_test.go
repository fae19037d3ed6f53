/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package manifest

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openManifest(t *testing.T) *Manifest {
	t.Helper()
	m := New(filepath.Join(t.TempDir(), FileName), Opts{})
	require.NoError(t, m.Open(context.Background()))
	require.NoError(t, m.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManifest_PutGet(t *testing.T) {
	ctx := context.Background()
	m := openManifest(t)

	require.NoError(t, m.Put(ctx, Entry{Key: "inline", Size: 3, InlineData: []byte("abc"), ModifiedAt: 10, AccessedAt: 10}))
	require.NoError(t, m.Put(ctx, Entry{Key: "blob", Filename: "f1", Size: 100, ModifiedAt: 20, AccessedAt: 20}))

	e, err := m.Get(ctx, "inline", true)
	require.NoError(t, err)
	require.True(t, e.IsInline())
	require.Equal(t, []byte("abc"), e.InlineData)
	require.EqualValues(t, 3, e.Size)

	e, err = m.Get(ctx, "inline", false)
	require.NoError(t, err)
	require.Nil(t, e.InlineData)

	e, err = m.Get(ctx, "blob", true)
	require.NoError(t, err)
	require.False(t, e.IsInline())
	require.Equal(t, "f1", e.Filename)
	require.Nil(t, e.InlineData)

	_, err = m.Get(ctx, "missing", true)
	require.ErrorIs(t, err, ErrNotFound)

	// Replace blob entry with inline one.
	require.NoError(t, m.Put(ctx, Entry{Key: "blob", Size: 1, InlineData: []byte("x"), ModifiedAt: 30, AccessedAt: 30}))
	filename, err := m.Filename(ctx, "blob")
	require.NoError(t, err)
	require.Empty(t, filename)

	count, err := m.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	total, err := m.TotalSize(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
}

func TestManifest_ManyKeys(t *testing.T) {
	ctx := context.Background()
	m := openManifest(t)

	require.NoError(t, m.Put(ctx, Entry{Key: "a", Filename: "fa", Size: 10, AccessedAt: 1}))
	require.NoError(t, m.Put(ctx, Entry{Key: "b", Size: 1, InlineData: []byte("b"), AccessedAt: 2}))
	require.NoError(t, m.Put(ctx, Entry{Key: "c", Filename: "fc", Size: 30, AccessedAt: 3}))

	entries, err := m.GetMany(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	filenames, err := m.Filenames(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"fa", "fc"}, filenames)

	require.NoError(t, m.Touch(ctx, 100, "a", "b"))
	oldest, err := m.OldestByAccessTime(ctx, 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	require.Equal(t, "c", oldest[0].Key)

	n, err := m.DeleteMany(ctx, []string{"a", "c", "missing"})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	exists, err := m.Exists(ctx, "b")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = m.Exists(ctx, "a")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestManifest_KeysAboveParameterLimit(t *testing.T) {
	ctx := context.Background()
	m := openManifest(t)

	// More keys than SQLite allows host parameters in one statement.
	keys := make([]string, 40000)
	for i := range keys {
		keys[i] = "k" + strconv.Itoa(i)
	}
	stored := []string{keys[0], keys[maxKeysPerQuery], keys[len(keys)-1]}
	for _, key := range stored {
		require.NoError(t, m.Put(ctx, Entry{Key: key, Filename: "f-" + key, Size: 1, AccessedAt: 1}))
	}

	entries, err := m.GetMany(ctx, keys)
	require.NoError(t, err)
	require.Len(t, entries, len(stored))

	filenames, err := m.Filenames(ctx, keys)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"f-" + stored[0], "f-" + stored[1], "f-" + stored[2]}, filenames)

	require.NoError(t, m.Touch(ctx, 50, keys...))
	entry, err := m.Get(ctx, stored[2], false)
	require.NoError(t, err)
	require.EqualValues(t, 50, entry.AccessedAt)

	n, err := m.DeleteMany(ctx, keys)
	require.NoError(t, err)
	require.EqualValues(t, len(stored), n)
	count, err := m.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestManifest_DeleteByPredicates(t *testing.T) {
	ctx := context.Background()
	m := openManifest(t)

	require.NoError(t, m.Put(ctx, Entry{Key: "small", Size: 5, InlineData: []byte("small"), AccessedAt: 100}))
	require.NoError(t, m.Put(ctx, Entry{Key: "big", Filename: "fbig", Size: 500, AccessedAt: 50}))
	require.NoError(t, m.Put(ctx, Entry{Key: "old", Filename: "fold", Size: 50, AccessedAt: 10}))

	filenames, err := m.FilenamesSizeAbove(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, []string{"fbig"}, filenames)
	n, err := m.DeleteSizeAbove(ctx, 100)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	filenames, err = m.FilenamesAccessedBefore(ctx, 20)
	require.NoError(t, err)
	require.Equal(t, []string{"fold"}, filenames)
	n, err = m.DeleteAccessedBefore(ctx, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	deleted, err := m.Delete(ctx, "small")
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = m.Delete(ctx, "small")
	require.NoError(t, err)
	require.False(t, deleted)

	require.NoError(t, m.Checkpoint(ctx))
}

func TestManifest_Reopen(t *testing.T) {
	ctx := context.Background()
	m := openManifest(t)
	require.NoError(t, m.Put(ctx, Entry{Key: "a", Size: 1, InlineData: []byte("a")}))
	require.NoError(t, m.Close())
	require.False(t, m.IsOpen())

	// Lost connection is reopened lazily and the data survives.
	e, err := m.Get(ctx, "a", true)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), e.InlineData)
	require.True(t, m.IsOpen())
}

func TestManifest_ReopenHealthGate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", FileName)
	m := New(path, Opts{MaxOpenRetries: 2, OpenRetryCooldown: time.Second})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.Error(t, m.Open(ctx))

	// Within the cool-down interval no attempt is made.
	_, err := m.Count(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, m.openErrors)

	now = now.Add(2 * time.Second)
	_, err = m.Count(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 2, m.openErrors)

	// The retry budget is exhausted even after the directory appears.
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	now = now.Add(2 * time.Second)
	_, err = m.Count(ctx)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 2, m.openErrors)
}

func TestManifest_CorruptedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o600))

	m := New(path, Opts{})
	err := m.Open(ctx)
	if err == nil {
		err = m.EnsureSchema(ctx)
	}
	require.Error(t, err)
	_ = m.Close()
}

func TestIsBusy(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	holder, err := db.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = holder.Close() }()
	waiter, err := db.Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = waiter.Close() }()

	_, err = holder.ExecContext(ctx, `CREATE TABLE t (x INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = holder.ExecContext(ctx, `INSERT INTO t (x) VALUES (1), (2)`)
	require.NoError(t, err)

	_, constraintErr := holder.ExecContext(ctx, `INSERT INTO t (x) VALUES (1)`)
	require.Error(t, constraintErr)

	// A table cannot be dropped while a statement of the same connection is reading it.
	rows, err := holder.QueryContext(ctx, `SELECT x FROM t`)
	require.NoError(t, err)
	require.True(t, rows.Next())
	_, lockedErr := holder.ExecContext(ctx, `DROP TABLE t`)
	require.NoError(t, rows.Close())
	require.Error(t, lockedErr)

	_, err = holder.ExecContext(ctx, `BEGIN IMMEDIATE`)
	require.NoError(t, err)
	_, err = waiter.ExecContext(ctx, `PRAGMA busy_timeout = 0`)
	require.NoError(t, err)
	_, busyErr := waiter.ExecContext(ctx, `BEGIN IMMEDIATE`)
	_, err = holder.ExecContext(ctx, `ROLLBACK`)
	require.NoError(t, err)
	require.Error(t, busyErr)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "busy", err: busyErr, want: true},
		{name: "wrapped busy", err: fmt.Errorf("close manifest: %w", busyErr), want: true},
		{name: "locked", err: lockedErr, want: true},
		{name: "constraint", err: constraintErr, want: false},
		{name: "not sqlite", err: errors.New("busy"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isBusy(tt.err))
		})
	}
}

/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilenameForKey(t *testing.T) {
	require.Equal(t, FilenameForKey("user:1"), FilenameForKey("user:1"))
	require.NotEqual(t, FilenameForKey("user:1"), FilenameForKey("user:2"))
	require.Len(t, FilenameForKey(""), 64)
	require.NotContains(t, FilenameForKey("../../etc/passwd"), "/")
}

func TestStore_WriteReadDelete(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			s, err := New(t.TempDir(), Opts{Compress: compress})
			require.NoError(t, err)
			defer s.Close()

			name := FilenameForKey("key")
			data := bytes.Repeat([]byte("payload-"), 4096)
			require.NoError(t, s.Write(name, data))

			got, err := s.Read(name)
			require.NoError(t, err)
			require.Equal(t, data, got)

			// Overwrite.
			require.NoError(t, s.Write(name, []byte("short")))
			got, err = s.Read(name)
			require.NoError(t, err)
			require.Equal(t, []byte("short"), got)

			require.NoError(t, s.Delete(name))
			_, err = s.Read(name)
			require.ErrorIs(t, err, ErrNotFound)
			require.ErrorIs(t, s.Delete(name), ErrNotFound)

			// No temporary files are left behind.
			entries, err := os.ReadDir(s.DataPath())
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestStore_ReadCorrupted(t *testing.T) {
	s, err := New(t.TempDir(), Opts{Compress: true})
	require.NoError(t, err)
	defer s.Close()

	name := FilenameForKey("key")
	require.NoError(t, os.WriteFile(filepath.Join(s.DataPath(), name), []byte("not a zstd frame"), 0o600))
	_, err = s.Read(name)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_QuarantineAndEmptyTrash(t *testing.T) {
	s, err := New(t.TempDir(), Opts{})
	require.NoError(t, err)
	defer s.Close()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, s.Write(FilenameForKey(key), []byte(key)))
	}

	require.NoError(t, s.QuarantineAll())

	_, err = s.Read(FilenameForKey("a"))
	require.ErrorIs(t, err, ErrNotFound)
	dataEntries, err := os.ReadDir(s.DataPath())
	require.NoError(t, err)
	require.Empty(t, dataEntries)

	trashEntries, err := os.ReadDir(s.TrashPath())
	require.NoError(t, err)
	require.Len(t, trashEntries, 1)
	quarantined, err := os.ReadDir(filepath.Join(s.TrashPath(), trashEntries[0].Name()))
	require.NoError(t, err)
	require.Len(t, quarantined, 3)

	// The store stays writable after quarantine.
	require.NoError(t, s.Write(FilenameForKey("d"), []byte("d")))

	require.NoError(t, s.emptyTrash(context.Background()))
	trashEntries, err = os.ReadDir(s.TrashPath())
	require.NoError(t, err)
	require.Empty(t, trashEntries)

	got, err := s.Read(FilenameForKey("d"))
	require.NoError(t, err)
	require.Equal(t, []byte("d"), got)
}

func TestStore_EmptyTrashInBackground(t *testing.T) {
	s, err := New(t.TempDir(), Opts{})
	require.NoError(t, err)

	require.NoError(t, s.Write(FilenameForKey("a"), []byte("a")))
	require.NoError(t, s.QuarantineAll())
	require.NoError(t, s.QuarantineAll())

	s.EmptyTrash()
	s.trashWG.Wait()

	trashEntries, err := os.ReadDir(s.TrashPath())
	require.NoError(t, err)
	require.Empty(t, trashEntries)

	s.Close()
	s.EmptyTrash() // no-op after Close
}

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amvasilyev/cdc-pump/internal/tid"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	got, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, got.Zero())
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	s := New(path)
	_, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	s := New(path)

	want := tid.TID{Domain: 0, Server: 1, Sequence: 11}
	require.NoError(t, s.Save(want))

	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	// The temp file must not be left behind.
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestSaveOverwritesPreviousValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	s := New(path)

	require.NoError(t, s.Save(tid.TID{Domain: 0, Server: 1, Sequence: 10}))
	require.NoError(t, s.Save(tid.TID{Domain: 0, Server: 1, Sequence: 11}))

	got, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(11), got.Sequence)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.txt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-tid"), 0o644))

	s := New(path)
	_, _, err := s.Load()
	require.Error(t, err)
}

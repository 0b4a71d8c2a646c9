package fsfacade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateWriteAtReadAt(t *testing.T) {
	dir := t.TempDir()
	fs := New()
	path := filepath.Join(dir, "f.dat")

	f, err := fs.Create(path)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	ro, err := fs.OpenRO(path)
	require.NoError(t, err)
	defer ro.Close()
	buf := make([]byte, 5)
	_, err = ro.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestMmapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs := New()
	path := filepath.Join(dir, "m.dat")

	f, err := fs.Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("mapped-data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	size, err := fs.Length(path)
	require.NoError(t, err)

	ro, err := fs.OpenRO(path)
	require.NoError(t, err)
	defer ro.Close()

	data, err := fs.Mmap(ro, size)
	require.NoError(t, err)
	defer fs.Munmap(data)
	require.Equal(t, "mapped-data", string(data))
}

func TestReadDirListsFilesOnly(t *testing.T) {
	dir := t.TempDir()
	fs := New()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2020-01-01"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{}"), 0644))

	files, err := fs.ReadDir(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"manifest.json"}, files)
}

func TestRenameAndRemove(t *testing.T) {
	dir := t.TempDir()
	fs := New()
	oldPath := filepath.Join(dir, "old")
	newPath := filepath.Join(dir, "new")
	require.NoError(t, os.MkdirAll(oldPath, 0755))

	require.NoError(t, fs.Rename(oldPath, newPath))
	_, err := os.Stat(newPath)
	require.NoError(t, err)
	_, err = os.Stat(oldPath)
	require.True(t, os.IsNotExist(err))

	f, err := fs.Create(filepath.Join(newPath, "x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, fs.Remove(filepath.Join(newPath, "x")))
	_, err = os.Stat(filepath.Join(newPath, "x"))
	require.True(t, os.IsNotExist(err))
}

func TestMkdirAllAndRmdir(t *testing.T) {
	dir := t.TempDir()
	fs := New()
	nested := filepath.Join(dir, "a", "b", "c")

	require.NoError(t, fs.MkdirAll(nested))
	_, err := os.Stat(nested)
	require.NoError(t, err)

	require.NoError(t, fs.Rmdir(filepath.Join(dir, "a")))
	_, err = os.Stat(filepath.Join(dir, "a"))
	require.True(t, os.IsNotExist(err))
}

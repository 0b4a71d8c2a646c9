package merge

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/indexstore"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T, dir, name string, entries []common.IndexEntry) {
	t.Helper()
	f, err := fsfacade.New().Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	for _, e := range entries {
		require.NoError(t, indexstore.WriteEntry(writerAt{f}, e))
	}
}

type writerAt struct{ f fsfacade.File }

func (w writerAt) Write(p []byte) (int, error) { return w.f.Write(p) }

func TestMergeKWayAcrossWorkerRuns(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "0_0", []common.IndexEntry{{TimestampMicros: 10, Offset: 1}, {TimestampMicros: 30, Offset: 3}})
	writeRun(t, dir, "1_0", []common.IndexEntry{{TimestampMicros: 20, Offset: 2}, {TimestampMicros: 40, Offset: 4}})

	fs := fsfacade.New()
	count, err := Merge(fs, dir)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	data, err := readAll(fs, filepath.Join(dir, "__index"))
	require.NoError(t, err)
	entries := indexstore.DecodeAll(data)
	require.Len(t, entries, 4)
	require.True(t, sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Less(entries[j]) }), "merged index not sorted: %+v", entries)
}

func TestRunFilesSkipsMergedIndex(t *testing.T) {
	dir := t.TempDir()
	fs := fsfacade.New()
	writeRun(t, dir, "0_0", []common.IndexEntry{{TimestampMicros: 1}})
	_, err := Merge(fs, dir)
	require.NoError(t, err)

	names, err := RunFiles(fs, dir)
	require.NoError(t, err)
	require.NotContains(t, names, "__index")
}

func readAll(fs fsfacade.Filesystem, path string) ([]byte, error) {
	size, err := fs.Length(path)
	if err != nil {
		return nil, err
	}
	f, err := fs.OpenRO(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && size > 0 {
		return nil, err
	}
	return buf, nil
}

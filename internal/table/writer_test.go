package table

import (
	"path/filepath"
	"testing"

	"github.com/csvquery/bulkload/internal/typeadapt"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		Columns: []ColumnSchema{
			{Name: "ts", Type: typeadapt.TypeTimestamp},
			{Name: "host", Type: typeadapt.TypeSymbol},
			{Name: "msg", Type: typeadapt.TypeString},
			{Name: "count", Type: typeadapt.TypeInt64},
		},
		TimestampColumn: 0,
	}
}

func TestWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testSchema())
	require.NoError(t, err)

	require.NoError(t, w.BeginPartition("2026-07-31"))

	row := w.NewRow(1000)
	row.PutInt64(0, 1000)
	row.PutSymbol(1, "web-1")
	row.PutString(2, "hello")
	row.PutInt64(3, 7)
	require.NoError(t, row.Append())

	require.NoError(t, w.CommitPartition(Sync))
	require.NoError(t, w.AttachPartition("2026-07-31"))

	parts, err := w.Partitions()
	require.NoError(t, err)
	require.Equal(t, []string{"2026-07-31"}, parts)

	got, ok := w.symbolDictionary(1).Lookup("web-1")
	require.True(t, ok)
	require.Equal(t, int32(0), got)
}

func TestRowCancelDiscardsValues(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testSchema())
	require.NoError(t, err)
	require.NoError(t, w.BeginPartition("p0"))

	row := w.NewRow(1)
	row.PutInt64(0, 1)
	row.Cancel()
	require.Error(t, row.Append(), "expected error appending a cancelled row")
}

func TestSymbolDictionaryPersistsAcrossCommit(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testSchema())
	require.NoError(t, err)
	require.NoError(t, w.BeginPartition("p0"))

	row := w.NewRow(1)
	row.PutInt64(0, 1)
	row.PutSymbol(1, "alpha")
	row.PutString(2, "m")
	row.PutInt64(3, 1)
	require.NoError(t, row.Append())
	require.NoError(t, w.CommitPartition(NoSync))

	reloaded, err := LoadDictionary(filepath.Join(dir, "dict_1.json"))
	require.NoError(t, err)

	got, ok := reloaded.Lookup("alpha")
	require.True(t, ok)
	require.Equal(t, int32(0), got)
}

func TestSchemaSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := testSchema()
	_, err := Open(dir, s)
	require.NoError(t, err)

	got, err := loadSchema(dir)
	require.NoError(t, err)
	require.Len(t, got.Columns, len(s.Columns))
	require.Equal(t, s.TimestampColumn, got.TimestampColumn)
}

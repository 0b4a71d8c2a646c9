package load

import (
	"testing"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/table"
	"github.com/csvquery/bulkload/internal/typeadapt"
	"github.com/stretchr/testify/require"
)

type bytesSource []byte

func (b bytesSource) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, b[off:])
	return n, nil
}

func schema() table.Schema {
	return table.Schema{
		Columns: []table.ColumnSchema{
			{Name: "ts", Type: typeadapt.TypeTimestamp},
			{Name: "v", Type: typeadapt.TypeInt64},
		},
		TimestampColumn: 0,
	}
}

func TestLoadWritesRowsInIndexOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := table.Open(dir, schema())
	require.NoError(t, err)

	data := bytesSource("2020-01-01T00:00:00Z,1\n2020-01-01T01:00:00Z,2\n")
	entries := []common.IndexEntry{
		{TimestampMicros: 1, Offset: 0},
		{TimestampMicros: 2, Offset: 23},
	}

	cfg := Config{
		Delimiter:     ',',
		MaxLineLength: 23,
		Adapters: []typeadapt.Adapter{
			typeadapt.NewTimestampAdapter(typeadapt.LayoutRFC3339, ""),
			typeadapt.Int64Adapter{},
		},
		Atomicity: common.SkipAll,
	}

	res, err := Load(data, entries, w, "2020-01-01", cfg)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.RowsWritten)
	require.EqualValues(t, 0, res.RowsRejected)
}

func TestLoadSkipRowOnBadField(t *testing.T) {
	dir := t.TempDir()
	w, err := table.Open(dir, schema())
	require.NoError(t, err)

	data := bytesSource("2020-01-01T00:00:00Z,not-a-number\n2020-01-01T01:00:00Z,2\n")
	entries := []common.IndexEntry{
		{TimestampMicros: 1, Offset: 0},
		{TimestampMicros: 2, Offset: 34},
	}

	cfg := Config{
		Delimiter:     ',',
		MaxLineLength: 34,
		Adapters: []typeadapt.Adapter{
			typeadapt.NewTimestampAdapter(typeadapt.LayoutRFC3339, ""),
			typeadapt.Int64Adapter{},
		},
		Atomicity: common.SkipRow,
	}

	res, err := Load(data, entries, w, "2020-01-01", cfg)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsWritten)
	require.EqualValues(t, 1, res.RowsRejected)
}

package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/table"
	"github.com/csvquery/bulkload/internal/typeadapt"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func baseSchema() table.Schema {
	return table.Schema{
		Columns: []table.ColumnSchema{
			{Name: "t", Type: typeadapt.TypeTimestamp},
			{Name: "v", Type: typeadapt.TypeInt64},
		},
		TimestampColumn: 0,
	}
}

func TestRunSingleWorkerNoQuotes(t *testing.T) {
	root := t.TempDir()
	inputRoot := filepath.Join(root, "in")
	workRoot := filepath.Join(root, "work")
	dbRoot := filepath.Join(root, "db")
	os.MkdirAll(inputRoot, 0755)

	writeInput(t, inputRoot, "data.csv",
		"2020-01-01T00:00:00Z,1\n2020-01-02T00:00:00Z,2\n")

	c := New(fsfacade.New(), nil)
	spec := LoadSpec{
		TableName:       "events",
		InputRoot:       inputRoot,
		InputFileName:   "data.csv",
		PartitionBy:     common.PartitionByDay,
		ColumnDelimiter: ',',
		Schema:          baseSchema(),
		TimestampColumn: 0,
		WorkRoot:        workRoot,
		DBRoot:          dbRoot,
		Workers:         1,
		Atomicity:       common.SkipAll,
	}

	res, err := c.Run(context.Background(), spec)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.RowsWritten)
	require.Len(t, res.PartitionNames, 2)

	for _, name := range []string{"2020-01-01", "2020-01-02"} {
		_, err := os.Stat(filepath.Join(dbRoot, "events", name))
		require.NoError(t, err, "final partition %s missing", name)
	}

	_, err = os.Stat(filepath.Join(workRoot, "events"))
	require.True(t, os.IsNotExist(err), "work directory should be removed")
}

func TestRunMultiWorkerQuotedFieldCrossingChunks(t *testing.T) {
	root := t.TempDir()
	inputRoot := filepath.Join(root, "in")
	workRoot := filepath.Join(root, "work")
	dbRoot := filepath.Join(root, "db")
	os.MkdirAll(inputRoot, 0755)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("2020-01-01T00:00:00Z,")
		sb.WriteByte('"')
		sb.WriteString(strings.Repeat("x,y\nz", 200))
		sb.WriteString("\"\n")
	}
	content := sb.String()
	writeInput(t, inputRoot, "data.csv", content)

	schema := table.Schema{
		Columns: []table.ColumnSchema{
			{Name: "t", Type: typeadapt.TypeTimestamp},
			{Name: "v", Type: typeadapt.TypeString},
		},
		TimestampColumn: 0,
	}

	c := New(fsfacade.New(), nil)
	spec := LoadSpec{
		TableName:       "quoted",
		InputRoot:       inputRoot,
		InputFileName:   "data.csv",
		PartitionBy:     common.PartitionByDay,
		ColumnDelimiter: ',',
		Schema:          schema,
		TimestampColumn: 0,
		WorkRoot:        workRoot,
		DBRoot:          dbRoot,
		Workers:         4,
		Atomicity:       common.SkipAll,
	}

	res, err := c.Run(context.Background(), spec)
	require.NoError(t, err)
	require.EqualValues(t, 20, res.RowsWritten, "quoted embedded newlines/delimiters must not split records")
}

func TestRunAtomicitySkipRow(t *testing.T) {
	root := t.TempDir()
	inputRoot := filepath.Join(root, "in")
	workRoot := filepath.Join(root, "work")
	dbRoot := filepath.Join(root, "db")
	os.MkdirAll(inputRoot, 0755)

	writeInput(t, inputRoot, "data.csv",
		"2020-01-01T00:00:00Z,1\n2020-01-01T01:00:00Z,not-a-number\n2020-01-01T02:00:00Z,3\n")

	c := New(fsfacade.New(), nil)
	spec := LoadSpec{
		TableName:       "skiprow",
		InputRoot:       inputRoot,
		InputFileName:   "data.csv",
		PartitionBy:     common.PartitionByDay,
		ColumnDelimiter: ',',
		Schema:          baseSchema(),
		TimestampColumn: 0,
		WorkRoot:        workRoot,
		DBRoot:          dbRoot,
		Workers:         1,
		Atomicity:       common.SkipRow,
	}

	res, err := c.Run(context.Background(), spec)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.RowsWritten)
	require.EqualValues(t, 1, res.RowsRejected)
}

func TestRunSymbolMergeAcrossWorkers(t *testing.T) {
	root := t.TempDir()
	inputRoot := filepath.Join(root, "in")
	workRoot := filepath.Join(root, "work")
	dbRoot := filepath.Join(root, "db")
	os.MkdirAll(inputRoot, 0755)

	var sb strings.Builder
	hosts := []string{"a", "b", "b", "c"}
	for i, h := range hosts {
		sb.WriteString("2020-01-0")
		sb.WriteByte(byte('1' + i))
		sb.WriteString("T00:00:00Z,")
		sb.WriteString(h)
		sb.WriteString("\n")
	}
	writeInput(t, inputRoot, "data.csv", sb.String())

	schema := table.Schema{
		Columns: []table.ColumnSchema{
			{Name: "t", Type: typeadapt.TypeTimestamp},
			{Name: "host", Type: typeadapt.TypeSymbol},
		},
		TimestampColumn: 0,
	}

	c := New(fsfacade.New(), nil)
	spec := LoadSpec{
		TableName:       "symboltest",
		InputRoot:       inputRoot,
		InputFileName:   "data.csv",
		PartitionBy:     common.PartitionByDay,
		ColumnDelimiter: ',',
		Schema:          schema,
		TimestampColumn: 0,
		WorkRoot:        workRoot,
		DBRoot:          dbRoot,
		Workers:         2,
		Atomicity:       common.SkipAll,
	}

	res, err := c.Run(context.Background(), spec)
	require.NoError(t, err)
	require.EqualValues(t, 4, res.RowsWritten)

	dict, err := table.LoadDictionary(filepath.Join(dbRoot, "symboltest", "dict_1.json"))
	require.NoError(t, err)
	require.Equal(t, 3, dict.Len(), "want 3 distinct hosts (a, b, c)")
}

package indexstore

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
)

func TestWriteReadEntryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := common.IndexEntry{TimestampMicros: 1234567890, Offset: 42}
	if err := WriteEntry(&buf, e); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != common.IndexEntrySize {
		t.Fatalf("encoded length = %d, want %d", buf.Len(), common.IndexEntrySize)
	}
	got, err := ReadEntry(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != e {
		t.Fatalf("round trip = %+v, want %+v", got, e)
	}
}

func TestDecodeAll(t *testing.T) {
	entries := []common.IndexEntry{{TimestampMicros: 1, Offset: 10}, {TimestampMicros: 2, Offset: 20}}
	var buf bytes.Buffer
	if err := WriteBatch(&buf, entries); err != nil {
		t.Fatal(err)
	}
	got := DecodeAll(buf.Bytes())
	if len(got) != 2 || got[0] != entries[0] || got[1] != entries[1] {
		t.Fatalf("DecodeAll = %+v", got)
	}
}

func TestRunWriterFinalizeWithoutSpill(t *testing.T) {
	dir := t.TempDir()
	w := NewRunWriter(fsfacade.New(), dir, "w0_c0", 1000)
	entries := []common.IndexEntry{
		{TimestampMicros: 30, Offset: 3},
		{TimestampMicros: 10, Offset: 1},
		{TimestampMicros: 20, Offset: 2},
	}
	for _, e := range entries {
		if err := w.Add(e); err != nil {
			t.Fatal(err)
		}
	}
	outPath := filepath.Join(dir, "run")
	count, err := w.Finalize(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	assertSorted(t, outPath)
}

func TestRunWriterFinalizeWithSpills(t *testing.T) {
	dir := t.TempDir()
	w := NewRunWriter(fsfacade.New(), dir, "w0_c0", 8) // cap is raised to the 1024 floor
	const n = 5000                                     // several multiples of 1024, forcing multiple spills
	for i := n - 1; i >= 0; i-- {
		if err := w.Add(common.IndexEntry{TimestampMicros: int64(i), Offset: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	outPath := filepath.Join(dir, "run")
	count, err := w.Finalize(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if count != n {
		t.Fatalf("count = %d, want %d", count, n)
	}
	assertSorted(t, outPath)

	// Spill files must be cleaned up.
	remaining, _ := filepath.Glob(filepath.Join(dir, "*.lz4"))
	if len(remaining) != 0 {
		t.Fatalf("spill files not cleaned up: %v", remaining)
	}
}

func assertSorted(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	entries := DecodeAll(data)
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Less(entries[j]) }) {
		t.Fatalf("merged run is not sorted: %+v", entries)
	}
}

func TestMergeRunsPreservesAllEntries(t *testing.T) {
	a := NewSliceRun([]common.IndexEntry{{TimestampMicros: 1}, {TimestampMicros: 5}, {TimestampMicros: 9}})
	b := NewSliceRun([]common.IndexEntry{{TimestampMicros: 2}, {TimestampMicros: 5}, {TimestampMicros: 8}})

	var out []common.IndexEntry
	count, err := MergeRuns([]Run{a, b}, func(e common.IndexEntry) error {
		out = append(out, e)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 6 {
		t.Fatalf("count = %d, want 6", count)
	}
	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Less(out[j]) }) {
		t.Fatalf("merged output not sorted: %+v", out)
	}
}

package table

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/csvquery/bulkload/internal/typeadapt"
)

// SyncMode selects whether CommitPartition fsyncs column files before
// returning, per spec §4.5's "writer is committed with durability sync".
type SyncMode int

const (
	NoSync SyncMode = iota
	Sync
)

// PartitionMeta is the small JSON sidecar recording a committed
// partition's row count, written next to its column files.
type PartitionMeta struct {
	RowCount int64 `json:"rowCount"`
}

// Writer is the default columnar table writer (spec §6's "Table writer"
// external interface): newRow/put/cancel/append, commit(syncMode),
// addIndex, attachPartition, getMetadata, getSymbolMapWriter.
type Writer struct {
	root   string
	schema Schema

	curPartition string
	curDir       string
	colFiles     []*bufio.Writer
	colHandles   []*os.File
	nullBits     []bool
	rowCount     int64

	dictionaries map[int]*Dictionary
}

// Open creates (or reopens) a table writer rooted at root with the given
// schema, saving the schema sidecar on first use.
func Open(root string, schema Schema) (*Writer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create table root: %w", err)
	}
	if _, err := os.Stat(schemaPath(root)); os.IsNotExist(err) {
		if err := saveSchema(root, schema); err != nil {
			return nil, err
		}
	}
	return &Writer{root: root, schema: schema, dictionaries: make(map[int]*Dictionary)}, nil
}

func (w *Writer) Schema() Schema { return w.schema }

// BeginPartition opens a fresh set of per-column append files under
// root/partitionName, creating the directory on first use (spec §4.3's
// "creating the partition directory on first use", generalized from the
// indexer's index shards to the loader's row columns).
func (w *Writer) BeginPartition(name string) error {
	dir := filepath.Join(w.root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}

	handles := make([]*os.File, len(w.schema.Columns))
	writers := make([]*bufio.Writer, len(w.schema.Columns))
	for i := range w.schema.Columns {
		f, err := os.OpenFile(columnPath(dir, i), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			closeAll(handles)
			return fmt.Errorf("open column %d: %w", i, err)
		}
		handles[i] = f
		writers[i] = bufio.NewWriterSize(f, 64*1024)
	}

	w.curPartition = name
	w.curDir = dir
	w.colHandles = handles
	w.colFiles = writers
	w.rowCount = 0
	return nil
}

func columnPath(partitionDir string, col int) string {
	return filepath.Join(partitionDir, fmt.Sprintf("col_%d.dat", col))
}

func closeAll(files []*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}

// Row accumulates one record's values until Append or Cancel.
type Row struct {
	w       *Writer
	ts      int64
	values  [][]byte // pre-encoded column bytes, nil if unset/null
	touched bool
}

// NewRow starts a new row tagged with a row timestamp (used for
// bookkeeping; callers still Put the timestamp column explicitly).
func (w *Writer) NewRow(ts int64) *Row {
	return &Row{w: w, ts: ts, values: make([][]byte, len(w.schema.Columns))}
}

func (r *Row) PutInt64(col int, v int64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	r.values[col] = buf
	r.touched = true
}

func (r *Row) PutFloat64(col int, v float64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	r.values[col] = buf
	r.touched = true
}

func (r *Row) PutString(col int, v string) {
	b := []byte(v)
	buf := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(b)))
	copy(buf[4:], b)
	r.values[col] = buf
	r.touched = true
}

func (r *Row) PutSymbol(col int, v string) {
	key := r.w.symbolDictionary(col).Insert(v)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(key))
	r.values[col] = buf
	r.touched = true
}

func (r *Row) PutNull(col int) {
	r.values[col] = nil
	r.touched = true
}

// Cancel discards the row without writing anything (atomicity SKIP_ROW).
func (r *Row) Cancel() {
	r.values = nil
}

// Append flushes the row's column values to the open partition's column
// files. Every column must have a value (possibly null) encoded with a
// 1-byte null flag prefix, so atomicity SKIP_COLUMN can leave individual
// fields absent without shifting the fixed-width layout for other rows.
func (r *Row) Append() error {
	if r.values == nil {
		return fmt.Errorf("append called after cancel")
	}
	for col, w := range r.w.colFiles {
		val := r.values[col]
		if val == nil {
			if err := w.WriteByte(0); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteByte(1); err != nil {
			return err
		}
		if _, err := w.Write(val); err != nil {
			return err
		}
	}
	r.w.rowCount++
	return nil
}

func (w *Writer) symbolDictionary(col int) *Dictionary {
	if d, ok := w.dictionaries[col]; ok {
		return d
	}
	d, err := LoadDictionary(w.dictionaryPath(col))
	if err != nil {
		d = NewDictionary()
	}
	w.dictionaries[col] = d
	return d
}

func (w *Writer) dictionaryPath(col int) string {
	return filepath.Join(w.root, fmt.Sprintf("dict_%d.json", col))
}

// SymbolMapWriter exposes col's dictionary so the symbol merger can read
// it during phase 4 (spec §4.6).
func (w *Writer) SymbolMapWriter(col int) *Dictionary {
	return w.symbolDictionary(col)
}

// CommitPartition flushes and closes the current partition's column
// files, persists its row-count sidecar, and optionally fsyncs every
// column file (spec §4.5: "the writer is committed with durability
// sync").
func (w *Writer) CommitPartition(sync SyncMode) error {
	for i, bw := range w.colFiles {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush column %d: %w", i, err)
		}
	}
	if sync == Sync {
		for i, f := range w.colHandles {
			if err := f.Sync(); err != nil {
				return fmt.Errorf("sync column %d: %w", i, err)
			}
		}
	}
	for _, f := range w.colHandles {
		f.Close()
	}

	meta := PartitionMeta{RowCount: w.rowCount}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.curDir, "_meta.json"), data, 0644); err != nil {
		return err
	}

	for col, d := range w.dictionaries {
		if err := SaveDictionary(w.dictionaryPath(col), d); err != nil {
			return fmt.Errorf("save dictionary %d: %w", col, err)
		}
	}

	w.colFiles = nil
	w.colHandles = nil
	return nil
}

// AddIndex is a no-op placeholder for the real columnar store's secondary
// index construction (spec §6: `addIndex(col, blockCap)`); the reference
// writer here has no query path of its own to index.
func (w *Writer) AddIndex(col int, blockCap int) error { return nil }

// AttachPartition records a partition as owned by this (final) table.
// A real columnar store's attach/commit protocol is out of scope (spec
// §1); this just appends to a small manifest so Reconciler/Attacher tests
// can observe which partitions a table currently owns.
func (w *Writer) AttachPartition(name string) error {
	names, err := LoadPartitions(w.root)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	names = append(names, name)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return os.WriteFile(partitionsManifestPath(w.root), data, 0644)
}

// Partitions returns every partition name this table has attached.
func (w *Writer) Partitions() ([]string, error) {
	return LoadPartitions(w.root)
}

// Metadata returns the current row count of the partition last committed.
func (w *Writer) Metadata() PartitionMeta {
	return PartitionMeta{RowCount: w.rowCount}
}

var _ typeadapt.RowSetter = (*Row)(nil)

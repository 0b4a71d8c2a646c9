package indexstore

import (
	"bufio"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/pierrec/lz4/v4"
)

// RunWriter accumulates IndexEntry values for one (partition, worker,
// chunk) during the indexing phase (spec §4.3) and finalizes them into a
// single sorted run file, ready for phase 3's IndexMerger to mmap.
//
// Entries are buffered in memory up to maxInMemory; beyond that they are
// sorted and spilled to an LZ4-compressed temp file (mirroring the
// teacher's Sorter.flushChunk), so one chunk touching a partition far
// larger than its memory budget still produces a single correctly sorted
// run instead of failing or reading the whole thing into memory at once.
type RunWriter struct {
	fs          fsfacade.Filesystem
	tempDir     string
	namePrefix  string
	maxInMemory int

	buf        []common.IndexEntry
	spillFiles []string
}

func NewRunWriter(fs fsfacade.Filesystem, tempDir, namePrefix string, maxInMemory int) *RunWriter {
	if maxInMemory < 1024 {
		maxInMemory = 1024
	}
	return &RunWriter{
		fs:          fs,
		tempDir:     tempDir,
		namePrefix:  namePrefix,
		maxInMemory: maxInMemory,
		buf:         make([]common.IndexEntry, 0, maxInMemory),
	}
}

func (w *RunWriter) Add(e common.IndexEntry) error {
	w.buf = append(w.buf, e)
	if len(w.buf) >= w.maxInMemory {
		return w.spill()
	}
	return nil
}

func (w *RunWriter) spill() error {
	if len(w.buf) == 0 {
		return nil
	}
	sort.Slice(w.buf, func(i, j int) bool { return w.buf[i].Less(w.buf[j]) })

	path := filepath.Join(w.tempDir, fmt.Sprintf("%s_spill_%d.lz4", w.namePrefix, len(w.spillFiles)))
	f, err := w.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create spill chunk: %w", err)
	}

	zw := lz4.NewWriter(f)
	bw := bufio.NewWriterSize(zw, 256*1024)

	if err := WriteBatch(bw, w.buf); err != nil {
		bw.Flush()
		zw.Close()
		f.Close()
		return fmt.Errorf("write spill chunk: %w", err)
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	w.spillFiles = append(w.spillFiles, path)
	w.buf = w.buf[:0]
	return nil
}

// Finalize writes the fully sorted run to outPath. With no spills, the
// remaining in-memory buffer is sorted and written directly; with spills,
// the buffer becomes one final in-memory run and all runs are k-way
// merged together.
func (w *RunWriter) Finalize(outPath string) (count int64, err error) {
	defer w.cleanupSpills()

	out, err := w.fs.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create run file: %w", err)
	}
	defer out.Close()
	bw := bufio.NewWriterSize(out, 256*1024)

	write := func(e common.IndexEntry) error {
		return WriteEntry(bw, e)
	}

	if len(w.spillFiles) == 0 {
		sort.Slice(w.buf, func(i, j int) bool { return w.buf[i].Less(w.buf[j]) })
		for _, e := range w.buf {
			if err := write(e); err != nil {
				return count, err
			}
			count++
		}
		return count, bw.Flush()
	}

	sort.Slice(w.buf, func(i, j int) bool { return w.buf[i].Less(w.buf[j]) })
	runs := make([]Run, 0, len(w.spillFiles)+1)
	for _, path := range w.spillFiles {
		r, err := openLZ4SpillRun(w.fs, path)
		if err != nil {
			return 0, fmt.Errorf("open spill chunk: %w", err)
		}
		runs = append(runs, r)
	}
	if len(w.buf) > 0 {
		runs = append(runs, NewSliceRun(w.buf))
	}

	count, err = MergeRuns(runs, write)
	if err != nil {
		return count, err
	}
	return count, bw.Flush()
}

func (w *RunWriter) cleanupSpills() {
	for _, p := range w.spillFiles {
		w.fs.Remove(p)
	}
	w.spillFiles = nil
}

package indexstore

import (
	"bufio"
	"io"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/pierrec/lz4/v4"
)

// Run yields IndexEntry values in the ascending order they were written.
// It is the minimal interface the k-way merge needs from a source, so the
// same merge logic runs over both LZ4-compressed spill files and plain
// in-memory slices (already-finalized run files read via mmap).
type Run interface {
	// Next returns the next entry, or ok=false when the run is exhausted.
	Next() (entry common.IndexEntry, ok bool, err error)
	Close() error
}

// sliceRun adapts an in-memory (typically mmapped) slice of decoded
// entries to the Run interface.
type sliceRun struct {
	entries []common.IndexEntry
	pos     int
}

func NewSliceRun(entries []common.IndexEntry) Run {
	return &sliceRun{entries: entries}
}

func (r *sliceRun) Next() (common.IndexEntry, bool, error) {
	if r.pos >= len(r.entries) {
		return common.IndexEntry{}, false, nil
	}
	e := r.entries[r.pos]
	r.pos++
	return e, true, nil
}

func (r *sliceRun) Close() error { return nil }

// lz4SpillRun reads an LZ4-framed spill chunk written by RunWriter.spill.
type lz4SpillRun struct {
	file fsfacade.File
	zr   *lz4.Reader
	br   *bufio.Reader
}

func openLZ4SpillRun(fs fsfacade.Filesystem, path string) (Run, error) {
	f, err := fs.OpenRO(path)
	if err != nil {
		return nil, err
	}
	zr := lz4.NewReader(f)
	return &lz4SpillRun{file: f, zr: zr, br: bufio.NewReaderSize(zr, 64*1024)}, nil
}

func (r *lz4SpillRun) Next() (common.IndexEntry, bool, error) {
	e, err := ReadEntry(r.br)
	if err != nil {
		if err == io.EOF {
			return common.IndexEntry{}, false, nil
		}
		return common.IndexEntry{}, false, err
	}
	return e, true, nil
}

func (r *lz4SpillRun) Close() error {
	return r.file.Close()
}

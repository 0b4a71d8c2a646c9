// Package symbol implements phase 4's SymbolMerger (spec §4.6): merge
// each staging table's per-column symbol dictionary into the final
// table's dictionary, in worker order, and rewrite every staged
// partition's 4-byte symbol-key column in place through the resulting
// remap.
//
// Grounded in the teacher's own mmap-and-rewrite-in-place style
// (mmapfile.MapReadWrite, used the same way the teacher's indexer mmaps
// scan windows) and the little-endian packed-array convention already
// used for IndexEntry (indexstore/format.go), applied here to the i32
// remap array spec §6 mandates.
package symbol

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/table"
)

// Remap is old_key -> new_key for one staging table's one symbol column.
type Remap []int32

// MergeColumn merges workerDicts (indexed by worker id, in worker order)
// into final, returning one Remap per worker (spec §4.6: "dictionaries
// are merged in worker index order; within a worker, in
// dictionary-insertion order").
func MergeColumn(final *table.Dictionary, workerDicts []*table.Dictionary) []Remap {
	remaps := make([]Remap, len(workerDicts))
	for w, d := range workerDicts {
		strs := d.Strings()
		remap := make(Remap, len(strs))
		for oldKey, s := range strs {
			remap[oldKey] = final.Insert(s)
		}
		remaps[w] = remap
	}
	return remaps
}

// WriteRemapFile persists a Remap in the little-endian i32[] format spec
// §6 mandates, next to the symbol column it applies to.
func WriteRemapFile(fs fsfacade.Filesystem, path string, remap Remap) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create remap file %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, len(remap)*4)
	for i, v := range remap {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(v))
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("write remap file %s: %w", path, err)
	}
	return nil
}

// RewriteColumn mmaps partitionDir's symbol column file for the given
// column index in read-write mode and rewrites every 4-byte key in place
// via remap (spec §4.6 step 4). Each on-disk key record is a 1-byte
// null flag followed by 4 bytes of payload, matching table.Writer's
// column encoding; null entries (flag byte 0) are left untouched.
func RewriteColumn(fs fsfacade.Filesystem, partitionDir string, col int, remap Remap) error {
	path := filepath.Join(partitionDir, fmt.Sprintf("col_%d.dat", col))
	size, err := fs.Length(path)
	if err != nil {
		return fmt.Errorf("stat column %s: %w", path, err)
	}
	if size == 0 {
		return nil
	}

	f, err := fs.OpenRW(path)
	if err != nil {
		return fmt.Errorf("open column %s: %w", path, err)
	}
	defer f.Close()

	data, err := fs.MmapReadWrite(f, size)
	if err != nil {
		return fmt.Errorf("mmap column %s: %w", path, err)
	}
	defer fs.Munmap(data)

	const recordSize = 1 + 4
	for off := 0; off+recordSize <= len(data); off += recordSize {
		if data[off] == 0 {
			continue // null, nothing to remap
		}
		oldKey := binary.LittleEndian.Uint32(data[off+1 : off+5])
		if int(oldKey) >= len(remap) {
			return fmt.Errorf("key %d out of range for remap of length %d in %s", oldKey, len(remap), path)
		}
		binary.LittleEndian.PutUint32(data[off+1:off+5], uint32(remap[oldKey]))
	}
	return nil
}

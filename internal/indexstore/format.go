// Package indexstore implements the on-disk IndexEntry format (spec §6:
// "Little-endian packed array of (i64 timestamp, i64 offset); no header,
// no trailer") and the per-(partition,worker) run writer used by phase 2
// (spec §4.3) to produce sorted runs that phase 3's IndexMerger (spec
// §4.5) can mmap and k-way merge directly.
//
// Oversized in-memory batches spill to LZ4-framed temp chunk files before
// being folded back into one sorted run, the same two-stage scheme as the
// teacher's Sorter (sorter.go: flushChunk + kWayMerge), just generalized
// from (key, offset, line) records to (timestamp, offset) ones.
package indexstore

import (
	"encoding/binary"
	"io"

	"github.com/csvquery/bulkload/internal/common"
)

// WriteEntry writes one IndexEntry in the on-disk little-endian format.
func WriteEntry(w io.Writer, e common.IndexEntry) error {
	var buf [common.IndexEntrySize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.TimestampMicros))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.Offset))
	_, err := w.Write(buf[:])
	return err
}

// WriteBatch writes a slice of entries with a single underlying Write call.
func WriteBatch(w io.Writer, entries []common.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	buf := make([]byte, len(entries)*common.IndexEntrySize)
	for i, e := range entries {
		off := i * common.IndexEntrySize
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(e.TimestampMicros))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(e.Offset))
	}
	_, err := w.Write(buf)
	return err
}

// ReadEntry reads one IndexEntry, returning io.EOF when the stream is
// exhausted exactly on an entry boundary.
func ReadEntry(r io.Reader) (common.IndexEntry, error) {
	var buf [common.IndexEntrySize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return common.IndexEntry{}, err
	}
	return common.IndexEntry{
		TimestampMicros: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Offset:          int64(binary.LittleEndian.Uint64(buf[8:16])),
	}, nil
}

// DecodeAll decodes every IndexEntry packed in data (e.g. a whole mmapped
// run file). len(data) must be a multiple of common.IndexEntrySize.
func DecodeAll(data []byte) []common.IndexEntry {
	n := len(data) / common.IndexEntrySize
	entries := make([]common.IndexEntry, n)
	for i := 0; i < n; i++ {
		off := i * common.IndexEntrySize
		entries[i] = common.IndexEntry{
			TimestampMicros: int64(binary.LittleEndian.Uint64(data[off : off+8])),
			Offset:          int64(binary.LittleEndian.Uint64(data[off+8 : off+16])),
		}
	}
	return entries
}

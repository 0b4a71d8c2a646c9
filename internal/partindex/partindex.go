// Package partindex implements phase 2's PartitionIndexer (spec §4.3):
// lex one boundary-reconciled chunk, extract each record's timestamp and
// partition key, and append `(timestamp, offset)` into the
// per-(partition, worker) run file that phase 3's IndexMerger later
// k-way merges.
//
// Grounded in the teacher's Scanner.Scan (scanner.go), which drives a
// worker's slice of the file through a column extractor and hands
// complete records to per-index channels; here a single worker drives
// one indexing chunk through the shared lexer and routes each record's
// IndexEntry to the partition-and-worker-scoped indexstore.RunWriter
// instead of a downstream sort channel.
package partindex

import (
	"fmt"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/fsfacade"
	"github.com/csvquery/bulkload/internal/indexstore"
	"github.com/csvquery/bulkload/internal/lexer"
	"github.com/csvquery/bulkload/internal/typeadapt"
)

// Config bundles everything one indexing-chunk task needs, immutable for
// the life of the task per spec §9's TaskContext guidance.
type Config struct {
	TableRoot       string // workRoot/{table}
	WorkerID        int
	ChunkID         int
	Delimiter       byte
	TimestampColumn int
	TimestampAdapter typeadapt.TimestampAdapter
	PartitionBy     common.PartitionBy
	RunMaxInMemory  int // entries buffered per partition run before spilling
}

// Result is what one indexing-chunk task reports back to the Coordinator.
type Result struct {
	MaxLineLength  int64
	PartitionKeys  map[string]struct{} // partition names this worker wrote to
	RecordsIndexed int64
	RecordsSkipped int64 // bad-timestamp records, dropped per spec §4.3/§7
}

// Index lexes source[lo:hi), starting at line startingLine, and appends
// one IndexEntry per well-formed record into
// cfg.TableRoot/{partitionName}/{workerId}_{chunkId}. A record straddling
// hi is the responsibility of the worker owning the chunk whose [lo,hi)
// it started in, so every byte of source is parsed by exactly one worker
// scanning [lo, hi) end to end (spec §4.3's "exactly-once coverage").
func Index(fs fsfacade.Filesystem, source []byte, lo, hi int64, startingLine int64, cfg Config) (*Result, error) {
	res := &Result{PartitionKeys: make(map[string]struct{})}

	writers := make(map[string]*indexstore.RunWriter)
	l := lexer.Of(cfg.Delimiter)

	var indexErr error
	l.Parse(source[lo:hi], lo, func(fields [][]byte, recordStart int64, recordLen int64) {
		if indexErr != nil {
			return
		}
		if recordLen > res.MaxLineLength {
			res.MaxLineLength = recordLen
		}
		if cfg.TimestampColumn < 0 || cfg.TimestampColumn >= len(fields) {
			res.RecordsSkipped++
			return
		}

		ts, err := cfg.TimestampAdapter.Timestamp(fields[cfg.TimestampColumn])
		if err != nil {
			res.RecordsSkipped++
			return
		}

		floor := common.FloorMicros(ts, cfg.PartitionBy)
		partitionName := common.PartitionName(floor, cfg.PartitionBy)

		w, ok := writers[partitionName]
		if !ok {
			partitionDir := cfg.TableRoot + "/" + partitionName
			if err := fs.MkdirAll(partitionDir); err != nil {
				indexErr = fmt.Errorf("create partition dir %s: %w", partitionDir, err)
				return
			}
			name := fmt.Sprintf("%d_%d", cfg.WorkerID, cfg.ChunkID)
			w = indexstore.NewRunWriter(fs, partitionDir, name, cfg.RunMaxInMemory)
			writers[partitionName] = w
			res.PartitionKeys[partitionName] = struct{}{}
		}

		if err := w.Add(common.IndexEntry{TimestampMicros: ts, Offset: recordStart}); err != nil {
			indexErr = fmt.Errorf("append index entry: %w", err)
			return
		}
		res.RecordsIndexed++
	})
	if indexErr != nil {
		return res, indexErr
	}

	for partitionName, w := range writers {
		partitionDir := cfg.TableRoot + "/" + partitionName
		outPath := fmt.Sprintf("%s/%d_%d", partitionDir, cfg.WorkerID, cfg.ChunkID)
		if _, err := w.Finalize(outPath); err != nil {
			return res, fmt.Errorf("finalize run %s: %w", outPath, err)
		}
	}

	return res, nil
}

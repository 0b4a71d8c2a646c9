// Package load implements phase 3's PartitionLoader (spec §4.5 steps
// 3-5): stream a partition's merged index in timestamp order, pread each
// record's bytes from the source file, lex it, convert fields through
// the configured type adapters, and append the resulting row into the
// staging table writer — honoring the configured atomicity policy on
// adapter failure.
package load

import (
	"fmt"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/lexer"
	"github.com/csvquery/bulkload/internal/table"
	"github.com/csvquery/bulkload/internal/typeadapt"
)

// Source is the minimal random-read view of the input file the loader
// needs; a plain *os.File (or fsfacade.File) satisfies it.
type Source interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Config bundles one partition-load task's immutable inputs.
type Config struct {
	Delimiter     byte
	MaxLineLength int64
	Adapters      []typeadapt.Adapter // one per column, indexed like the schema
	Atomicity     common.Atomicity
}

// Result reports one partition load's outcome.
type Result struct {
	RowsWritten  int64
	RowsRejected int64
}

// Load walks entries (the already k-way-merged, timestamp-ascending
// index for one partition), reading each record from source and writing
// it into w via BeginPartition/NewRow/.../CommitPartition.
func Load(source Source, entries []common.IndexEntry, w *table.Writer, partitionName string, cfg Config) (*Result, error) {
	if err := w.BeginPartition(partitionName); err != nil {
		return nil, fmt.Errorf("begin partition %s: %w", partitionName, err)
	}

	res := &Result{}
	slab := make([]byte, cfg.MaxLineLength)

	for _, e := range entries {
		n, err := source.ReadAt(slab, e.Offset)
		if err != nil && n == 0 {
			return res, fmt.Errorf("pread offset %d: %w", e.Offset, err)
		}

		fields, _, ok := lexer.ParseLast(slab[:n], cfg.Delimiter, e.Offset)
		if !ok {
			res.RowsRejected++
			continue
		}

		row := w.NewRow(e.TimestampMicros)
		rejected := false
		for col, adapter := range cfg.Adapters {
			if col >= len(fields) {
				row.PutNull(col)
				continue
			}
			if err := adapter.Write(row, col, fields[col]); err != nil {
				switch cfg.Atomicity {
				case common.SkipAll:
					return res, fmt.Errorf("type adapter column %d: %w", col, err)
				case common.SkipRow:
					rejected = true
				case common.SkipColumn:
					row.PutNull(col)
				}
			}
			if rejected {
				break
			}
		}

		if rejected {
			row.Cancel()
			res.RowsRejected++
			continue
		}

		if err := row.Append(); err != nil {
			return res, fmt.Errorf("append row: %w", err)
		}
		res.RowsWritten++
	}

	if err := w.CommitPartition(table.Sync); err != nil {
		return res, fmt.Errorf("commit partition %s: %w", partitionName, err)
	}
	return res, nil
}

// Package common holds the types shared by every phase of the bulk-ingest
// pipeline: the on-disk index entry format, the partition-by unit, and the
// structured error kinds raised across phase barriers.
package common

import (
	"fmt"
	"time"
)

// IndexEntrySize is the fixed on-disk width of one IndexEntry: an 8-byte
// timestamp (microseconds since epoch) followed by an 8-byte byte offset,
// both little-endian. No header, no trailer; file size is always a
// multiple of IndexEntrySize.
const IndexEntrySize = 16

// IndexEntry identifies one source record by its timestamp and its byte
// offset in the source file.
type IndexEntry struct {
	TimestampMicros int64
	Offset          int64
}

// Less orders entries ascending by timestamp, offset as tie-breaker.
func (e IndexEntry) Less(o IndexEntry) bool {
	if e.TimestampMicros != o.TimestampMicros {
		return e.TimestampMicros < o.TimestampMicros
	}
	return e.Offset < o.Offset
}

// PartitionBy is the time unit used to floor a row's timestamp into a
// partition key. NONE is rejected by configuration validation.
type PartitionBy int

const (
	PartitionByNone PartitionBy = iota
	PartitionByHour
	PartitionByDay
	PartitionByMonth
	PartitionByYear
)

func ParsePartitionBy(s string) (PartitionBy, error) {
	switch s {
	case "HOUR":
		return PartitionByHour, nil
	case "DAY":
		return PartitionByDay, nil
	case "MONTH":
		return PartitionByMonth, nil
	case "YEAR":
		return PartitionByYear, nil
	case "NONE", "":
		return PartitionByNone, nil
	default:
		return PartitionByNone, fmt.Errorf("unknown partitionBy: %q", s)
	}
}

// FloorMicros returns the partition-floor timestamp (microseconds since
// epoch) for tsMicros under the configured unit.
func FloorMicros(tsMicros int64, by PartitionBy) int64 {
	t := time.UnixMicro(tsMicros).UTC()
	var floored time.Time
	switch by {
	case PartitionByHour:
		floored = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case PartitionByDay:
		floored = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case PartitionByMonth:
		floored = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case PartitionByYear:
		floored = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		floored = t
	}
	return floored.UnixMicro()
}

// PartitionName renders the floored partition timestamp as the directory
// name used on disk, e.g. "2020-01-01", "2020-01-01T00", "2020-01", "2020".
func PartitionName(floorMicros int64, by PartitionBy) string {
	t := time.UnixMicro(floorMicros).UTC()
	switch by {
	case PartitionByHour:
		return t.Format("2006-01-02T15")
	case PartitionByDay:
		return t.Format("2006-01-02")
	case PartitionByMonth:
		return t.Format("2006-01")
	case PartitionByYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02T15:04:05.000000")
	}
}

// Atomicity governs how a type-adapter failure during the load phase is
// handled for a given row/column.
type Atomicity int

const (
	// SkipAll rolls back the whole staging writer and fails the phase.
	SkipAll Atomicity = iota
	// SkipRow cancels just the current row.
	SkipRow
	// SkipColumn leaves just the offending field null.
	SkipColumn
)

func ParseAtomicity(s string) (Atomicity, error) {
	switch s {
	case "SKIP_ALL", "":
		return SkipAll, nil
	case "SKIP_ROW":
		return SkipRow, nil
	case "SKIP_COLUMN":
		return SkipColumn, nil
	default:
		return SkipAll, fmt.Errorf("unknown atomicity: %q", s)
	}
}

// ErrorKind classifies a fault per the error taxonomy of the design: each
// kind maps to a distinct propagation rule (fatal-before-dispatch,
// fatal-at-barrier, or log-and-continue).
type ErrorKind int

const (
	KindConfig ErrorKind = iota
	KindIO
	KindParse
	KindTypeAdapt
	KindAttach
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindTypeAdapt:
		return "type-adapt"
	case KindAttach:
		return "attach"
	default:
		return "unknown"
	}
}

// LoadError is the structured error returned to the caller of the single
// entry point on an unrecoverable fault.
type LoadError struct {
	Kind  ErrorKind
	Phase string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s error in phase %s: %v", e.Kind, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func NewLoadError(kind ErrorKind, phase string, err error) *LoadError {
	return &LoadError{Kind: kind, Phase: phase, Err: err}
}

package coordinator

import (
	"fmt"
	"path/filepath"

	"github.com/csvquery/bulkload/internal/common"
	"github.com/csvquery/bulkload/internal/table"
	"github.com/csvquery/bulkload/internal/typeadapt"
)

// LoadSpec is the single entry point's invocation contract (spec §6):
// everything the Coordinator needs to run one load from start to finish.
type LoadSpec struct {
	TableName     string
	InputRoot     string
	InputFileName string

	PartitionBy common.PartitionBy

	// ColumnDelimiter is the single-byte field separator. AutoDetect
	// ignores it and instead picks the candidate delimiter that occurs
	// most often in the first line of the first DetectWindow bytes of the
	// input.
	ColumnDelimiter byte
	AutoDetect      bool
	DetectWindow    int

	Schema          table.Schema
	TimestampColumn int
	TimestampFormat string // time.Parse layout; empty selects RFC3339Nano
	ForceHeader     bool

	WorkRoot  string
	DBRoot    string
	Workers   int
	Atomicity common.Atomicity
}

// DefaultDetectWindow bounds how much of the input auto-detection reads.
const DefaultDetectWindow = 64 * 1024

// Validate performs the configuration checks spec §7 kind 1 requires
// before any phase-1 task is dispatched: partitionBy missing, no
// timestamp column, column count mismatch, non-empty target table.
func (s LoadSpec) Validate() error {
	if s.TableName == "" {
		return common.NewLoadError(common.KindConfig, "", fmt.Errorf("tableName is required"))
	}
	if s.PartitionBy == common.PartitionByNone {
		return common.NewLoadError(common.KindConfig, "", fmt.Errorf("partitionBy NONE is not allowed"))
	}
	if s.TimestampColumn < 0 || s.TimestampColumn >= len(s.Schema.Columns) {
		return common.NewLoadError(common.KindConfig, "", fmt.Errorf("timestampColumn %d out of range for %d columns", s.TimestampColumn, len(s.Schema.Columns)))
	}
	if s.Schema.Columns[s.TimestampColumn].Type != typeadapt.TypeTimestamp {
		return common.NewLoadError(common.KindConfig, "", fmt.Errorf("column %d is not a timestamp column", s.TimestampColumn))
	}
	if s.Workers < 1 {
		return common.NewLoadError(common.KindConfig, "", fmt.Errorf("workers must be >= 1"))
	}

	tableRoot := filepath.Join(s.DBRoot, s.TableName)
	existing, ok, err := table.LoadSchema(tableRoot)
	if err != nil {
		return common.NewLoadError(common.KindConfig, "", fmt.Errorf("load existing schema for %q: %w", s.TableName, err))
	}
	if ok {
		if len(existing.Columns) != len(s.Schema.Columns) {
			return common.NewLoadError(common.KindConfig, "", fmt.Errorf("schema column count mismatch: table %q has %d columns, load spec has %d", s.TableName, len(existing.Columns), len(s.Schema.Columns)))
		}
		partitions, err := table.LoadPartitions(tableRoot)
		if err != nil {
			return common.NewLoadError(common.KindConfig, "", fmt.Errorf("load existing partitions for %q: %w", s.TableName, err))
		}
		if len(partitions) > 0 {
			return common.NewLoadError(common.KindConfig, "", fmt.Errorf("target table %q already has %d attached partitions; re-running a load into a non-empty table is not supported", s.TableName, len(partitions)))
		}
	}
	return nil
}

// adapters builds the per-column type adapter list implied by s.Schema,
// using s.TimestampFormat for the timestamp column.
func (s LoadSpec) adapters() []typeadapt.Adapter {
	out := make([]typeadapt.Adapter, len(s.Schema.Columns))
	for i, col := range s.Schema.Columns {
		switch col.Type {
		case typeadapt.TypeInt64:
			out[i] = typeadapt.Int64Adapter{}
		case typeadapt.TypeFloat64:
			out[i] = typeadapt.Float64Adapter{}
		case typeadapt.TypeSymbol:
			out[i] = typeadapt.SymbolAdapter{}
		case typeadapt.TypeTimestamp:
			out[i] = typeadapt.NewTimestampAdapter(typeadapt.LayoutRFC3339, s.TimestampFormat)
		default:
			out[i] = typeadapt.StringAdapter{}
		}
	}
	return out
}

func (s LoadSpec) timestampAdapter() typeadapt.TimestampAdapter {
	return typeadapt.NewTimestampAdapter(typeadapt.LayoutRFC3339, s.TimestampFormat)
}
